// Copyright 2017-25 the original author or authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package osmpbf_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lokrain/osm-pbf"
)

// TestDecodeBlockDenseNodes constructs a PrimitiveBlock by hand (no I/O)
// and checks that dense node id/lat/lon delta decoding, coordinate
// reconstruction, and the sentinel-terminated tag stream all line up.
func TestDecodeBlockDenseNodes(t *testing.T) {
	st := osmpbf.NewStringTable([]string{"highway", "traffic_signals"})

	pb := &osmpbf.PrimitiveBlock{
		StringTable: st,
		Granularity: 100,
		Groups: []osmpbf.PrimitiveGroup{
			{
				DenseNodes: &osmpbf.DenseNodes{
					IDs:      []int64{100, 1, 1}, // absolute: 100, 101, 102
					Lats:     []int64{515_000_000, 10, -5},
					Lons:     []int64{-5_000_000, 20, 30},
					KeysVals: []int32{1, 2, 0, 0, 0},
				},
			},
		},
	}

	elements, err := osmpbf.DecodeBlock(pb)
	require.NoError(t, err)
	require.Len(t, elements, 3)

	n0, ok := elements[0].(*osmpbf.Node)
	require.True(t, ok)
	assert.Equal(t, int64(100), n0.ID)
	assert.Equal(t, map[string]string{"highway": "traffic_signals"}, n0.Tags)
	assert.Equal(t, osmpbf.NanoDegree(515_000_000*100), n0.Lat)
	assert.Equal(t, osmpbf.NanoDegree(-5_000_000*100), n0.Lon)

	n1 := elements[1].(*osmpbf.Node)
	assert.Equal(t, int64(101), n1.ID)
	assert.Equal(t, map[string]string{}, n1.Tags)

	n2 := elements[2].(*osmpbf.Node)
	assert.Equal(t, int64(102), n2.ID)
	assert.Equal(t, map[string]string{}, n2.Tags)
}

func TestDecodeBlockDenseInfoDefaultsVisibleTrue(t *testing.T) {
	pb := &osmpbf.PrimitiveBlock{
		StringTable: osmpbf.NewStringTable([]string{"alice"}),
		Granularity: 100,
		Groups: []osmpbf.PrimitiveGroup{
			{
				DenseNodes: &osmpbf.DenseNodes{
					IDs:  []int64{1, 1},
					Lats: []int64{0, 0},
					Lons: []int64{0, 0},
					Info: &osmpbf.DenseInfo{
						Version:   []int32{1, 1},
						Timestamp: []int64{1000, 10},
						UserSID:   []int32{1, 0},
					},
				},
			},
		},
	}

	elements, err := osmpbf.DecodeBlock(pb)
	require.NoError(t, err)
	require.Len(t, elements, 2)

	n0 := elements[0].(*osmpbf.Node)
	require.NotNil(t, n0.Info)
	assert.True(t, n0.Info.Visible)
	assert.Equal(t, "alice", n0.Info.User)

	n1 := elements[1].(*osmpbf.Node)
	assert.Equal(t, "alice", n1.Info.User)
}

func TestDecodeBlockWayRefsDeltaDecode(t *testing.T) {
	pb := &osmpbf.PrimitiveBlock{
		StringTable: osmpbf.NewStringTable(nil),
		Granularity: 100,
		Groups: []osmpbf.PrimitiveGroup{
			{
				Ways: []osmpbf.RawWay{
					{ID: 7, Refs: []int64{10, 5, -2}}, // absolute: 10, 15, 13
				},
			},
		},
	}

	elements, err := osmpbf.DecodeBlock(pb)
	require.NoError(t, err)
	require.Len(t, elements, 1)

	w := elements[0].(*osmpbf.Way)
	assert.Equal(t, []int64{10, 15, 13}, w.Refs)
}

func TestDecodeBlockRelationMembers(t *testing.T) {
	st := osmpbf.NewStringTable([]string{"outer", "inner"})

	pb := &osmpbf.PrimitiveBlock{
		StringTable: st,
		Granularity: 100,
		Groups: []osmpbf.PrimitiveGroup{
			{
				Relations: []osmpbf.RawRelation{
					{
						ID:       42,
						RolesSID: []uint32{1, 2},
						MemIDs:   []int64{5, 3}, // absolute: 5, 8
						Types:    []osmpbf.MemberType{osmpbf.MemberWay, osmpbf.MemberWay},
					},
				},
			},
		},
	}

	elements, err := osmpbf.DecodeBlock(pb)
	require.NoError(t, err)
	require.Len(t, elements, 1)

	rel := elements[0].(*osmpbf.Relation)
	require.Len(t, rel.Members, 2)
	assert.Equal(t, int64(5), rel.Members[0].ID)
	assert.Equal(t, "outer", rel.Members[0].Role)
	assert.Equal(t, int64(8), rel.Members[1].ID)
	assert.Equal(t, "inner", rel.Members[1].Role)
}

func TestDecodeBlockEmissionOrderWithinGroup(t *testing.T) {
	pb := &osmpbf.PrimitiveBlock{
		StringTable: osmpbf.NewStringTable(nil),
		Granularity: 100,
		Groups: []osmpbf.PrimitiveGroup{
			{
				DenseNodes: &osmpbf.DenseNodes{IDs: []int64{1}, Lats: []int64{0}, Lons: []int64{0}},
				Nodes:      []osmpbf.SparseNode{{ID: 2}},
				Ways:       []osmpbf.RawWay{{ID: 3}},
				Relations:  []osmpbf.RawRelation{{ID: 4}},
				Changesets: []osmpbf.RawChangeset{{ID: 5}},
			},
		},
	}

	elements, err := osmpbf.DecodeBlock(pb)
	require.NoError(t, err)
	require.Len(t, elements, 5)

	var kinds []string
	for _, e := range elements {
		switch e.(type) {
		case *osmpbf.Node:
			kinds = append(kinds, "node")
		case *osmpbf.Way:
			kinds = append(kinds, "way")
		case *osmpbf.Relation:
			kinds = append(kinds, "relation")
		case *osmpbf.Changeset:
			kinds = append(kinds, "changeset")
		}
	}

	assert.Equal(t, []string{"node", "node", "way", "relation", "changeset"}, kinds)
}

func TestDecodeBlockDenseTagStreamTruncatedIsError(t *testing.T) {
	pb := &osmpbf.PrimitiveBlock{
		StringTable: osmpbf.NewStringTable([]string{"k"}),
		Granularity: 100,
		Groups: []osmpbf.PrimitiveGroup{
			{
				DenseNodes: &osmpbf.DenseNodes{
					IDs:      []int64{1},
					Lats:     []int64{0},
					Lons:     []int64{0},
					KeysVals: []int32{1}, // missing value and sentinel
				},
			},
		},
	}

	_, err := osmpbf.DecodeBlock(pb)
	require.Error(t, err)
	assert.ErrorIs(t, err, &osmpbf.Error{Kind: osmpbf.ErrDecode})
}

func TestDecodeBlockStringTableOutOfRangeIsError(t *testing.T) {
	pb := &osmpbf.PrimitiveBlock{
		StringTable: osmpbf.NewStringTable(nil),
		Granularity: 100,
		Groups: []osmpbf.PrimitiveGroup{
			{
				Nodes: []osmpbf.SparseNode{
					{ID: 1, Keys: []uint32{99}, Vals: []uint32{0}},
				},
			},
		},
	}

	_, err := osmpbf.DecodeBlock(pb)
	require.Error(t, err)
	assert.ErrorIs(t, err, &osmpbf.Error{Kind: osmpbf.ErrDecode})
}

func TestDecodeBlockKeysValsLengthMismatchIsError(t *testing.T) {
	pb := &osmpbf.PrimitiveBlock{
		StringTable: osmpbf.NewStringTable([]string{"k", "v"}),
		Granularity: 100,
		Groups: []osmpbf.PrimitiveGroup{
			{
				Nodes: []osmpbf.SparseNode{
					{ID: 1, Keys: []uint32{1}, Vals: []uint32{}},
				},
			},
		},
	}

	_, err := osmpbf.DecodeBlock(pb)
	require.Error(t, err)
}

func TestDecodeBlockDefaultGranularity(t *testing.T) {
	pb := &osmpbf.PrimitiveBlock{
		StringTable: osmpbf.NewStringTable(nil),
		Groups: []osmpbf.PrimitiveGroup{
			{Nodes: []osmpbf.SparseNode{{ID: 1, Lat: 515000000, Lon: -5000000}}},
		},
	}

	elements, err := osmpbf.DecodeBlock(pb)
	require.NoError(t, err)

	n := elements[0].(*osmpbf.Node)
	assert.Equal(t, osmpbf.NanoDegree(515000000*100), n.Lat)
}
