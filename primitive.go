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

package osmpbf

import (
	"fmt"
	"time"
)

// PrimitiveBlock is the pre-decode representation of one decode unit: a
// string table, an ordered list of primitive groups, and the coordinate
// reconstruction parameters shared by every node contained within it.
//
// Granularity parameters are block-local; DecodeBlock never reuses the
// parameters of one block when decoding another.
type PrimitiveBlock struct {
	StringTable     StringTable
	Groups          []PrimitiveGroup
	Granularity     int32 // nanodegrees per stored unit; default 100
	LatOffset       int64 // nanodegrees; default 0
	LonOffset       int64 // nanodegrees; default 0
	DateGranularity int32 // milliseconds; default 1000
}

// PrimitiveGroup is a discriminated container holding zero or more
// non-empty substreams. Implementations may populate several slots at
// once; DecodeBlock treats each as an independent stream.
type PrimitiveGroup struct {
	Nodes      []SparseNode
	DenseNodes *DenseNodes
	Ways       []RawWay
	Relations  []RawRelation
	Changesets []RawChangeset
}

// RawInfo is the pre-decode representation of Info attached to a sparse
// Node, Way, or Relation. Timestamp is in block-local date-granularity
// units; Visible nil means "absent", defaulting to true.
type RawInfo struct {
	Version   int32
	Timestamp int64
	Changeset int64
	UID       int32
	UserSID   uint32
	Visible   *bool
}

// SparseNode is a single, non-dense Node entry: {id, keys[], vals[], info?,
// lat, lon}, with |keys| == |vals|. lat/lon are block-local stored units,
// not yet scaled by granularity.
type SparseNode struct {
	ID   int64
	Keys []uint32
	Vals []uint32
	Info *RawInfo
	Lat  int64
	Lon  int64
}

// DenseNodes holds N nodes as parallel, delta-encoded arrays plus a flat,
// zero-terminated tag stream. All of IDs/Lats/Lons must share length N;
// KeysVals holds exactly N sentinel-terminated tag runs.
type DenseNodes struct {
	IDs      []int64 // delta-encoded
	Lats     []int64 // delta-encoded, block-local stored units
	Lons     []int64 // delta-encoded, block-local stored units
	KeysVals []int32
	Info     *DenseInfo
}

// DenseInfo is the columnar, delta-encoded Info companion to DenseNodes.
// Every slice except Visible is delta-encoded; Visible, when present, is
// direct and defaults to all-true when absent.
type DenseInfo struct {
	Version   []int32
	Timestamp []int64
	Changeset []int64
	UID       []int32
	UserSID   []int32
	Visible   []bool
}

// RawWay is the pre-decode representation of a Way: refs is delta-encoded
// node ids.
type RawWay struct {
	ID   int64
	Keys []uint32
	Vals []uint32
	Info *RawInfo
	Refs []int64 // delta-encoded
}

// RawRelation is the pre-decode representation of a Relation. RolesSID,
// MemIDs (delta-encoded) and Types must share length.
type RawRelation struct {
	ID       int64
	Keys     []uint32
	Vals     []uint32
	Info     *RawInfo
	RolesSID []uint32
	MemIDs   []int64 // delta-encoded
	Types    []MemberType
}

// RawChangeset is the pre-decode representation of a changeset entry.
type RawChangeset struct {
	ID int64
}

// DecodeBlock expands a PrimitiveBlock's delta streams, string references,
// and coordinate encoding into the fully resolved Element sequence,
// following the emission order of spec §4.5: within a group, dense nodes
// (in stored order) first, then nodes, ways, relations, changesets; across
// groups, the order of the group list is preserved.
func DecodeBlock(pb *PrimitiveBlock) ([]Element, error) {
	if pb.Granularity == 0 {
		pb.Granularity = 100
	}

	if pb.DateGranularity == 0 {
		pb.DateGranularity = 1000
	}

	elements := make([]Element, 0)

	for gi, g := range pb.Groups {
		if g.DenseNodes != nil && len(g.DenseNodes.IDs) > 0 {
			nodes, err := decodeDenseNodes(pb, g.DenseNodes)
			if err != nil {
				return nil, fmt.Errorf("group %d: %w", gi, err)
			}

			elements = append(elements, nodes...)
		}

		for i, n := range g.Nodes {
			node, err := decodeSparseNode(pb, n)
			if err != nil {
				return nil, fmt.Errorf("group %d node %d: %w", gi, i, err)
			}

			elements = append(elements, node)
		}

		for i, w := range g.Ways {
			way, err := decodeWay(pb, w)
			if err != nil {
				return nil, fmt.Errorf("group %d way %d: %w", gi, i, err)
			}

			elements = append(elements, way)
		}

		for i, r := range g.Relations {
			rel, err := decodeRelation(pb, r)
			if err != nil {
				return nil, fmt.Errorf("group %d relation %d: %w", gi, i, err)
			}

			elements = append(elements, rel)
		}

		for _, c := range g.Changesets {
			elements = append(elements, &Changeset{ID: c.ID})
		}
	}

	return elements, nil
}

func decodeSparseNode(pb *PrimitiveBlock, n SparseNode) (*Node, error) {
	if len(n.Keys) != len(n.Vals) {
		return nil, newErr(ErrDecode, "node keys/vals length mismatch")
	}

	tags, err := resolveTags(pb.StringTable, n.Keys, n.Vals)
	if err != nil {
		return nil, err
	}

	lat, err := absoluteNano(n.Lat, pb.Granularity, pb.LatOffset)
	if err != nil {
		return nil, err
	}

	lon, err := absoluteNano(n.Lon, pb.Granularity, pb.LonOffset)
	if err != nil {
		return nil, err
	}

	info, err := resolveInfo(pb, n.Info)
	if err != nil {
		return nil, err
	}

	return &Node{ID: n.ID, Lat: lat, Lon: lon, Tags: tags, Info: info}, nil
}

func decodeDenseNodes(pb *PrimitiveBlock, d *DenseNodes) ([]Element, error) {
	n := len(d.IDs)
	if len(d.Lats) != n || len(d.Lons) != n {
		return nil, newErr(ErrDecode, "dense node parallel arrays disagree on length")
	}

	tw := newTagWalker(d.KeysVals)
	diw, err := newDenseInfoWalker(d.Info, n)
	if err != nil {
		return nil, err
	}

	nodes := make([]Element, n)

	var id, lat, lon int64

	for i := 0; i < n; i++ {
		var ok bool

		id, ok = addOverflow(id, d.IDs[i])
		if !ok {
			return nil, newErr(ErrDecode, "dense node id delta overflow")
		}

		lat, ok = addOverflow(lat, d.Lats[i])
		if !ok {
			return nil, newErr(ErrDecode, "dense node lat delta overflow")
		}

		lon, ok = addOverflow(lon, d.Lons[i])
		if !ok {
			return nil, newErr(ErrDecode, "dense node lon delta overflow")
		}

		tags, err := tw.next(pb.StringTable)
		if err != nil {
			return nil, err
		}

		absLat, err := absoluteNano(lat, pb.Granularity, pb.LatOffset)
		if err != nil {
			return nil, err
		}

		absLon, err := absoluteNano(lon, pb.Granularity, pb.LonOffset)
		if err != nil {
			return nil, err
		}

		info, err := diw.next(pb.StringTable, pb.DateGranularity)
		if err != nil {
			return nil, err
		}

		nodes[i] = &Node{ID: id, Lat: absLat, Lon: absLon, Tags: tags, Info: info}
	}

	if err := tw.requireExhausted(n); err != nil {
		return nil, err
	}

	return nodes, nil
}

func decodeWay(pb *PrimitiveBlock, w RawWay) (*Way, error) {
	if len(w.Keys) != len(w.Vals) {
		return nil, newErr(ErrDecode, "way keys/vals length mismatch")
	}

	tags, err := resolveTags(pb.StringTable, w.Keys, w.Vals)
	if err != nil {
		return nil, err
	}

	refs, err := deltaDecode(w.Refs)
	if err != nil {
		return nil, fmt.Errorf("way refs: %w", err)
	}

	info, err := resolveInfo(pb, w.Info)
	if err != nil {
		return nil, err
	}

	return &Way{ID: w.ID, Refs: refs, Tags: tags, Info: info}, nil
}

func decodeRelation(pb *PrimitiveBlock, r RawRelation) (*Relation, error) {
	if len(r.Keys) != len(r.Vals) {
		return nil, newErr(ErrDecode, "relation keys/vals length mismatch")
	}

	if len(r.RolesSID) != len(r.MemIDs) || len(r.MemIDs) != len(r.Types) {
		return nil, newErr(ErrDecode, "relation member arrays disagree on length")
	}

	tags, err := resolveTags(pb.StringTable, r.Keys, r.Vals)
	if err != nil {
		return nil, err
	}

	memids, err := deltaDecode(r.MemIDs)
	if err != nil {
		return nil, fmt.Errorf("relation memids: %w", err)
	}

	members := make([]Member, len(memids))

	for i := range memids {
		role, err := pb.StringTable.MustLookup(r.RolesSID[i])
		if err != nil {
			return nil, fmt.Errorf("relation role: %w", err)
		}

		members[i] = Member{ID: memids[i], Type: r.Types[i], Role: role}
	}

	info, err := resolveInfo(pb, r.Info)
	if err != nil {
		return nil, err
	}

	return &Relation{ID: r.ID, Members: members, Tags: tags, Info: info}, nil
}

func resolveTags(st StringTable, keys, vals []uint32) (map[string]string, error) {
	if len(keys) == 0 {
		return map[string]string{}, nil
	}

	tags := make(map[string]string, len(keys))

	for i, k := range keys {
		key, err := st.MustLookup(k)
		if err != nil {
			return nil, fmt.Errorf("tag key: %w", err)
		}

		val, err := st.MustLookup(vals[i])
		if err != nil {
			return nil, fmt.Errorf("tag value: %w", err)
		}

		tags[key] = val
	}

	return tags, nil
}

func resolveInfo(pb *PrimitiveBlock, ri *RawInfo) (*Info, error) {
	if ri == nil {
		return nil, nil
	}

	user, err := pb.StringTable.MustLookup(ri.UserSID)
	if err != nil {
		return nil, fmt.Errorf("info user: %w", err)
	}

	visible := true
	if ri.Visible != nil {
		visible = *ri.Visible
	}

	return &Info{
		Version:   ri.Version,
		Timestamp: toTimestamp(pb.DateGranularity, ri.Timestamp),
		Changeset: ri.Changeset,
		UID:       ri.UID,
		User:      user,
		Visible:   visible,
	}, nil
}

// deltaDecode expands a cumulative-sum-encoded sequence: x[0] = d[0],
// x[k] = x[k-1] + d[k]. Empty input yields empty output.
func deltaDecode(d []int64) ([]int64, error) {
	if len(d) == 0 {
		return nil, nil
	}

	out := make([]int64, len(d))

	var sum int64

	for i, v := range d {
		var ok bool

		sum, ok = addOverflow(sum, v)
		if !ok {
			return nil, newErr(ErrDecode, "delta decode overflow")
		}

		out[i] = sum
	}

	return out, nil
}

// deltaEncode is the inverse of deltaDecode: d[0] = x[0], d[k] = x[k] -
// x[k-1]. It exists primarily so decode-then-encode round-trip invariants
// (spec §8.3) are directly testable.
func deltaEncode(x []int64) []int64 {
	if len(x) == 0 {
		return nil
	}

	out := make([]int64, len(x))
	out[0] = x[0]

	for i := 1; i < len(x); i++ {
		out[i] = x[i] - x[i-1]
	}

	return out
}

func addOverflow(a, b int64) (int64, bool) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, false
	}

	return sum, true
}

func toTimestamp(granularity int32, stored int64) time.Time {
	return time.UnixMilli(stored * int64(granularity)).UTC()
}

// tagWalker walks a dense KeysVals stream, returning the tag map for one
// node per call to next. See spec §4.5 stage 5.
type tagWalker struct {
	kv []int32
	i  int
}

func newTagWalker(kv []int32) *tagWalker {
	return &tagWalker{kv: kv}
}

func (w *tagWalker) next(st StringTable) (map[string]string, error) {
	if w.kv == nil {
		return map[string]string{}, nil
	}

	tags := make(map[string]string)

	for {
		if w.i >= len(w.kv) {
			return nil, newErr(ErrDecode, "dense tag stream ended before sentinel")
		}

		k := w.kv[w.i]
		if k == 0 {
			w.i++

			return tags, nil
		}

		if w.i+1 >= len(w.kv) {
			return nil, newErr(ErrDecode, "dense tag stream truncated mid-pair")
		}

		v := w.kv[w.i+1]

		key, err := st.MustLookup(uint32(k))
		if err != nil {
			return nil, fmt.Errorf("dense tag key: %w", err)
		}

		val, err := st.MustLookup(uint32(v))
		if err != nil {
			return nil, fmt.Errorf("dense tag value: %w", err)
		}

		tags[key] = val
		w.i += 2
	}
}

func (w *tagWalker) requireExhausted(n int) error {
	if w.kv != nil && w.i != len(w.kv) {
		return newErr(ErrDecode, fmt.Sprintf("dense tag stream left %d unconsumed entries after %d nodes", len(w.kv)-w.i, n))
	}

	return nil
}

// denseInfoWalker expands the columnar DenseInfo delta streams one node at
// a time.
type denseInfoWalker struct {
	di              *DenseInfo
	dateGranularity int32
	callCount       int

	version, uid    int32
	timestamp, cset int64
	userSID         int32
}

func newDenseInfoWalker(di *DenseInfo, n int) (*denseInfoWalker, error) {
	if di == nil {
		return &denseInfoWalker{}, nil
	}

	for name, s := range map[string]int{
		"version":   len(di.Version),
		"timestamp": len(di.Timestamp),
		"changeset": len(di.Changeset),
		"uid":       len(di.UID),
		"user_sid":  len(di.UserSID),
	} {
		if s != 0 && s != n {
			return nil, newErr(ErrDecode, fmt.Sprintf("dense info %s length %d does not match node count %d", name, s, n))
		}
	}

	if len(di.Visible) != 0 && len(di.Visible) != n {
		return nil, newErr(ErrDecode, "dense info visible length does not match node count")
	}

	return &denseInfoWalker{di: di}, nil
}

func (w *denseInfoWalker) next(st StringTable, dateGranularity int32) (*Info, error) {
	if w.di == nil {
		return nil, nil
	}

	i := w.advance()

	user, err := st.MustLookup(uint32(w.userSID))
	if err != nil {
		return nil, fmt.Errorf("dense info user: %w", err)
	}

	visible := true
	if len(w.di.Visible) != 0 {
		visible = w.di.Visible[i]
	}

	return &Info{
		Version:   w.version,
		Timestamp: toTimestamp(dateGranularity, w.timestamp),
		Changeset: w.cset,
		UID:       w.uid,
		User:      user,
		Visible:   visible,
	}, nil
}

// advance applies the next delta for every dense info column and returns
// the index just consumed.
func (w *denseInfoWalker) advance() int {
	i := w.callCount
	w.callCount++

	if len(w.di.Version) != 0 {
		w.version += w.di.Version[i]
	}

	if len(w.di.Timestamp) != 0 {
		w.timestamp += w.di.Timestamp[i]
	}

	if len(w.di.Changeset) != 0 {
		w.cset += w.di.Changeset[i]
	}

	if len(w.di.UID) != 0 {
		w.uid += w.di.UID[i]
	}

	if len(w.di.UserSID) != 0 {
		w.userSID += int32(w.di.UserSID[i])
	}

	return i
}
