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

	"github.com/lokrain/osm-pbf"
)

func TestBoundingBoxContains(t *testing.T) {
	b := osmpbf.BoundingBox{MinLon: -0.511482, MinLat: 51.28554, MaxLon: 0.335437, MaxLat: 51.69344}

	testCases := []struct {
		name     string
		lon, lat osmpbf.Degrees
		want     bool
	}{
		{"bottom/left corner", b.MinLon, b.MinLat, true},
		{"top/right corner", b.MaxLon, b.MaxLat, true},
		{"just west of box", b.MinLon - 0.001, b.MinLat, false},
		{"just north of box", b.MinLon, b.MaxLat + 0.001, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, b.Contains(tc.lon, tc.lat))
		})
	}
}

func TestBoundingBoxDisjoint(t *testing.T) {
	a := osmpbf.BoundingBox{MinLon: 0, MinLat: 0, MaxLon: 10, MaxLat: 10}
	b := osmpbf.BoundingBox{MinLon: 20, MinLat: 20, MaxLon: 30, MaxLat: 30}
	c := osmpbf.BoundingBox{MinLon: 5, MinLat: 5, MaxLon: 15, MaxLat: 15}

	assert.True(t, a.Disjoint(b))
	assert.False(t, a.Disjoint(c))
}

func TestHeaderBBoxToBoundingBox(t *testing.T) {
	hb := osmpbf.HeaderBBox{
		Left:   osmpbf.NanoDegreeFromDegrees(-0.511482),
		Right:  osmpbf.NanoDegreeFromDegrees(0.335437),
		Top:    osmpbf.NanoDegreeFromDegrees(51.69344),
		Bottom: osmpbf.NanoDegreeFromDegrees(51.28554),
	}

	bb := hb.ToBoundingBox()
	assert.InDelta(t, -0.511482, float64(bb.MinLon), 1e-6)
	assert.InDelta(t, 51.28554, float64(bb.MinLat), 1e-6)
	assert.InDelta(t, 0.335437, float64(bb.MaxLon), 1e-6)
	assert.InDelta(t, 51.69344, float64(bb.MaxLat), 1e-6)
}
