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

import "fmt"

// BoundingBox is a decimal-degree rectangle, used by Filter for bbox
// pushdown. It is distinct from HeaderBBox, which is in nanodegrees.
type BoundingBox struct {
	MinLon Degrees
	MinLat Degrees
	MaxLon Degrees
	MaxLat Degrees
}

// Contains reports whether the lon/lat point falls within the box,
// inclusive of the boundary.
func (b BoundingBox) Contains(lon, lat Degrees) bool {
	return b.MinLon <= lon && lon <= b.MaxLon && b.MinLat <= lat && lat <= b.MaxLat
}

// Disjoint reports whether two bounding boxes share no area.
func (b BoundingBox) Disjoint(o BoundingBox) bool {
	return b.MaxLon < o.MinLon || o.MaxLon < b.MinLon || b.MaxLat < o.MinLat || o.MaxLat < b.MinLat
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("[%g, %g, %g, %g]", b.MinLon, b.MinLat, b.MaxLon, b.MaxLat)
}
