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
	"math"

	"github.com/golang/geo/s1"
)

// NanoDegree is a signed 64-bit count of 10^-9 degrees, the fixed-point
// representation every coordinate in a PrimitiveBlock is reconstructed
// into.
type NanoDegree int64

const (
	nanoPerDegree = 1e9

	// MaxLatNano and MinLatNano bound valid latitudes, in nanodegrees.
	MaxLatNano NanoDegree = 900_000_000
	MinLatNano NanoDegree = -900_000_000

	// MaxLonNano and MinLonNano bound valid longitudes, in nanodegrees.
	MaxLonNano NanoDegree = 1_800_000_000
	MinLonNano NanoDegree = -1_800_000_000
)

// Degrees is the decimal degree representation of a longitude or latitude.
type Degrees float64

// ToDegrees converts a NanoDegree to its double-precision Degrees
// equivalent: n * 10^-9.
func (n NanoDegree) ToDegrees() Degrees {
	return Degrees(float64(n) / nanoPerDegree)
}

// NanoDegreeFromDegrees rounds d * 10^9 to the nearest NanoDegree.
func NanoDegreeFromDegrees(d Degrees) NanoDegree {
	return NanoDegree(math.Round(float64(d) * nanoPerDegree))
}

// Angle returns the equivalent s1.Angle, in radians.
func (d Degrees) Angle() s1.Angle {
	return s1.Angle(float64(d)) * s1.Degree
}

func (d Degrees) String() string {
	return fmt.Sprintf("%g", float64(d))
}

// NewLatitude constructs a NanoDegree latitude, rejecting values outside
// [-9e8, 9e8].
func NewLatitude(n NanoDegree) (NanoDegree, error) {
	if n < MinLatNano || n > MaxLatNano {
		return 0, newErr(ErrDecode, fmt.Sprintf("latitude %d nanodegrees out of range [%d, %d]", n, MinLatNano, MaxLatNano))
	}

	return n, nil
}

// NewLongitude constructs a NanoDegree longitude, rejecting values outside
// [-1.8e9, 1.8e9].
func NewLongitude(n NanoDegree) (NanoDegree, error) {
	if n < MinLonNano || n > MaxLonNano {
		return 0, newErr(ErrDecode, fmt.Sprintf("longitude %d nanodegrees out of range [%d, %d]", n, MinLonNano, MaxLonNano))
	}

	return n, nil
}

// absoluteNano reconstructs the absolute nanodegree coordinate of a
// block-local stored value, per PrimitiveBlock.granularity/offset.
//
// An overflowing product or sum is reported rather than silently wrapped.
func absoluteNano(stored int64, granularity int32, offset int64) (NanoDegree, error) {
	if granularity == 0 {
		granularity = 100
	}

	product := stored * int64(granularity)
	if granularity != 0 && product/int64(granularity) != stored {
		return 0, newErr(ErrDecode, "coordinate overflow during granularity scaling")
	}

	sum := product + offset
	if (offset > 0 && sum < product) || (offset < 0 && sum > product) {
		return 0, newErr(ErrDecode, "coordinate overflow applying offset")
	}

	return NanoDegree(sum), nil
}
