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

// RequiredFeatureOsmSchemaV06 and RequiredFeatureDenseNodes are the only
// required features this reader declares support for. Any other required
// feature surfaces as an UnsupportedFeature error; the caller decides
// whether to proceed.
const (
	RequiredFeatureOsmSchemaV06 = "OsmSchema-V0.6"
	RequiredFeatureDenseNodes   = "DenseNodes"
)

var supportedRequiredFeatures = map[string]bool{
	RequiredFeatureOsmSchemaV06: true,
	RequiredFeatureDenseNodes:   true,
}

// HeaderBBox is the header's bounding box, in nanodegrees, as declared on
// the wire. It is kept distinct from BoundingBox (used by Filter, in
// decimal degrees) so the two units are never silently conflated.
type HeaderBBox struct {
	Left   NanoDegree
	Right  NanoDegree
	Top    NanoDegree
	Bottom NanoDegree
}

// ToBoundingBox converts the header bbox to decimal degrees.
func (b HeaderBBox) ToBoundingBox() BoundingBox {
	return BoundingBox{
		MinLon: b.Left.ToDegrees(),
		MinLat: b.Bottom.ToDegrees(),
		MaxLon: b.Right.ToDegrees(),
		MaxLat: b.Top.ToDegrees(),
	}
}

// ReplicationInfo is the optional osmosis replication triple on a header.
type ReplicationInfo struct {
	Timestamp int64
	Sequence  int64
	BaseURL   string
}

// NewReplicationInfo validates that timestamp and sequence are
// non-negative, per spec.
func NewReplicationInfo(timestamp, sequence int64, baseURL string) (ReplicationInfo, error) {
	if timestamp < 0 {
		return ReplicationInfo{}, newErr(ErrDecode, fmt.Sprintf("replication timestamp %d is negative", timestamp))
	}

	if sequence < 0 {
		return ReplicationInfo{}, newErr(ErrDecode, fmt.Sprintf("replication sequence %d is negative", sequence))
	}

	return ReplicationInfo{Timestamp: timestamp, Sequence: sequence, BaseURL: baseURL}, nil
}

// HeaderBlock is the contents of the OSMHeader blob.
type HeaderBlock struct {
	RequiredFeatures []string
	OptionalFeatures []string
	WritingProgram   string
	Source           string
	Replication      *ReplicationInfo
	BBox             *HeaderBBox
}

// CheckRequiredFeatures returns an UnsupportedFeature error naming the
// first required feature this reader does not implement.
func (h HeaderBlock) CheckRequiredFeatures() error {
	for _, f := range h.RequiredFeatures {
		if !supportedRequiredFeatures[f] {
			return newErr(ErrUnsupportedFeature, f)
		}
	}

	return nil
}
