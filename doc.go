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

// Package osmpbf is a random-access, zero-copy reader for the OpenStreetMap
// PBF binary container. It turns a byte-addressable file into a streamed or
// parallel feed of typed OSM elements (nodes, ways, relations, changesets)
// with geographically and attribute-filtered access.
//
// A file is opened once with NewMmapReader or NewStreamReader, which builds
// a compact BlobIndex in a single linear pass. From there the Reader serves
// sequential iteration in file order (ForEach, ForEachFiltered,
// CollectFiltered) and parallel map-reduce (ParMapReduce) over that index,
// decompressing each blob on demand and decoding the delta-encoded, string-interned, dense columnar
// representation back into per-element records.
//
// This package implements a read path only: writing PBF, in-place mutation
// and spatial indexing beyond linear per-blob bounding boxes are the
// caller's responsibility.
package osmpbf
