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
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/lokrain/osm-pbf/internal/core"
)

// BlobIndexEntry describes one OSMData frame discovered while building a
// BlobIndex: its position in the stream and, where known, the range of
// element ids it contains. BuildBlobIndex never decompresses an OSMData
// frame, so MinID/MaxID/HasID/HasNode/HasWay/HasRel stay at their zero
// values until a later, dedicated enrichment pass fills them in; every
// pushdown that consults them must treat "unknown" as "cannot exclude".
type BlobIndexEntry struct {
	Offset  int64 // byte offset of the frame's length prefix
	MinID   int64
	MaxID   int64
	HasID   bool // true only once a later pass has populated MinID/MaxID
	HasNode bool
	HasWay  bool
	HasRel  bool
}

// BlobIndex is the result of a single forward scan over a PBF stream: the
// OSMHeader frame's offset and one entry per OSMData frame, in file order.
// It never holds decoded elements, only offsets, so it stays small and
// cheap to build even for planet-scale extracts.
type BlobIndex struct {
	HeaderOffset int64
	HasHeader    bool
	Header       *HeaderBlock
	Entries      []BlobIndexEntry
	TruncatedEnd bool // a trailing partial frame was discarded
	truncDetail  string
}

// BuildBlobIndex performs one forward scan of r, classifying every frame by
// its header.type. Only the single OSMHeader blob is decompressed and
// wire-parsed, to validate required features and surface the file's
// bounding box; every OSMData frame is recorded by offset alone, with no
// decompression and no wire parse, so a single pass over an arbitrarily
// large extract stays cheap. A truncated trailing frame (a length prefix
// with no matching data following it) is tolerated and reported via
// TruncatedEnd/Warning rather than failing the whole scan, so a
// partially-downloaded extract remains usable up to its last complete
// blob.
func BuildBlobIndex(r io.Reader) (*BlobIndex, error) {
	fr := newFrameReader(r)
	defer fr.Close()

	idx := &BlobIndex{}
	buf := core.NewPooledBuffer()

	defer buf.Close()

	for {
		fb, err := fr.ReadFrame()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return idx, nil
			}

			if errors.Is(err, io.ErrUnexpectedEOF) {
				idx.TruncatedEnd = true
				idx.truncDetail = err.Error()

				return idx, nil
			}

			return nil, err
		}

		switch fb.Kind {
		case blobKindHeader:
			idx.HeaderOffset = fb.Offset
			idx.HasHeader = true

			buf.Reset()

			data, err := unpackBlob(buf, fb.Blob)
			if err != nil {
				return nil, fmt.Errorf("index header blob: %w", err)
			}

			h, err := parseHeaderBlockWire(data)
			if err != nil {
				return nil, fmt.Errorf("index header blob: %w", err)
			}

			if err := h.CheckRequiredFeatures(); err != nil {
				slog.Error("unsupported required feature in OSMHeader", "error", err)

				return nil, err
			}

			idx.Header = h
		case blobKindData:
			idx.Entries = append(idx.Entries, BlobIndexEntry{Offset: fb.Offset})
		}
	}
}

// Truncated reports whether the scan that built this index stopped at a
// trailing, incomplete frame rather than a clean frame boundary.
func (idx *BlobIndex) Truncated() bool {
	return idx.TruncatedEnd
}

// Warning returns a non-nil error describing the truncation Truncated
// reports, or nil when the scan reached a clean end of stream.
func (idx *BlobIndex) Warning() error {
	if !idx.TruncatedEnd {
		return nil
	}

	detail := idx.truncDetail
	if detail == "" {
		detail = "trailing blob frame is truncated"
	}

	return newErr(ErrInvalidFormat, detail)
}

// FindBlobsForIDRange returns the entries whose id range overlaps
// [minID, maxID], in file order. Since BuildBlobIndex never populates
// per-entry id ranges, every entry has HasID == false until a future
// enrichment pass fills them in, so this currently always returns nil;
// it is kept as the sanctioned extension point for that pass rather than
// removed.
func (idx *BlobIndex) FindBlobsForIDRange(minID, maxID int64) []BlobIndexEntry {
	var out []BlobIndexEntry

	for _, e := range idx.Entries {
		if !e.HasID {
			continue
		}

		if e.MaxID < minID || e.MinID > maxID {
			continue
		}

		out = append(out, e)
	}

	return out
}
