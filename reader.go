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
	"log/slog"

	"github.com/lokrain/osm-pbf/internal/core"
)

// blobSource abstracts the two ways a frame's data can reach the decoder:
// a zero-copy slice into a memory-mapped file, or a freshly read buffer
// from a stream. Either way it returns the still-possibly-compressed Blob
// at the given frame offset.
type blobSource interface {
	blobAt(offset int64) (wireBlob, error)
	Close() error
}

// Reader is the shared element-streaming engine behind NewMmapReader and
// NewStreamReader. Both constructors build one of these around a
// blobSource; the iteration methods in iterator.go only ever touch this
// type, never the source-specific details.
type Reader struct {
	Header *HeaderBlock
	Index  *BlobIndex
	Stats  *ProcessingStats

	src    blobSource
	opts   readerOptions
	logger *slog.Logger
}

// newLogger resolves the slog.Logger a Reader logs through: the handler
// installed via WithLogHandler, or slog's package default when none was
// given.
func newLogger(o readerOptions) *slog.Logger {
	if o.logHandler != nil {
		return slog.New(o.logHandler)
	}

	return slog.Default()
}

// Close releases the underlying source (unmaps the file, or simply drops
// the stream reference).
func (r *Reader) Close() error {
	return r.src.Close()
}

// decodeEntry resolves one indexed OSMData frame to its Elements, applying
// pushdown against the reader's configured filter (if any) before doing
// any decompression or wire parsing, and then dropping every decoded
// element that filter does not admit.
//
// A blob that fails to read, decompress, or parse is a recoverable
// failure: it is logged at slog.Warn with the offset and underlying
// error, counted as a skipped blob in Stats, and decodeEntry returns no
// error, so one corrupt blob in an otherwise-good extract never aborts
// iteration. Errors from constructing the Reader itself (a bad header, a
// truncated index) remain fatal and are returned to the caller.
func (r *Reader) decodeEntry(entry BlobIndexEntry) ([]Element, error) {
	if r.opts.filter != nil && !r.opts.filter.AdmitsBlob(entry) {
		if r.Stats != nil {
			r.Stats.recordBlob(true, 0)
		}

		return nil, nil
	}

	blob, err := r.src.blobAt(entry.Offset)
	if err != nil {
		return r.skipBlob(entry, "unable to read blob", err), nil
	}

	var buf *core.PooledBuffer
	if r.opts.protoBufferSize > 0 {
		buf = core.NewPooledBufferSize(r.opts.protoBufferSize)
	} else {
		buf = core.NewPooledBuffer()
	}

	defer buf.Close()

	data, err := unpackBlob(buf, blob)
	if err != nil {
		return r.skipBlob(entry, "unable to unpack blob", err), nil
	}

	pb, err := parsePrimitiveBlockWire(data)
	if err != nil {
		return r.skipBlob(entry, "unable to parse block", err), nil
	}

	elements, err := DecodeBlock(pb)
	if err != nil {
		return r.skipBlob(entry, "unable to decode block", err), nil
	}

	if r.opts.filter != nil {
		kept := elements[:0]

		for _, e := range elements {
			if r.opts.filter.Admits(e) {
				kept = append(kept, e)
			}
		}

		elements = kept
	}

	if r.Stats != nil {
		r.Stats.recordBlob(false, len(data))
	}

	return elements, nil
}

// skipBlob logs a recoverable per-blob failure and records it as skipped,
// returning nil so the caller treats the blob as contributing no
// elements.
func (r *Reader) skipBlob(entry BlobIndexEntry, msg string, err error) []Element {
	logger := r.logger
	if logger == nil {
		logger = slog.Default()
	}

	logger.Warn(msg, "offset", entry.Offset, "error", err)

	if r.Stats != nil {
		r.Stats.recordBlob(true, 0)
	}

	return nil
}
