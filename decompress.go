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
	"bytes"
	"compress/bzip2"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
	"github.com/ulikunitz/xz/lzma"

	"github.com/lokrain/osm-pbf/internal/core"
)

// maxRawBlobSize bounds the decompressed size of a single blob payload, per
// the documented format limit.
const maxRawBlobSize = 32 << 20 // 32 MiB

// unpackBlob resolves a parsed Blob's single populated payload field to its
// raw, uncompressed bytes. zlib and lzma are decompressed; raw passes
// through untouched; the OBSOLETE_bzip2_data field is decoded only because
// some pre-2010 extracts still carry it, never produced by this reader's
// write path (which does not exist) or by any modern writer.
func unpackBlob(buf *core.PooledBuffer, b wireBlob) ([]byte, error) {
	if b.RawSize > maxRawBlobSize {
		return nil, newErr(ErrMessageTooLarge, fmt.Sprintf("raw blob size %d exceeds %d byte limit", b.RawSize, maxRawBlobSize))
	}

	switch {
	case b.hasRaw:
		return b.Raw, nil
	case b.hasZlib:
		return inflate(buf, zlib.NewReader, b.ZlibData, int64(b.RawSize))
	case b.hasLzma:
		return inflate(buf, func(r io.Reader) (io.ReadCloser, error) {
			lr, err := lzma.NewReader(r)
			if err != nil {
				return nil, err
			}

			return io.NopCloser(lr), nil
		}, b.LzmaData, int64(b.RawSize))
	case b.hasObsoleteBz2:
		return inflate(buf, func(r io.Reader) (io.ReadCloser, error) {
			return io.NopCloser(bzip2.NewReader(r)), nil
		}, b.ObsoleteBzip2, int64(b.RawSize))
	default:
		return nil, newErr(ErrUnknownCompression, "blob carries no recognized payload field")
	}
}

func inflate(buf *core.PooledBuffer, newReader func(io.Reader) (io.ReadCloser, error), data []byte, rawSize int64) ([]byte, error) {
	rawBufferSize := int(rawSize + bytes.MinRead)
	if rawBufferSize > buf.Cap() {
		buf.Grow(rawBufferSize)
	}

	rdr, err := newReader(bytes.NewReader(data))
	if err != nil {
		return nil, wrapErr(ErrCompression, "open decompressor", err)
	}

	defer rdr.Close()

	n, err := buf.ReadFrom(rdr)
	if err != nil {
		return nil, wrapErr(ErrCompression, "decompress blob", err)
	}

	if n != rawSize {
		return nil, newErr(ErrCompression, fmt.Sprintf("decompressed %d bytes but header declared %d", n, rawSize))
	}

	return buf.Bytes(), nil
}
