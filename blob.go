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
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/lokrain/osm-pbf/internal/core"
)

// maxBlobHeaderSize bounds the serialized BlobHeader, per the documented
// format limit.
const maxBlobHeaderSize = 64 << 10 // 64 KiB

// blobKindHeader and blobKindData are the conventional BlobHeader.type
// values used to distinguish the single OSMHeader blob from the OSMData
// blobs that follow it.
const (
	blobKindHeader = "OSMHeader"
	blobKindData   = "OSMData"
)

// rawBlob is one frame of the container format: a decoded header plus its
// still-possibly-compressed payload.
type rawBlob struct {
	Kind   string
	Offset int64 // byte offset of the length prefix, for index construction
	Header wireBlobHeader
	Blob   wireBlob
}

// frameReader reads successive length-prefixed [header][blob] frames off
// of an io.Reader, tracking the stream offset so callers can build a blob
// index as they go.
type frameReader struct {
	r      io.Reader
	pos    int64
	buf    *core.PooledBuffer
	closed bool
}

func newFrameReader(r io.Reader) *frameReader {
	return &frameReader{r: r, buf: core.NewPooledBuffer()}
}

func (f *frameReader) Close() error {
	if f.closed {
		return nil
	}

	f.closed = true

	return f.buf.Close()
}

// ReadFrame reads the next frame, returning io.EOF (wrapped by errors.Is)
// when the stream ends cleanly on a frame boundary. A length prefix
// followed by a short read is reported as an invalid-format error wrapping
// io.ErrUnexpectedEOF rather than io.EOF, since it indicates a truncated
// file, not a clean end.
func (f *frameReader) ReadFrame() (rawBlob, error) {
	start := f.pos

	var sizeBuf [4]byte

	n, err := io.ReadFull(f.r, sizeBuf[:])
	if err != nil {
		if errors.Is(err, io.EOF) && n == 0 {
			return rawBlob{}, io.EOF
		}

		return rawBlob{}, wrapErr(ErrIO, "read frame length prefix", err)
	}

	f.pos += 4

	headerLen := binary.BigEndian.Uint32(sizeBuf[:])
	if headerLen > maxBlobHeaderSize {
		return rawBlob{}, newErr(ErrHeaderTooLarge, fmt.Sprintf("blob header size %d exceeds %d byte limit", headerLen, maxBlobHeaderSize))
	}

	f.buf.Reset()

	if _, err := io.CopyN(f.buf, f.r, int64(headerLen)); err != nil {
		if errors.Is(err, io.EOF) {
			return rawBlob{}, wrapErr(ErrInvalidFormat, "truncated blob header", io.ErrUnexpectedEOF)
		}

		return rawBlob{}, wrapErr(ErrIO, "read blob header", err)
	}

	f.pos += int64(headerLen)

	header, err := parseBlobHeader(f.buf.Bytes())
	if err != nil {
		return rawBlob{}, fmt.Errorf("parse blob header: %w", err)
	}

	if header.DataSize < 0 {
		return rawBlob{}, newErr(ErrInvalidFormat, fmt.Sprintf("blob data size %d is negative", header.DataSize))
	}

	if header.DataSize > maxRawBlobSize {
		return rawBlob{}, newErr(ErrMessageTooLarge, fmt.Sprintf("blob data size %d exceeds %d byte limit", header.DataSize, maxRawBlobSize))
	}

	data := make([]byte, header.DataSize)

	if _, err := io.ReadFull(f.r, data); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return rawBlob{}, wrapErr(ErrInvalidFormat, "truncated blob data", io.ErrUnexpectedEOF)
		}

		return rawBlob{}, wrapErr(ErrIO, "read blob data", err)
	}

	f.pos += int64(header.DataSize)

	blob, err := parseBlob(data)
	if err != nil {
		return rawBlob{}, fmt.Errorf("parse blob: %w", err)
	}

	return rawBlob{Kind: header.Type, Offset: start, Header: header, Blob: blob}, nil
}
