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
	"fmt"
	"io"
	"sync"
)

// streamSource is a blobSource backed by an io.ReadSeeker. Unlike
// mmapSource, every blobAt call seeks and performs a fresh read, so
// repeated random-access lookups over a streamSource cost one syscall
// round trip each; NewStreamReader exists for inputs that cannot be
// memory-mapped (pipes, network-backed readers, files larger than the
// address space allows), not as the default choice.
type streamSource struct {
	rs   io.ReadSeeker
	base int64 // stream position BuildBlobIndex started scanning from

	// mu serializes each blobAt's Seek+Read sequence, since ParMapReduce
	// workers call blobAt concurrently on the one shared rs.
	mu sync.Mutex
}

func (s *streamSource) Close() error {
	if c, ok := s.rs.(io.Closer); ok {
		return c.Close()
	}

	return nil
}

func (s *streamSource) blobAt(offset int64) (wireBlob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.rs.Seek(s.base+offset, io.SeekStart); err != nil {
		return wireBlob{}, wrapErr(ErrIO, "seek to frame", err)
	}

	var sizeBuf [4]byte

	if _, err := io.ReadFull(s.rs, sizeBuf[:]); err != nil {
		return wireBlob{}, wrapErr(ErrIO, "read frame length prefix", err)
	}

	headerLen := binary.BigEndian.Uint32(sizeBuf[:])
	if headerLen > maxBlobHeaderSize {
		return wireBlob{}, newErr(ErrHeaderTooLarge, fmt.Sprintf("blob header size %d exceeds %d byte limit", headerLen, maxBlobHeaderSize))
	}

	headerBuf := make([]byte, headerLen)
	if _, err := io.ReadFull(s.rs, headerBuf); err != nil {
		return wireBlob{}, wrapErr(ErrIO, "read blob header", err)
	}

	header, err := parseBlobHeader(headerBuf)
	if err != nil {
		return wireBlob{}, fmt.Errorf("parse blob header at offset %d: %w", offset, err)
	}

	if header.DataSize < 0 {
		return wireBlob{}, newErr(ErrInvalidFormat, fmt.Sprintf("blob data size %d is negative", header.DataSize))
	}

	if header.DataSize > maxRawBlobSize {
		return wireBlob{}, newErr(ErrMessageTooLarge, fmt.Sprintf("blob data size %d exceeds %d byte limit", header.DataSize, maxRawBlobSize))
	}

	dataBuf := make([]byte, header.DataSize)
	if _, err := io.ReadFull(s.rs, dataBuf); err != nil {
		return wireBlob{}, wrapErr(ErrIO, "read blob data", err)
	}

	blob, err := parseBlob(dataBuf)
	if err != nil {
		return wireBlob{}, fmt.Errorf("parse blob at offset %d: %w", offset, err)
	}

	return blob, nil
}

// NewStreamReader builds a BlobIndex by scanning rs once from its current
// position, then returns a Reader that re-seeks into rs for each frame it
// decodes. Unlike NewMmapReader, every blob read after indexing costs a
// Seek plus a Read; choose this constructor when the input cannot be
// memory-mapped.
func NewStreamReader(rs io.ReadSeeker, opts ...ReaderOption) (*Reader, error) {
	o := newReaderOptions(opts...)
	logger := newLogger(o)

	start, err := rs.Seek(0, io.SeekCurrent)
	if err != nil {
		logger.Error("unable to determine stream start", "error", err)

		return nil, wrapErr(ErrIO, "determine stream start", err)
	}

	idx, err := BuildBlobIndex(rs)
	if err != nil {
		logger.Error("unable to build blob index", "error", err)

		return nil, err
	}

	if idx.TruncatedEnd && !o.toleratePartialTail {
		logger.Error("trailing blob frame is truncated", "error", idx.Warning())

		return nil, newErr(ErrInvalidFormat, "trailing blob frame is truncated")
	}

	if _, err := rs.Seek(start, io.SeekStart); err != nil {
		logger.Error("unable to rewind stream after indexing", "error", err)

		return nil, wrapErr(ErrIO, "rewind stream after indexing", err)
	}

	src := &streamSource{rs: rs, base: start}

	return &Reader{Header: idx.Header, Index: idx, Stats: NewProcessingStats(), src: src, opts: o, logger: logger}, nil
}
