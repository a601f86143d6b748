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
	"encoding/binary"
	"fmt"

	"github.com/tidwall/mmap"
)

// mmapSource is a blobSource backed by a memory-mapped file. Every blobAt
// call slices directly into the mapped region; no frame is ever copied
// until decompression produces its raw bytes.
type mmapSource struct {
	data []byte
}

func openMmapSource(path string) (*mmapSource, error) {
	data, err := mmap.Open(path, false)
	if err != nil {
		return nil, wrapErr(ErrIO, "mmap open", err)
	}

	return &mmapSource{data: data}, nil
}

func (s *mmapSource) Close() error {
	return mmap.Close(s.data)
}

func (s *mmapSource) blobAt(offset int64) (wireBlob, error) {
	if offset < 0 || offset+4 > int64(len(s.data)) {
		return wireBlob{}, newErr(ErrOutOfRange, fmt.Sprintf("frame offset %d out of range", offset))
	}

	headerLen := int64(binary.BigEndian.Uint32(s.data[offset : offset+4]))
	headerStart := offset + 4

	if headerLen > maxBlobHeaderSize {
		return wireBlob{}, newErr(ErrHeaderTooLarge, fmt.Sprintf("blob header size %d exceeds %d byte limit", headerLen, maxBlobHeaderSize))
	}

	if headerStart+headerLen > int64(len(s.data)) {
		return wireBlob{}, newErr(ErrInvalidFormat, "truncated blob header at indexed offset")
	}

	header, err := parseBlobHeader(s.data[headerStart : headerStart+headerLen])
	if err != nil {
		return wireBlob{}, fmt.Errorf("parse blob header at offset %d: %w", offset, err)
	}

	if header.DataSize < 0 {
		return wireBlob{}, newErr(ErrInvalidFormat, fmt.Sprintf("blob data size %d is negative", header.DataSize))
	}

	if int64(header.DataSize) > maxRawBlobSize {
		return wireBlob{}, newErr(ErrMessageTooLarge, fmt.Sprintf("blob data size %d exceeds %d byte limit", header.DataSize, maxRawBlobSize))
	}

	dataStart := headerStart + headerLen
	dataEnd := dataStart + int64(header.DataSize)

	if dataEnd > int64(len(s.data)) {
		return wireBlob{}, newErr(ErrInvalidFormat, "truncated blob data at indexed offset")
	}

	blob, err := parseBlob(s.data[dataStart:dataEnd])
	if err != nil {
		return wireBlob{}, fmt.Errorf("parse blob at offset %d: %w", offset, err)
	}

	return blob, nil
}

// NewMmapReader opens path as a memory-mapped file, builds a BlobIndex by
// scanning it once, and returns a Reader that decodes elements directly
// out of the mapping with no further copies until decompression. It is
// the preferred constructor for random-access workloads (repeated
// FindBlobsForIDRange lookups, bbox queries over a long-lived file
// handle): the whole file's pages are faulted in lazily by the OS instead
// of being read up front.
func NewMmapReader(path string, opts ...ReaderOption) (*Reader, error) {
	o := newReaderOptions(opts...)
	logger := newLogger(o)

	src, err := openMmapSource(path)
	if err != nil {
		logger.Error("unable to mmap file", "path", path, "error", err)

		return nil, err
	}

	idx, err := BuildBlobIndex(bytes.NewReader(src.data))
	if err != nil {
		logger.Error("unable to build blob index", "path", path, "error", err)

		_ = src.Close()

		return nil, err
	}

	if idx.TruncatedEnd && !o.toleratePartialTail {
		logger.Error("trailing blob frame is truncated", "path", path, "error", idx.Warning())

		_ = src.Close()

		return nil, newErr(ErrInvalidFormat, "trailing blob frame is truncated")
	}

	return &Reader{Header: idx.Header, Index: idx, Stats: NewProcessingStats(), src: src, opts: o, logger: logger}, nil
}
