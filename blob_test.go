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
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func encodeBlobHeader(kind string, dataSize int) []byte {
	var buf []byte
	buf = protowire.AppendTag(buf, 1, protowire.BytesType)
	buf = protowire.AppendString(buf, kind)
	buf = protowire.AppendTag(buf, 3, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(dataSize))

	return buf
}

func encodeRawBlob(raw []byte) []byte {
	var buf []byte
	buf = protowire.AppendTag(buf, 1, protowire.BytesType)
	buf = protowire.AppendBytes(buf, raw)

	return buf
}

func encodeFrame(kind string, raw []byte) []byte {
	header := encodeBlobHeader(kind, len(encodeRawBlob(raw)))
	blob := encodeRawBlob(raw)

	var lenPrefix [4]byte
	binary.BigEndian.PutUint32(lenPrefix[:], uint32(len(header)))

	out := append([]byte{}, lenPrefix[:]...)
	out = append(out, header...)
	out = append(out, blob...)

	return out
}

func TestFrameReaderReadsValidFrame(t *testing.T) {
	frame := encodeFrame(blobKindData, []byte("hello"))

	fr := newFrameReader(bytes.NewReader(frame))
	defer fr.Close()

	rb, err := fr.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, blobKindData, rb.Kind)
	assert.Equal(t, int64(0), rb.Offset)
	assert.True(t, rb.Blob.hasRaw)
	assert.Equal(t, []byte("hello"), rb.Blob.Raw)
}

func TestFrameReaderReadsSuccessiveFrames(t *testing.T) {
	var stream []byte
	stream = append(stream, encodeFrame(blobKindHeader, []byte("h"))...)
	stream = append(stream, encodeFrame(blobKindData, []byte("d1"))...)
	stream = append(stream, encodeFrame(blobKindData, []byte("d2"))...)

	fr := newFrameReader(bytes.NewReader(stream))
	defer fr.Close()

	first, err := fr.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, blobKindHeader, first.Kind)

	second, err := fr.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, blobKindData, second.Kind)
	assert.True(t, second.Offset > first.Offset)

	third, err := fr.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, []byte("d2"), third.Blob.Raw)

	_, err = fr.ReadFrame()
	assert.ErrorIs(t, err, io.EOF)
}

func TestFrameReaderCleanEOFAtBoundary(t *testing.T) {
	frame := encodeFrame(blobKindData, []byte("x"))

	fr := newFrameReader(bytes.NewReader(frame))
	defer fr.Close()

	_, err := fr.ReadFrame()
	require.NoError(t, err)

	_, err = fr.ReadFrame()
	assert.True(t, errors.Is(err, io.EOF))
}

func TestFrameReaderTruncatedTailIsUnexpectedEOF(t *testing.T) {
	frame := encodeFrame(blobKindData, []byte("x"))
	truncated := frame[:len(frame)-2] // chop off the tail of the blob payload

	fr := newFrameReader(bytes.NewReader(truncated))
	defer fr.Close()

	_, err := fr.ReadFrame()
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
}

func TestFrameReaderHeaderTooLargeIsError(t *testing.T) {
	var lenPrefix [4]byte
	binary.BigEndian.PutUint32(lenPrefix[:], maxBlobHeaderSize+1)

	fr := newFrameReader(bytes.NewReader(lenPrefix[:]))
	defer fr.Close()

	_, err := fr.ReadFrame()
	require.Error(t, err)
	assert.ErrorIs(t, err, &Error{Kind: ErrHeaderTooLarge})
}

func TestFrameReaderDataTooLargeIsError(t *testing.T) {
	header := encodeBlobHeader(blobKindData, maxRawBlobSize+1)

	var lenPrefix [4]byte
	binary.BigEndian.PutUint32(lenPrefix[:], uint32(len(header)))

	stream := append([]byte{}, lenPrefix[:]...)
	stream = append(stream, header...)

	fr := newFrameReader(bytes.NewReader(stream))
	defer fr.Close()

	_, err := fr.ReadFrame()
	require.Error(t, err)
	assert.ErrorIs(t, err, &Error{Kind: ErrMessageTooLarge})
}

// TestFrameReaderNegativeDataSizeIsError covers a crafted datasize whose
// low 32 bits carry the sign bit: the wire-level value 2^31 parses as the
// int64 varint 2147483648, but wire.go truncates BlobHeader.datasize to
// int32, producing -2147483648. Without an explicit sign check this would
// reach make([]byte, header.DataSize) and panic.
func TestFrameReaderNegativeDataSizeIsError(t *testing.T) {
	header := encodeBlobHeader(blobKindData, 1<<31)

	var lenPrefix [4]byte
	binary.BigEndian.PutUint32(lenPrefix[:], uint32(len(header)))

	stream := append([]byte{}, lenPrefix[:]...)
	stream = append(stream, header...)

	fr := newFrameReader(bytes.NewReader(stream))
	defer fr.Close()

	_, err := fr.ReadFrame()
	require.Error(t, err)
	assert.ErrorIs(t, err, &Error{Kind: ErrInvalidFormat})
}
