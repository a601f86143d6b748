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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSampleFile(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "sample.osm.pbf")
	require.NoError(t, os.WriteFile(path, buildSamplePBF(t), 0o600))

	return path
}

func TestNewMmapReaderOpensHeaderAndIndex(t *testing.T) {
	r, err := NewMmapReader(writeSampleFile(t))
	require.NoError(t, err)
	defer r.Close()

	require.NotNil(t, r.Header)
	assert.Len(t, r.Index.Entries, 2)
}

func TestMmapReaderForEachMatchesStreamReader(t *testing.T) {
	path := writeSampleFile(t)

	mr, err := NewMmapReader(path)
	require.NoError(t, err)
	defer mr.Close()

	var mmapIDs []int64
	require.NoError(t, mr.ForEach(func(e Element) error {
		mmapIDs = append(mmapIDs, e.ElementID())

		return nil
	}))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	sr, err := NewStreamReader(f)
	require.NoError(t, err)
	defer sr.Close()

	var streamIDs []int64
	require.NoError(t, sr.ForEach(func(e Element) error {
		streamIDs = append(streamIDs, e.ElementID())

		return nil
	}))

	assert.Equal(t, streamIDs, mmapIDs)
}

func TestNewMmapReaderRejectsMissingFile(t *testing.T) {
	_, err := NewMmapReader(filepath.Join(t.TempDir(), "does-not-exist.osm.pbf"))
	assert.Error(t, err)
}

func TestMmapSourceBlobAtRejectsNegativeDataSize(t *testing.T) {
	header := encodeBlobHeader(blobKindData, 1<<31)

	var lenPrefix [4]byte
	binary.BigEndian.PutUint32(lenPrefix[:], uint32(len(header)))

	data := append([]byte{}, lenPrefix[:]...)
	data = append(data, header...)

	src := &mmapSource{data: data}

	_, err := src.blobAt(0)
	require.Error(t, err)
	assert.ErrorIs(t, err, &Error{Kind: ErrInvalidFormat})
}
