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
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
)

// ProcessingStats accumulates counters across iteration calls (ForEach,
// ForEachFiltered, CollectFiltered, ParMapReduce). A Reader's Stats is
// created once by its constructor and never reset, so its counters sum
// every call made on that Reader. It is safe for concurrent use;
// ParMapReduce's worker goroutines update it directly.
type ProcessingStats struct {
	blobsVisited     atomic.Int64
	blobsSkipped     atomic.Int64
	nodesDecoded     atomic.Int64
	waysDecoded      atomic.Int64
	relsDecoded      atomic.Int64
	elementsAdmitted atomic.Int64
	bytesRead        atomic.Int64
	started          time.Time
}

// NewProcessingStats returns a zeroed ProcessingStats with its clock
// started.
func NewProcessingStats() *ProcessingStats {
	return &ProcessingStats{started: time.Now()}
}

func (s *ProcessingStats) recordBlob(skipped bool, bytes int) {
	s.blobsVisited.Add(1)

	if skipped {
		s.blobsSkipped.Add(1)
	}

	s.bytesRead.Add(int64(bytes))
}

func (s *ProcessingStats) recordElement(e Element, admitted bool) {
	switch e.(type) {
	case *Node:
		s.nodesDecoded.Add(1)
	case *Way:
		s.waysDecoded.Add(1)
	case *Relation:
		s.relsDecoded.Add(1)
	}

	if admitted {
		s.elementsAdmitted.Add(1)
	}
}

// BlobsVisited is the number of OSMData blobs the reader handed to its
// decoder, including the ones counted by BlobsSkipped. Blobs excluded by
// the pushdown of the Filter passed to an iteration call are not counted.
func (s *ProcessingStats) BlobsVisited() int64 { return s.blobsVisited.Load() }

// BlobsSkipped is the number of visited blobs that contributed no
// elements because the Filter installed via WithFilter excluded them at
// pushdown, or because they failed to read, decompress, or decode.
func (s *ProcessingStats) BlobsSkipped() int64 { return s.blobsSkipped.Load() }

// ElementsAdmitted is the number of elements that passed every filter
// stage.
func (s *ProcessingStats) ElementsAdmitted() int64 { return s.elementsAdmitted.Load() }

// Elapsed is the wall-clock time since the stats object was created.
func (s *ProcessingStats) Elapsed() time.Duration { return time.Since(s.started) }

func (s *ProcessingStats) String() string {
	return fmt.Sprintf(
		"blobs=%s (skipped %s) nodes=%s ways=%s relations=%s admitted=%s read=%s in %s",
		humanize.Comma(s.blobsVisited.Load()),
		humanize.Comma(s.blobsSkipped.Load()),
		humanize.Comma(s.nodesDecoded.Load()),
		humanize.Comma(s.waysDecoded.Load()),
		humanize.Comma(s.relsDecoded.Load()),
		humanize.Comma(s.elementsAdmitted.Load()),
		humanize.Bytes(uint64(s.bytesRead.Load())),
		s.Elapsed().Round(time.Millisecond),
	)
}

// IndexStatistics summarizes a BlobIndex: counts and id-range coverage,
// useful for quick sanity checks on an extract before iterating it.
type IndexStatistics struct {
	BlobCount    int
	NodeBlobs    int
	WayBlobs     int
	RelationBlobs int
	MinID        int64
	MaxID        int64
	TruncatedEnd bool
}

// Statistics summarizes a BlobIndex without decoding any element payload.
func (idx *BlobIndex) Statistics() IndexStatistics {
	stats := IndexStatistics{BlobCount: len(idx.Entries), TruncatedEnd: idx.TruncatedEnd}

	first := true

	for _, e := range idx.Entries {
		if e.HasNode {
			stats.NodeBlobs++
		}

		if e.HasWay {
			stats.WayBlobs++
		}

		if e.HasRel {
			stats.RelationBlobs++
		}

		if !e.HasID {
			continue
		}

		if first {
			stats.MinID, stats.MaxID = e.MinID, e.MaxID
			first = false

			continue
		}

		if e.MinID < stats.MinID {
			stats.MinID = e.MinID
		}

		if e.MaxID > stats.MaxID {
			stats.MaxID = e.MaxID
		}
	}

	return stats
}

func (s IndexStatistics) String() string {
	return fmt.Sprintf(
		"%s blobs (%s nodes, %s ways, %s relations), ids [%s, %s], truncated=%t",
		humanize.Comma(int64(s.BlobCount)),
		humanize.Comma(int64(s.NodeBlobs)),
		humanize.Comma(int64(s.WayBlobs)),
		humanize.Comma(int64(s.RelationBlobs)),
		humanize.Comma(s.MinID),
		humanize.Comma(s.MaxID),
		s.TruncatedEnd,
	)
}
