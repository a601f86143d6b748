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
	"runtime"
)

const (
	// DefaultBatchSize is the number of blobs fanned out to a single
	// ParMapReduce worker round.
	DefaultBatchSize = 16
)

// DefaultNCpu mirrors the conventional "leave one core for the scheduler"
// heuristic: GOMAXPROCS minus one, floored at one.
func DefaultNCpu() uint16 {
	cpus := uint16(runtime.GOMAXPROCS(-1))

	return max(cpus-1, 1)
}

// readerOptions holds the tunables shared by NewMmapReader and
// NewStreamReader.
type readerOptions struct {
	batchSize           int
	nCPU                uint16
	filter              *Filter
	skipHeader          bool
	toleratePartialTail bool
	logHandler          slog.Handler
	protoBufferSize     int
}

// ReaderOption configures reader construction.
type ReaderOption func(*readerOptions)

// WithBatchSize sets the number of blobs handed to each parallel worker
// round in ParMapReduce.
func WithBatchSize(n int) ReaderOption {
	return func(o *readerOptions) {
		o.batchSize = n
	}
}

// WithNCpus sets the number of goroutines ParMapReduce fans out across.
func WithNCpus(n uint16) ReaderOption {
	return func(o *readerOptions) {
		o.nCPU = n
	}
}

// WithFilter installs a Filter evaluated at blob granularity before any
// element is decoded, and again per-element for predicates a blob header
// alone cannot satisfy.
func WithFilter(f Filter) ReaderOption {
	return func(o *readerOptions) {
		o.filter = &f
	}
}

// WithSkipHeader records whether the caller wants OSMHeader parsing
// skipped. Neither NewMmapReader nor NewStreamReader consults it: the
// OSMHeader blob is parsed and checked during index construction either
// way.
func WithSkipHeader(skip bool) ReaderOption {
	return func(o *readerOptions) {
		o.skipHeader = skip
	}
}

// WithTolerantTail allows a truncated trailing frame to be silently
// dropped rather than surfaced as an error from index construction; see
// BlobIndex.TruncatedEnd.
func WithTolerantTail(tolerate bool) ReaderOption {
	return func(o *readerOptions) {
		o.toleratePartialTail = tolerate
	}
}

// WithLogHandler installs a slog.Handler the Reader's per-blob diagnostics
// are logged through, instead of slog's package default. Index
// construction (BuildBlobIndex) runs before a Reader exists and always
// logs fatal errors through the package default handler, matching the
// teacher's own bare slog.Error/slog.Warn calls with no injected logger.
func WithLogHandler(h slog.Handler) ReaderOption {
	return func(o *readerOptions) {
		o.logHandler = h
	}
}

// WithProtoBufferSize pre-grows the pooled buffer used to hold a blob's
// decompressed bytes to at least n, saving a reallocation on the first
// blob decoded when the caller already knows roughly how large a block's
// payload will be. A zero or negative n (the default) leaves the buffer
// to grow on demand.
func WithProtoBufferSize(n int) ReaderOption {
	return func(o *readerOptions) {
		o.protoBufferSize = n
	}
}

var defaultReaderOptions = readerOptions{
	batchSize:           DefaultBatchSize,
	nCPU:                DefaultNCpu(),
	toleratePartialTail: true,
}

func newReaderOptions(opts ...ReaderOption) readerOptions {
	o := defaultReaderOptions

	for _, opt := range opts {
		opt(&o)
	}

	return o
}
