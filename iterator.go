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

	"github.com/destel/rill"
)

// ForEach visits every element in the file, in blob file order, stopping
// and returning the first error fn produces. A blob that fails to read,
// decompress, or decode is logged and skipped rather than returned (see
// decodeEntry). It honors any Filter installed via WithFilter.
func (r *Reader) ForEach(fn func(Element) error) error {
	return r.ForEachFiltered(Filter{}, fn)
}

// dependencyTracker records the ids of Node elements a single sequential
// pass has admitted, so Filter.ResolveDependencies can let through a Way
// or Relation that references one of them even though it fails the
// filter's other predicates on its own. It assumes the conventional
// node-before-way-before-relation ordering of a PBF file; an element whose
// dependency appears later in the file is not retroactively admitted.
type dependencyTracker struct {
	nodeIDs map[int64]struct{}
}

func newDependencyTracker() *dependencyTracker {
	return &dependencyTracker{nodeIDs: make(map[int64]struct{})}
}

func (d *dependencyTracker) observe(e Element) {
	if n, ok := e.(*Node); ok {
		d.nodeIDs[n.ID] = struct{}{}
	}
}

// admits reports whether e references an already-admitted node, the only
// dependency relationship ResolveDependencies currently honors.
func (d *dependencyTracker) admits(e Element) bool {
	switch v := e.(type) {
	case *Way:
		for _, ref := range v.Refs {
			if _, ok := d.nodeIDs[ref]; ok {
				return true
			}
		}
	case *Relation:
		for _, m := range v.Members {
			if m.Type == MemberNode {
				if _, ok := d.nodeIDs[m.ID]; ok {
					return true
				}
			}
		}
	}

	return false
}

// ForEachFiltered visits every element admitted by both the reader's
// installed filter (if any) and f, in blob file order.
func (r *Reader) ForEachFiltered(f Filter, fn func(Element) error) error {
	var deps *dependencyTracker
	if f.ResolveDependencies {
		deps = newDependencyTracker()
	}

	for _, entry := range r.Index.Entries {
		if !f.AdmitsBlob(entry) {
			continue
		}

		elements, err := r.decodeEntry(entry)
		if err != nil {
			return err
		}

		for _, e := range elements {
			admitted := f.Admits(e)

			if !admitted && deps != nil && (f.Kinds == 0 || f.Kinds&elementKind(e) != 0) && f.admitsID(e.ElementID()) {
				admitted = deps.admits(e)
			}

			if r.Stats != nil {
				r.Stats.recordElement(e, admitted)
			}

			if admitted && deps != nil {
				deps.observe(e)
			}

			if !admitted {
				continue
			}

			if err := fn(e); err != nil {
				return err
			}
		}
	}

	return nil
}

// CollectFiltered gathers every admitted element into a slice, in blob
// file order. For a bbox or id-range query over a large extract, prefer
// ForEachFiltered unless the full result set is genuinely needed at once.
func (r *Reader) CollectFiltered(f Filter) ([]Element, error) {
	var out []Element

	err := r.ForEachFiltered(f, func(e Element) error {
		out = append(out, e)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// ParMapReduce fans the admitted blobs of f out across up to r's
// configured NCpu goroutines, batched r.opts.batchSize entries at a time,
// applies mapFn to every admitted element, and folds the per-worker
// partial results into one value with combine. combine must be
// associative and commutative: ParMapReduce makes no ordering guarantee
// across blobs, workers, or batches. zero is combine's identity element,
// returned unchanged when no element is admitted. f.ResolveDependencies is
// ignored here: workers decode batches out of order and in parallel, so
// "already admitted" has no well-defined meaning across them.
func ParMapReduce[T any](r *Reader, f Filter, mapFn func(Element) T, combine func(a, b T) T, zero T) (T, error) {
	entries := make([]BlobIndexEntry, 0, len(r.Index.Entries))

	for _, e := range r.Index.Entries {
		if f.AdmitsBlob(e) {
			entries = append(entries, e)
		}
	}

	if len(entries) == 0 {
		return zero, nil
	}

	batchSize := r.opts.batchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	var batches [][]BlobIndexEntry

	for i := 0; i < len(entries); i += batchSize {
		end := min(i+batchSize, len(entries))
		batches = append(batches, entries[i:end])
	}

	workers := int(r.opts.nCPU)
	if workers <= 0 {
		workers = 1
	}

	workers = min(workers, len(batches))

	work := make(chan []BlobIndexEntry)
	results := make(chan rill.Try[T], workers)
	done := make(chan struct{})

	defer close(done)

	for i := 0; i < workers; i++ {
		go func() {
			acc := zero

			for batch := range work {
				for _, entry := range batch {
					elements, err := r.decodeEntry(entry)
					if err != nil {
						results <- rill.Try[T]{Error: fmt.Errorf("map-reduce blob at offset %d: %w", entry.Offset, err)}

						return
					}

					for _, e := range elements {
						admitted := f.Admits(e)

						if r.Stats != nil {
							r.Stats.recordElement(e, admitted)
						}

						if !admitted {
							continue
						}

						acc = combine(acc, mapFn(e))
					}
				}
			}

			results <- rill.Try[T]{Value: acc}
		}()
	}

	go func() {
		defer close(work)

		for _, b := range batches {
			select {
			case work <- b:
			case <-done:
				return
			}
		}
	}()

	acc := zero

	for i := 0; i < workers; i++ {
		res := <-results
		if res.Error != nil {
			return zero, res.Error
		}

		acc = combine(acc, res.Value)
	}

	return acc, nil
}
