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

// ElementKind selects which Element variants a Filter admits.
type ElementKind int

const (
	KindNode ElementKind = 1 << iota
	KindWay
	KindRelation
	KindChangeset
)

// KindAll admits every element kind, as does the zero value of
// Filter.Kinds.
const KindAll = KindNode | KindWay | KindRelation | KindChangeset

// IDRange is an inclusive, closed bound on element ids. Filter.IDRanges
// holds an ordered sequence of these, possibly disjoint; an element
// matches when its id falls in any one of them.
type IDRange struct {
	Min int64
	Max int64
}

func (r IDRange) contains(id int64) bool {
	return id >= r.Min && id <= r.Max
}

func (r IDRange) overlaps(min, max int64) bool {
	return max >= r.Min && min <= r.Max
}

// TagFilter requires an element to carry Key. When Value is nil, any value
// for that key matches (presence-only); when non-nil, the tag's value must
// equal *Value exactly.
type TagFilter struct {
	Key   string
	Value *string
}

// Filter describes a predicate over the element stream. A zero Filter
// admits everything. Fields are ANDed together; IDRanges are ORed within
// themselves (any one range matching is enough to satisfy that field),
// while every entry of TagFilters must match.
//
// Filter is evaluated twice: once at blob granularity against a
// BlobIndexEntry (pushdown, cheap, conservative — a blob is skipped only
// when it is certain to contain nothing the filter could admit), and once
// per decoded Element (exact). Pushdown never produces false negatives; it
// may let through blobs that ultimately contain no matching element.
//
// ResolveDependencies, when true, additionally admits a Way or Relation
// that would otherwise be excluded by BBox/TagFilters/Pred, provided it
// references at least one Node that this filter already admitted earlier
// in the same forward pass. Kinds and IDRanges still exclude such an
// element. It relies on the conventional node-before-way-before-relation
// ordering of a PBF file and is only honored by ForEachFiltered and
// CollectFiltered (ForEach passes an empty Filter, and a Filter installed
// via WithFilter is applied without it); ParMapReduce ignores it, since its workers decode blobs out of order and
// in parallel, so "already admitted" has no well-defined meaning there.
type Filter struct {
	Kinds               ElementKind
	IDRanges            []IDRange
	BBox                *BoundingBox
	TagFilters          []TagFilter
	Pred                func(Element) bool
	ResolveDependencies bool
}

func (f Filter) idBounded() bool {
	return len(f.IDRanges) > 0
}

func (f Filter) admitsID(id int64) bool {
	if !f.idBounded() {
		return true
	}

	for _, r := range f.IDRanges {
		if r.contains(id) {
			return true
		}
	}

	return false
}

// AdmitsBlob reports whether a blob could possibly contain an element this
// filter would admit, using only the coarse metadata captured at index
// time. It never inspects tags, so TagFilters and BBox never exclude a
// blob here — only Kinds and the id range do, and only when the index has
// actually classified the blob (BuildBlobIndex leaves HasNode/HasWay/
// HasRel/HasID false until a later enrichment pass populates them, so an
// unclassified blob is always admitted here regardless of Kinds/IDRanges).
func (f Filter) AdmitsBlob(e BlobIndexEntry) bool {
	if f.Kinds != 0 {
		var present ElementKind

		if e.HasNode {
			present |= KindNode
		}

		if e.HasWay {
			present |= KindWay
		}

		if e.HasRel {
			present |= KindRelation
		}

		if present != 0 && f.Kinds&present == 0 {
			return false
		}
	}

	if f.idBounded() && e.HasID {
		admits := false

		for _, r := range f.IDRanges {
			if r.overlaps(e.MinID, e.MaxID) {
				admits = true

				break
			}
		}

		if !admits {
			return false
		}
	}

	return true
}

// Admits reports whether the filter accepts a decoded element.
func (f Filter) Admits(e Element) bool {
	if f.Kinds != 0 && f.Kinds&elementKind(e) == 0 {
		return false
	}

	if !f.admitsID(e.ElementID()) {
		return false
	}

	if f.BBox != nil {
		n, ok := e.(*Node)
		if !ok {
			return false
		}

		if !f.BBox.Contains(n.Lon.ToDegrees(), n.Lat.ToDegrees()) {
			return false
		}
	}

	if len(f.TagFilters) > 0 {
		tags := elementTags(e)

		for _, tf := range f.TagFilters {
			v, ok := tags[tf.Key]
			if !ok {
				return false
			}

			if tf.Value != nil && v != *tf.Value {
				return false
			}
		}
	}

	if f.Pred != nil && !f.Pred(e) {
		return false
	}

	return true
}

func elementKind(e Element) ElementKind {
	switch e.(type) {
	case *Node:
		return KindNode
	case *Way:
		return KindWay
	case *Relation:
		return KindRelation
	case *Changeset:
		return KindChangeset
	default:
		return 0
	}
}

func elementTags(e Element) map[string]string {
	switch v := e.(type) {
	case *Node:
		return v.Tags
	case *Way:
		return v.Tags
	case *Relation:
		return v.Tags
	default:
		return nil
	}
}
