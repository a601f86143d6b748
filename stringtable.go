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

// StringTable is a per-block interning table. Index 0 is reserved and is
// always the empty string.
type StringTable struct {
	s []string
}

// NewStringTable wraps an ordered sequence of strings as a StringTable,
// ensuring index 0 is the empty string.
func NewStringTable(s []string) StringTable {
	if len(s) == 0 || s[0] != "" {
		out := make([]string, 0, len(s)+1)
		out = append(out, "")
		out = append(out, s...)

		return StringTable{s: out}
	}

	return StringTable{s: s}
}

// Len returns the number of entries, including the reserved index 0.
func (t StringTable) Len() int { return len(t.s) }

// Empty reports whether the table holds only the reserved empty string.
func (t StringTable) Empty() bool { return len(t.s) <= 1 }

// Lookup resolves an index, returning ("", false) rather than panicking
// when the index is out of range.
func (t StringTable) Lookup(i uint32) (string, bool) {
	if int(i) >= len(t.s) {
		return "", false
	}

	return t.s[i], true
}

// MustLookup resolves an index or returns a decode error.
func (t StringTable) MustLookup(i uint32) (string, error) {
	s, ok := t.Lookup(i)
	if !ok {
		return "", newErr(ErrDecode, "string table index out of range")
	}

	return s, nil
}
