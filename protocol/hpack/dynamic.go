// Copyright 2025 The corehttpd Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package hpack

import "github.com/cespare/xxhash/v2"

// dynamicTable is a FIFO of HeaderFields with byte-cost eviction
// (RFC 7541 §4.1: name.len+value.len+32 per entry). Entries are stored
// newest-last; index 1 (HPACK's own numbering) is the most recently
// inserted entry, i.e. the last element of ents.
//
// byName indexes entries by an xxhash of the header name, so indexOf
// need not do a linear scan over a table that can hold hundreds of
// entries per connection under the default 4096-byte budget.
type dynamicTable struct {
	ents    []HeaderField
	byName  map[uint64][]int // hash(name) -> positions in ents, ascending
	size    int
	maxSize int
}

func newDynamicTable(maxSize int) *dynamicTable {
	return &dynamicTable{maxSize: maxSize, byName: make(map[uint64][]int)}
}

func nameHash(name string) uint64 { return xxhash.Sum64String(name) }

// insert adds f to the table, evicting the oldest entries until the
// byte budget is satisfied. An entry larger than maxSize by itself
// empties the table entirely, per RFC 7541 §4.4.
func (t *dynamicTable) insert(f HeaderField) {
	h := nameHash(f.Name)
	t.byName[h] = append(t.byName[h], len(t.ents))
	t.ents = append(t.ents, f)
	t.size += f.size()
	t.evict()
}

func (t *dynamicTable) evict() {
	evicted := 0
	for t.size > t.maxSize && len(t.ents) > 0 {
		t.size -= t.ents[0].size()
		t.ents = t.ents[1:]
		evicted++
	}
	if evicted > 0 {
		t.reindex()
	}
}

// reindex rebuilds byName after a FIFO shift in evict, which
// invalidates every stored position. Called once per evict() call
// rather than once per evicted entry.
func (t *dynamicTable) reindex() {
	for h := range t.byName {
		delete(t.byName, h)
	}
	for i, e := range t.ents {
		h := nameHash(e.Name)
		t.byName[h] = append(t.byName[h], i)
	}
}

// setMaxSize applies a SETTINGS_HEADER_TABLE_SIZE change (or a
// Dynamic-Table-Size-Update instruction from the wire), evicting
// immediately if the new size is smaller.
func (t *dynamicTable) setMaxSize(n int) {
	t.maxSize = n
	t.evict()
}

// at returns the dynamic-table entry for HPACK index idx, where idx=1
// is the newest entry, per RFC 7541 §2.3.3.
func (t *dynamicTable) at(idx int) (HeaderField, bool) {
	if idx < 1 || idx > len(t.ents) {
		return HeaderField{}, false
	}
	return t.ents[len(t.ents)-idx], true
}

// indexOf returns the HPACK dynamic-table index of the newest entry
// matching name (and, if matchValue, value too), or 0 if absent.
func (t *dynamicTable) indexOf(name, value string, matchValue bool) int {
	positions := t.byName[nameHash(name)]
	for i := len(positions) - 1; i >= 0; i-- {
		pos := positions[i]
		e := t.ents[pos]
		if e.Name != name { // hash collision guard
			continue
		}
		if matchValue && e.Value != value {
			continue
		}
		return len(t.ents) - pos
	}
	return 0
}

func (t *dynamicTable) len() int { return len(t.ents) }
