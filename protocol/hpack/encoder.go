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

// Encoder holds one connection's dynamic table and encodes
// HeaderFields into wire representations one at a time, applying the
// indexing policy from spec §4.C.
type Encoder struct {
	dyn *dynamicTable
}

// NewEncoder returns an Encoder with a dynamic table bounded at
// maxTableSize bytes.
func NewEncoder(maxTableSize int) *Encoder {
	return &Encoder{dyn: newDynamicTable(maxTableSize)}
}

// SetMaxTableSize applies a peer-advertised HEADER_TABLE_SIZE change.
func (e *Encoder) SetMaxTableSize(n int) { e.dyn.setMaxSize(n) }

// Append encodes f and appends its wire representation to dst.
func (e *Encoder) Append(dst []byte, f HeaderField) []byte {
	if idx, ok := staticPairIndex[f]; ok {
		return appendInteger(dst, 7, 0x80, idx)
	}
	if idx := e.dyn.indexOf(f.Name, f.Value, true); idx > 0 {
		return appendInteger(dst, 7, 0x80, staticTableSize+idx)
	}

	nameIdx, haveName := e.nameIndex(f.Name)

	switch {
	case isNeverIndexedCookie(f.Name, f.Value):
		return e.appendLiteral(dst, 0x10, 4, nameIdx, haveName, f)
	case isInSet(neverIndexedNames, f.Name):
		return e.appendLiteral(dst, 0x10, 4, nameIdx, haveName, f)
	case isInSet(withoutIndexingNames, f.Name):
		return e.appendLiteral(dst, 0x00, 4, nameIdx, haveName, f)
	default:
		dst = e.appendLiteral(dst, 0x40, 6, nameIdx, haveName, f)
		e.dyn.insert(f)
		return dst
	}
}

func isInSet(set map[string]struct{}, name string) bool {
	_, ok := set[name]
	return ok
}

// nameIndex returns the combined static+dynamic 1-based index of a
// header name with any value, preferring the static table.
func (e *Encoder) nameIndex(name string) (idx int, ok bool) {
	if i, ok := staticNameIndex[name]; ok {
		return i, true
	}
	if i := e.dyn.indexOf(name, "", false); i > 0 {
		return staticTableSize + i, true
	}
	return 0, false
}

func (e *Encoder) appendLiteral(dst []byte, highBits byte, prefixBits int, nameIdx int, haveName bool, f HeaderField) []byte {
	if haveName {
		dst = appendInteger(dst, prefixBits, highBits, nameIdx)
	} else {
		dst = append(dst, highBits)
		dst = appendString(dst, f.Name)
	}
	return appendString(dst, f.Value)
}
