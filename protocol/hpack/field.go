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

// Package hpack implements RFC 7541 header compression: the static and
// dynamic header tables, the N-bit prefix integer codec, the fixed
// Huffman code from Appendix B, and the encode/decode indexing policy.
//
// The teacher (protocol/phttp2/headerfield.go) only decodes HPACK, by
// delegating entirely to github.com/dgrr/http2's fasthttp2.HPACK; since
// encoding plus the dynamic table are core to this engine, this package
// is an original implementation grounded directly in RFC 7541, kept
// naming-compatible with the teacher's HeaderField/HeaderFields shape.
package hpack

// HeaderField is one name/value pair, matching the teacher's
// phttp2.HeaderField naming.
type HeaderField struct {
	Name  string
	Value string
}

// size is the RFC 7541 §4.1 byte-cost accounting used by the dynamic
// table's eviction policy: name length + value length + 32.
func (f HeaderField) size() int {
	return len(f.Name) + len(f.Value) + 32
}

// Sets not-indexed by the incremental-indexing default: never written
// into the dynamic table regardless of whether the name is already
// known, per spec §4.C's indexing policy.
var withoutIndexingNames = map[string]struct{}{
	":path":             {},
	"content-length":    {},
	"if-modified-since": {},
	"if-none-match":     {},
	"location":          {},
	"set-cookie":        {},
}

var neverIndexedNames = map[string]struct{}{
	"authorization": {},
}

// isNeverIndexedCookie matches the "short cookie" rule from spec §4.C:
// a short enough Cookie value is treated as sensitive and encoded
// never-indexed rather than with incremental indexing.
func isNeverIndexedCookie(name, value string) bool {
	return name == "cookie" && len(value) < 20
}
