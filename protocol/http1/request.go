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

// Package http1 parses HTTP/1.1 requests incrementally straight out of
// a receive buffer and drives the upgrade decision (plain request, h2c,
// or WebSocket).
//
// Grounded on protocol/phttp/decoder.go's incremental state-enum parse
// style and internal/splitio's zero-copy CRLF line splitting; unlike
// the teacher, which hands the whole request off to http.ReadRequest
// because it only observes captured traffic, this parser is hand-rolled
// since request parsing sits on the hot path here.
package http1

// Header is one parsed request header, preserving wire order (needed
// for the Connection/Upgrade token scan and for faithful replay in
// access logs).
type Header struct {
	Name  string
	Value string
}

// Request is a fully parsed HTTP/1.1 request line plus headers. Body
// bytes are left in the caller's receive buffer; Request only carries
// the parsed framing fields needed to read them.
type Request struct {
	Method       string
	Path         string
	Query        string
	MajorVersion int
	MinorVersion int
	Headers      []Header

	ContentLength  int64 // -1 if absent
	Chunked        bool
	KeepAlive      bool
	ExpectContinue bool
}

// Header returns the value of the first header matching name
// (case-insensitive), or "" if absent.
func (r *Request) Header(name string) string {
	for _, h := range r.Headers {
		if equalFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// HeaderValues returns every value of headers matching name, in wire
// order (used for the comma-joined Connection token scan).
func (r *Request) HeaderValues(name string) []string {
	var out []string
	for _, h := range r.Headers {
		if equalFold(h.Name, name) {
			out = append(out, h.Value)
		}
	}
	return out
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}
