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

// Package response implements spec §4.G's response pipeline: Range
// negotiation, gzip negotiation by content type, and the send loops
// that drive a filecache.Reader out over either an HTTP/1 connection
// or an HTTP/2 stream's flow-controlled DATA frames.
//
// There is no teacher analog (the teacher never serves files); the
// option-struct/constructor shape is grounded on protocol/phttp/decoder.go's
// NewDecoder(..., options common.Options) convention, and error
// formatting uses the same github.com/pkg/errors idiom as every other
// package in this tree.
package response

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/munnerz/goautoneg"

	"github.com/chenbk85/corehttpd/filecache"
)

// compressibleTypes is the MIME allowlist gzip negotiation checks
// against; spec §1 excludes MIME table lookup itself (an external
// collaborator), so this is not a general content-type classifier, just
// the small fixed set of types this engine is willing to compress.
var compressibleTypes = map[string]bool{
	"text/plain":              true,
	"text/html":               true,
	"text/css":                true,
	"text/javascript":         true,
	"application/javascript":  true,
	"application/json":        true,
	"application/xml":         true,
	"image/svg+xml":           true,
}

// Range is a parsed byte-range request (spec §4.G).
type Range struct {
	Start, End int64 // inclusive, both resolved against the file size
}

// ParseRange parses a "bytes=start-end" header value against size.
// Either bound may be omitted ("bytes=500-" or "bytes=-500"); an
// absent end defaults to size-1. ok is false if header is empty or
// doesn't parse as a single byte range (multi-range requests are out
// of scope for this core).
func ParseRange(header string, size int64) (r Range, ok bool) {
	const prefix = "bytes="
	if !strings.HasPrefix(header, prefix) {
		return Range{}, false
	}
	spec := strings.TrimPrefix(header, prefix)
	if strings.Contains(spec, ",") {
		return Range{}, false
	}

	parts := strings.SplitN(spec, "-", 2)
	if len(parts) != 2 {
		return Range{}, false
	}

	startStr, endStr := parts[0], parts[1]
	switch {
	case startStr == "" && endStr == "":
		return Range{}, false
	case startStr == "":
		// Suffix range: last N bytes.
		n, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil || n <= 0 {
			return Range{}, false
		}
		start := size - n
		if start < 0 {
			start = 0
		}
		return Range{Start: start, End: size - 1}, true
	default:
		start, err := strconv.ParseInt(startStr, 10, 64)
		if err != nil || start < 0 || start >= size {
			return Range{}, false
		}
		end := size - 1
		if endStr != "" {
			e, err := strconv.ParseInt(endStr, 10, 64)
			if err != nil || e < start {
				return Range{}, false
			}
			if e < end {
				end = e
			}
		}
		return Range{Start: start, End: end}, true
	}
}

// ContentRange formats the Content-Range header value for r against
// the full file size.
func (r Range) ContentRange(size int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, size)
}

// Length is the number of bytes the range covers.
func (r Range) Length() int64 { return r.End - r.Start + 1 }

// NegotiateGzip reports whether the response for contentType should be
// gzip-compressed, given the request's Accept-Encoding header. It
// requires both a compressible content type and a client that
// actually prefers gzip over identity.
func NegotiateGzip(acceptEncoding, contentType string) bool {
	if base, _, ok := strings.Cut(contentType, ";"); ok {
		contentType = base
	}
	contentType = strings.TrimSpace(contentType)
	if !compressibleTypes[contentType] {
		return false
	}
	if acceptEncoding == "" {
		return false
	}
	best := goautoneg.Negotiate(acceptEncoding, []string{"gzip", "identity"})
	return best == "gzip"
}

// Plan is the resolved outcome of negotiating a GET/HEAD request
// against a cached file: the status line, headers to emit, and the
// payload source (whichever of Bytes/Reader filecache.Result set).
type Plan struct {
	Status        int
	ContentLength int64
	ContentRange  string // empty unless Status == 206
	ContentType   string
	GzipEncoded   bool

	Body   []byte
	Reader filecache.Reader
}

// NewPlan resolves res (already fetched from the cache at the
// negotiated compress setting) against an optional Range header,
// producing the status/headers a handler writes out before streaming
// Body/Reader.
func NewPlan(res filecache.Result, rangeHeader, contentType string, gzipped bool) (Plan, error) {
	p := Plan{
		Status:        200,
		ContentLength: res.Size,
		ContentType:   contentType,
		GzipEncoded:   gzipped,
		Body:          res.Bytes,
		Reader:        res.Reader,
	}

	if rangeHeader == "" || gzipped {
		// Range + compression together would require recomputing
		// offsets against the compressed stream; spec §4.G scopes
		// Range to the uncompressed case only.
		return p, nil
	}

	r, ok := ParseRange(rangeHeader, res.Size)
	if !ok {
		return p, nil
	}

	p.Status = 206
	p.ContentRange = r.ContentRange(res.Size)
	p.ContentLength = r.Length()

	if p.Body != nil {
		end := r.End + 1
		if end > int64(len(p.Body)) {
			end = int64(len(p.Body))
		}
		p.Body = p.Body[r.Start:end]
		return p, nil
	}

	if p.Reader != nil {
		if err := p.Reader.SeekTo(r.Start); err != nil {
			return Plan{}, err
		}
	}
	return p, nil
}
