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

package http1

import (
	"bytes"
	"strconv"
	"strings"

	"golang.org/x/net/http/httpguts"

	"github.com/chenbk85/corehttpd/internal/iobuf"
)

var crlf = []byte("\r\n")

// Parser holds the configured bound on header count; everything else
// about parsing is stateless per call, since the receive buffer
// already holds whatever bytes have arrived.
type Parser struct {
	MaxHeaders int
}

// NewParser returns a Parser bounding requests to maxHeaders headers.
func NewParser(maxHeaders int) *Parser {
	return &Parser{MaxHeaders: maxHeaders}
}

// Parse attempts to parse one complete request from buf's readable
// region. On success it advances buf past the consumed bytes (request
// line + headers + terminating blank line; body bytes are left for the
// caller to read separately) and returns the Request. On incomplete
// input it returns ErrNeedMore and leaves buf untouched. On a malformed
// request it returns an error wrapping ErrMalformedRequest.
func (p *Parser) Parse(buf *iobuf.Buffer) (*Request, error) {
	data := buf.ReadSlice()

	lineEnd := bytes.Index(data, crlf)
	if lineEnd < 0 {
		return nil, ErrNeedMore
	}

	req := &Request{ContentLength: -1}
	if err := parseRequestLine(data[:lineEnd], req); err != nil {
		return nil, err
	}

	pos := lineEnd + 2
	n := p.MaxHeaders
	for {
		next := bytes.Index(data[pos:], crlf)
		if next < 0 {
			return nil, ErrNeedMore
		}
		if next == 0 {
			pos += 2
			break
		}
		if n <= 0 {
			return nil, ErrTooManyHeaders
		}
		n--

		line := data[pos : pos+next]
		h, err := parseHeaderLine(line)
		if err != nil {
			return nil, err
		}
		req.Headers = append(req.Headers, h)
		pos += next + 2
	}

	applyFramingHeaders(req)
	buf.Advance(pos)
	return req, nil
}

func parseRequestLine(line []byte, req *Request) error {
	first := bytes.IndexByte(line, ' ')
	if first < 0 {
		return malformed("missing method")
	}
	method := string(line[:first])
	if !validToken(method) {
		return malformed("invalid method token")
	}

	rest := line[first+1:]
	second := bytes.IndexByte(rest, ' ')
	if second < 0 {
		return malformed("missing request-target")
	}
	target := string(rest[:second])
	version := string(rest[second+1:])

	major, minor, ok := parseVersion(version)
	if !ok {
		return malformed("invalid HTTP version")
	}

	path, query, _ := strings.Cut(target, "?")

	req.Method = method
	req.Path = path
	req.Query = query
	req.MajorVersion = major
	req.MinorVersion = minor
	return nil
}

func parseVersion(v string) (major, minor int, ok bool) {
	if !strings.HasPrefix(v, "HTTP/") {
		return 0, 0, false
	}
	v = v[len("HTTP/"):]
	maj, min, found := strings.Cut(v, ".")
	if !found {
		return 0, 0, false
	}
	ma, err := strconv.Atoi(maj)
	if err != nil {
		return 0, 0, false
	}
	mi, err := strconv.Atoi(min)
	if err != nil {
		return 0, 0, false
	}
	return ma, mi, true
}

func parseHeaderLine(line []byte) (Header, error) {
	colon := bytes.IndexByte(line, ':')
	if colon <= 0 {
		return Header{}, malformed("missing header colon")
	}
	name := string(line[:colon])
	if !httpguts.ValidHeaderFieldName(name) {
		return Header{}, malformed("invalid header field name")
	}
	value := strings.TrimSpace(string(line[colon+1:]))
	if !httpguts.ValidHeaderFieldValue(value) {
		return Header{}, malformed("invalid header field value")
	}
	return Header{Name: name, Value: value}, nil
}

func validToken(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !httpguts.IsTokenRune(r) {
			return false
		}
	}
	return true
}

// applyFramingHeaders derives ContentLength/Chunked/KeepAlive/
// ExpectContinue from the parsed header set, matching RFC 7230 §6.3's
// default-persistence-by-version rule.
func applyFramingHeaders(req *Request) {
	if te := req.Header("Transfer-Encoding"); strings.EqualFold(te, "chunked") {
		req.Chunked = true
	}
	if cl := req.Header("Content-Length"); cl != "" && !req.Chunked {
		if n, err := strconv.ParseInt(cl, 10, 64); err == nil && n >= 0 {
			req.ContentLength = n
		}
	}
	if strings.EqualFold(req.Header("Expect"), "100-continue") {
		req.ExpectContinue = true
	}

	req.KeepAlive = req.MajorVersion == 1 && req.MinorVersion >= 1
	for _, tok := range req.HeaderValues("Connection") {
		for _, t := range strings.Split(tok, ",") {
			switch strings.ToLower(strings.TrimSpace(t)) {
			case "close":
				req.KeepAlive = false
			case "keep-alive":
				req.KeepAlive = true
			}
		}
	}
}
