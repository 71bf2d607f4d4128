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

package datasrv

import (
	"mime"
	"path/filepath"

	"github.com/chenbk85/corehttpd/filecache"
	"github.com/chenbk85/corehttpd/protocol/http1"
	"github.com/chenbk85/corehttpd/response"
)

// FileHandler resolves a request path against a filecache.Cache and
// negotiates gzip/Range against it, producing the response.Plan a
// session drains out over the wire. Content-type lookup is stdlib
// mime.TypeByExtension rather than a hand-rolled table: spec §1 treats
// MIME classification as an external collaborator, so this belongs to
// the handler layer, not the core response pipeline.
type FileHandler struct {
	Cache       *filecache.Cache
	BufferWidth int
}

// NewFileHandler returns a handler serving files out of cache.
func NewFileHandler(cache *filecache.Cache, bufferWidth int) *FileHandler {
	return &FileHandler{Cache: cache, BufferWidth: bufferWidth}
}

// Resolve answers a GET/HEAD request with a fully negotiated Plan, or
// an error if the path can't be read (the caller maps this to 404).
func (h *FileHandler) Resolve(req *http1.Request) (response.Plan, error) {
	ct := contentType(req.Path)
	gzip := response.NegotiateGzip(req.Header("Accept-Encoding"), ct)

	res, err := h.Cache.Get(req.Path, gzip, h.BufferWidth)
	if err != nil {
		return response.Plan{}, err
	}
	return response.NewPlan(res, req.Header("Range"), ct, gzip)
}

// Release returns a Plan's pooled reader (if any) to the cache once a
// response has been fully sent.
func (h *FileHandler) Release(req *http1.Request, p response.Plan) {
	if p.Reader != nil {
		h.Cache.Release(req.Path, p.Reader)
	}
}

func contentType(path string) string {
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
