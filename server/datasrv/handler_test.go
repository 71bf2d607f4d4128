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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chenbk85/corehttpd/filecache"
	"github.com/chenbk85/corehttpd/protocol/http1"
)

func newTestHandler(t *testing.T, files map[string]string) *FileHandler {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
	}
	return NewFileHandler(filecache.New(dir), 4096)
}

func TestResolveServesExistingFile(t *testing.T) {
	h := newTestHandler(t, map[string]string{"index.html": "<html></html>"})
	req := &http1.Request{Path: "/index.html"}

	plan, err := h.Resolve(req)
	require.NoError(t, err)
	assert.Equal(t, 200, plan.Status)
	assert.Equal(t, "text/html; charset=utf-8", plan.ContentType)
	assert.Equal(t, []byte("<html></html>"), plan.Body)
}

func TestResolveMissingFileReturnsError(t *testing.T) {
	h := newTestHandler(t, nil)
	req := &http1.Request{Path: "/missing.html"}

	_, err := h.Resolve(req)
	assert.Error(t, err)
}

func TestResolveHonorsRangeHeader(t *testing.T) {
	h := newTestHandler(t, map[string]string{"data.bin": "0123456789"})
	req := &http1.Request{Path: "/data.bin", Headers: []http1.Header{{Name: "Range", Value: "bytes=2-4"}}}

	plan, err := h.Resolve(req)
	require.NoError(t, err)
	assert.Equal(t, 206, plan.Status)
	assert.Equal(t, []byte("234"), plan.Body)
}

func TestResolveNegotiatesGzipForCompressibleType(t *testing.T) {
	h := newTestHandler(t, map[string]string{"style.css": "body { color: red; }"})
	req := &http1.Request{Path: "/style.css", Headers: []http1.Header{{Name: "Accept-Encoding", Value: "gzip, deflate"}}}

	plan, err := h.Resolve(req)
	require.NoError(t, err)
	assert.True(t, plan.GzipEncoded)
	assert.NotEqual(t, "body { color: red; }", string(plan.Body))
}

func TestContentTypeFallsBackToOctetStream(t *testing.T) {
	assert.Equal(t, "application/octet-stream", contentType("/blob.unknownext"))
}
