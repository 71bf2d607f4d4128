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

// Package filecache implements the size-tiered, path-keyed file reader
// cache from spec §4.H: a per-path cookie holding the file's size and a
// freelist of pooled readers, an in-memory tier for small files, and a
// write-once compressed-copy guarantee per (path, compress) key.
//
// The cookie store's mutex+map shape is grounded on
// common/socket/ttlcache.go (TTLCache.Set/Has/gc), generalized from a
// fixed-TTL tuple set to a path-keyed store holding a reader freelist
// instead of an expiry timestamp; there is no time-based eviction here
// because cached file metadata is valid for the process lifetime (the
// same assumption TTLCache's teacher made about connection tuples
// within their own expiry window).
package filecache

import (
	"os"
	"sync"

	"github.com/chenbk85/corehttpd/common"
)

// cookie is the per-path bookkeeping entry: cached size, an optional
// in-memory compressed/plain body, and a freelist of pooled sequential
// readers for files too large to cache wholesale.
type cookie struct {
	mu sync.Mutex

	size int64

	plain    []byte // populated once, for size <= CacheFileSize
	gzip     []byte // populated once on first gzip request, same gate
	gzipDone bool

	freelist []Reader
}

// Cache is the process-wide file-reader cache. One instance is shared
// across all connections; its internal mutex matches the "shared
// maps guarded by a fine-grained lock" policy from spec §5.
type Cache struct {
	mu      sync.RWMutex
	cookies map[string]*cookie
	root    string
}

// New returns a cache rooted at root (the configured document root);
// paths passed to Get are resolved relative to it.
func New(root string) *Cache {
	return &Cache{cookies: make(map[string]*cookie), root: root}
}

func (c *Cache) getCookie(path string) (*cookie, error) {
	c.mu.RLock()
	ck, ok := c.cookies[path]
	c.mu.RUnlock()
	if ok {
		return ck, nil
	}

	fi, err := os.Stat(c.root + path)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if ck, ok := c.cookies[path]; ok {
		return ck, nil
	}
	ck = &cookie{size: fi.Size()}
	c.cookies[path] = ck
	return ck, nil
}

// Result is what Get hands back: either an in-memory byte slice
// (Bytes != nil) for small/cached files, or a pooled Reader the caller
// must Release when done.
type Result struct {
	Size   int64
	Bytes  []byte
	Reader Reader
}

// Get resolves path through the cookie store and returns either a
// cached in-memory body or a pooled tiered reader, per spec §4.H's
// three-step lookup: lookup/create cookie, in-memory tier if the file
// fits CacheFileSize, else a tiered reader from the freelist or newly
// constructed.
func (c *Cache) Get(path string, compress bool, bufferWidth int) (Result, error) {
	ck, err := c.getCookie(path)
	if err != nil {
		return Result{}, err
	}

	if ck.size <= common.CacheFileSize {
		body, err := c.loadCached(ck, path, compress)
		if err != nil {
			return Result{}, err
		}
		return Result{Size: int64(len(body)), Bytes: body}, nil
	}

	r, err := c.acquireReader(ck, path, bufferWidth)
	if err != nil {
		return Result{}, err
	}
	return Result{Size: ck.size, Reader: r}, nil
}

// loadCached returns the (possibly gzip-compressed) in-memory body for
// a small file, populating it at most once per (path, compress) key:
// the cookie's own mutex serializes concurrent first-requesters so at
// most one compressor ever runs for a given key, per spec §4.H's
// write-once guarantee.
func (c *Cache) loadCached(ck *cookie, path string, compress bool) ([]byte, error) {
	ck.mu.Lock()
	defer ck.mu.Unlock()

	if ck.plain == nil {
		b, err := os.ReadFile(c.root + path)
		if err != nil {
			return nil, err
		}
		ck.plain = b
	}
	if !compress {
		return ck.plain, nil
	}
	if !ck.gzipDone {
		ck.gzip = gzipBytes(ck.plain)
		ck.gzipDone = true
	}
	return ck.gzip, nil
}

// Release returns r to its cookie's freelist, or closes it if the
// cookie has already been dropped from the cache (spec §4.H's "if the
// cookie has been dropped, the reader is closed instead").
func (c *Cache) Release(path string, r Reader) {
	c.mu.RLock()
	ck, ok := c.cookies[path]
	c.mu.RUnlock()
	if !ok {
		_ = r.Close()
		return
	}

	ck.mu.Lock()
	ck.freelist = append(ck.freelist, r)
	ck.mu.Unlock()
}

// acquireReader dequeues a pooled reader (seeking it back to 0) or
// constructs a fresh tiered reader per the size/buffer-width rules in
// reader.go.
func (c *Cache) acquireReader(ck *cookie, path string, bufferWidth int) (Reader, error) {
	ck.mu.Lock()
	if n := len(ck.freelist); n > 0 {
		r := ck.freelist[n-1]
		ck.freelist = ck.freelist[:n-1]
		ck.mu.Unlock()
		if err := r.Seek0(); err != nil {
			_ = r.Close()
			return nil, err
		}
		return r, nil
	}
	ck.mu.Unlock()

	return newTieredReader(c.root+path, ck.size, bufferWidth)
}
