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

package filecache

import (
	"compress/gzip"

	"github.com/chenbk85/corehttpd/internal/iobuf"
)

// scratchPool hands out the transient bytebufferpool-backed staging
// buffers gzipBytes compresses into, so the scratch array backing each
// first-requester's compression pass is reused across paths instead of
// being allocated and garbage collected per cookie.
var scratchPool = iobuf.NewPool(0, 0)

// gzipBytes compresses b at the default level. Spec §1 excludes "the
// zlib compressor" as an external collaborator, i.e. compression
// itself is explicitly out of this core's own scope to implement; the
// standard library's compress/gzip fills that external-collaborator
// role here, matching response's use of the same package for
// on-the-wire compression.
func gzipBytes(b []byte) []byte {
	scratch := scratchPool.AcquireBytes()
	defer scratchPool.ReleaseBytes(scratch)

	w := gzip.NewWriter(scratch)
	_, _ = w.Write(b)
	_ = w.Close()

	// scratch is returned to the pool on the next acquire; the cookie
	// keeps its own copy since the compressed body is cached for the
	// process lifetime.
	return append([]byte(nil), scratch.Bytes()...)
}
