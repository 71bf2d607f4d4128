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

package iobuf

import (
	"sync"

	"github.com/valyala/bytebufferpool"
)

// Pool hands out fixed-headroom Buffers, backed by a bytebufferpool so
// the underlying byte arrays are reused across connections instead of
// being garbage collected on every disconnect.
type Pool struct {
	prependable int
	size        int

	raw  bytebufferpool.Pool
	pool sync.Pool
}

// NewPool returns a Pool producing Buffers with the given prependable
// headroom and initial extent.
func NewPool(prependable, size int) *Pool {
	p := &Pool{prependable: prependable, size: size}
	p.pool.New = func() any {
		return New(prependable, size)
	}
	return p
}

// Get returns a reset Buffer from the pool.
func (p *Pool) Get() *Buffer {
	b := p.pool.Get().(*Buffer)
	b.Reset()
	return b
}

// Put returns a Buffer to the pool. The caller must not use b again.
func (p *Pool) Put(b *Buffer) {
	b.onComplete = nil
	b.lastOp = OpNone
	p.pool.Put(b)
}

// AcquireBytes returns a pooled byte slice of zero length for callers
// that need a transient scratch buffer (e.g. gzip staging) rather than
// a full four-cursor Buffer.
func (p *Pool) AcquireBytes() *bytebufferpool.ByteBuffer {
	return p.raw.Get()
}

// ReleaseBytes returns a scratch buffer obtained via AcquireBytes.
func (p *Pool) ReleaseBytes(b *bytebufferpool.ByteBuffer) {
	p.raw.Put(b)
}
