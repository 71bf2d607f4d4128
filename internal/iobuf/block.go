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

import "sync"

// Block is a reserved, fixed-extent slice handed out by a
// BlockFactory. Blocks are never freed before process exit; the pages
// backing a Block may be decommitted (see Decommit) when the buffer
// that owns it is destroyed, but the virtual address range stays
// reserved so the factory never relocates outstanding slices.
type Block struct {
	region []byte
}

// Bytes returns the full backing slice of the block.
func (bl *Block) Bytes() []byte { return bl.region }

// BlockFactory reserves one large region at startup and hands out
// fixed-size slices from it on demand. Pages commit lazily on first
// write, which is the mmap/VirtualAlloc reservation idiom; the pure-Go
// fallback (blockFactoryFallback, used when the platform mmap path is
// unavailable) simply allocates eagerly since the Go heap has no
// reserve-without-commit primitive.
type BlockFactory struct {
	mu       sync.Mutex
	extent   int
	numaNode int
	impl     blockFactoryImpl
}

type blockFactoryImpl interface {
	acquire(extent int) *Block
	release(bl *Block)
}

// NewBlockFactory reserves a region sized for count blocks of extent
// bytes each, optionally bound to numaNode (-1 means no binding).
func NewBlockFactory(extent, count, numaNode int) *BlockFactory {
	return &BlockFactory{
		extent:   extent,
		numaNode: numaNode,
		impl:     newBlockFactoryImpl(extent, count, numaNode),
	}
}

// Acquire hands out one fixed-size slice from the reserved region.
func (f *BlockFactory) Acquire() *Block {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.impl.acquire(f.extent)
}

// Release decommits the pages backing bl without shrinking the
// factory's virtual reservation.
func (f *BlockFactory) Release(bl *Block) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.impl.release(bl)
}

// Extent returns the fixed per-block size this factory hands out.
func (f *BlockFactory) Extent() int { return f.extent }
