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

//go:build unix

package iobuf

import (
	"golang.org/x/sys/unix"

	"github.com/chenbk85/corehttpd/logger"
)

// mmapBlockFactory reserves one large anonymous mapping up front and
// slices fixed-size blocks out of it; committed pages are released via
// MADV_DONTNEED on Release without shrinking the reservation, matching
// the "reserve once, commit lazily, never relocate" contract.
type mmapBlockFactory struct {
	region   []byte
	extent   int
	free     []*Block
	numaNode int
}

func newBlockFactoryImpl(extent, count, numaNode int) blockFactoryImpl {
	size := extent * count
	region, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		logger.Warnf("iobuf: mmap reservation failed (%v), falling back to heap blocks", err)
		return newHeapBlockFactoryImpl(extent, count)
	}

	if numaNode >= 0 {
		bindNuma(region, numaNode)
	}

	f := &mmapBlockFactory{region: region, extent: extent, numaNode: numaNode}
	for off := 0; off+extent <= len(region); off += extent {
		f.free = append(f.free, &Block{region: region[off : off+extent : off+extent]})
	}
	return f
}

func (f *mmapBlockFactory) acquire(extent int) *Block {
	if len(f.free) == 0 {
		// Reservation exhausted: grow with a heap-backed block rather
		// than remapping (remapping would relocate outstanding
		// slices, violating the pointer-stability invariant).
		return &Block{region: make([]byte, extent)}
	}
	bl := f.free[len(f.free)-1]
	f.free = f.free[:len(f.free)-1]
	return bl
}

func (f *mmapBlockFactory) release(bl *Block) {
	_ = unix.Madvise(bl.region, unix.MADV_DONTNEED)
	f.free = append(f.free, bl)
}

// bindNuma advises the kernel to prefer the given NUMA node for pages
// backing region. Best-effort: failures are logged, never fatal, since
// a misconfigured node id should not prevent the server from starting.
func bindNuma(region []byte, node int) {
	if err := mbind(region, node); err != nil {
		logger.Warnf("iobuf: numa bind to node %d failed: %v", node, err)
	}
}
