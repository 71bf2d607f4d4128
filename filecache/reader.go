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
	"bufio"
	"io"
	"os"

	"github.com/chenbk85/corehttpd/common"
)

// Reader is a pooled, seekable file-content source. Callers ask for a
// Reader through Cache.Get, read from it like any io.ReadSeeker, and
// return it via Cache.Release rather than closing it directly, so it
// can be reused by the next request against the same path.
type Reader interface {
	io.Reader

	// Seek0 rewinds the reader to byte 0, the reset Cache.acquireReader
	// applies before handing a pooled reader back out.
	Seek0() error

	// SeekTo implements the Range-request seek (spec §4.G).
	SeekTo(offset int64) error

	Close() error
}

// newTieredReader picks a reader tier for a file too large for the
// in-memory cache, per spec §4.H's size/buffer-width rule:
//   - size <= NoCacheSize: sequential reader with page-cache prefetch
//     (a buffered *os.File read benefits from the OS page cache the
//     same way; no separate prefetch thread is warranted at this size).
//   - size > NoCacheSize and bufferWidth >= MmapMinBufferWidth: the
//     memory-mapped sliding-window tier (platform-specific, see
//     reader_unix.go/reader_fallback.go).
//   - otherwise: the sequential tier regardless of size, since a small
//     send buffer can't amortize the cost of a full mmap window.
func newTieredReader(path string, size int64, bufferWidth int) (Reader, error) {
	if size > common.NoCacheSize && bufferWidth >= common.MmapMinBufferWidth {
		r, err := newMmapReader(path, size)
		if err == nil {
			return r, nil
		}
		// Fall through to the sequential tier; a single mmap failure
		// (e.g. address space exhaustion under high concurrency)
		// should not fail the request.
	}
	return newSequentialReader(path)
}

// sequentialReader wraps a buffered *os.File for the mid-size tier.
type sequentialReader struct {
	f *os.File
	r *bufio.Reader
}

func newSequentialReader(path string) (*sequentialReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &sequentialReader{f: f, r: bufio.NewReaderSize(f, common.ReadWriteBlockSize)}, nil
}

func (r *sequentialReader) Read(p []byte) (int, error) { return r.r.Read(p) }

func (r *sequentialReader) Seek0() error { return r.SeekTo(0) }

func (r *sequentialReader) SeekTo(offset int64) error {
	if _, err := r.f.Seek(offset, io.SeekStart); err != nil {
		return err
	}
	r.r.Reset(r.f)
	return nil
}

func (r *sequentialReader) Close() error { return r.f.Close() }
