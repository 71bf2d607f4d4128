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

package filecache

import (
	"io"
	"os"

	"golang.org/x/sys/unix"

	"github.com/chenbk85/corehttpd/common"
)

// mmapReader serves a large file through a sliding memory-mapped
// window of common.MmapWindowSize bytes, remapping as the read offset
// walks past the current window rather than mapping the entire file
// up front (which would exhaust address space under many concurrent
// large-file requests).
type mmapReader struct {
	f    *os.File
	size int64

	winStart int64
	win      []byte
	pos      int64 // absolute file offset of the next byte to Read
}

func newMmapReader(path string, size int64) (*mmapReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r := &mmapReader{f: f, size: size}
	if err := r.mapWindow(0); err != nil {
		_ = f.Close()
		return nil, err
	}
	return r, nil
}

func (r *mmapReader) mapWindow(start int64) error {
	if r.win != nil {
		_ = unix.Munmap(r.win)
		r.win = nil
	}
	width := int64(common.MmapWindowSize)
	if start+width > r.size {
		width = r.size - start
	}
	if width <= 0 {
		r.winStart = start
		r.win = nil
		return nil
	}
	win, err := unix.Mmap(int(r.f.Fd()), start, int(width), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return err
	}
	r.winStart = start
	r.win = win
	return nil
}

func (r *mmapReader) Read(p []byte) (int, error) {
	if r.pos >= r.size {
		return 0, io.EOF
	}
	if r.pos < r.winStart || r.pos >= r.winStart+int64(len(r.win)) {
		if err := r.mapWindow(r.pos); err != nil {
			return 0, err
		}
	}
	off := int(r.pos - r.winStart)
	n := copy(p, r.win[off:])
	r.pos += int64(n)
	return n, nil
}

func (r *mmapReader) Seek0() error { return r.SeekTo(0) }

func (r *mmapReader) SeekTo(offset int64) error {
	r.pos = offset
	return nil
}

func (r *mmapReader) Close() error {
	if r.win != nil {
		_ = unix.Munmap(r.win)
	}
	return r.f.Close()
}
