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

// Package iobuf implements the pooled receive/send buffer model shared
// by every codec: a contiguous byte region addressed by four cursors
// with prependable headroom so frame headers can be back-filled after
// their payload is laid down.
package iobuf

import (
	"github.com/pkg/errors"
)

func newError(format string, args ...any) error {
	format = "iobuf: " + format
	return errors.Errorf(format, args...)
}

var errShrink = newError("makeWriteableSpace: negative size")

// OpKind records the last asynchronous operation posted against a
// Buffer, so a cancelled completion can be attributed correctly.
type OpKind uint8

const (
	OpNone OpKind = iota
	OpAccept
	OpRecv
	OpSend
	OpDisconnect
)

// CompletionFunc is the one-shot continuation invoked exactly once per
// completed (or cancelled) I/O operation posted against a Buffer.
type CompletionFunc func(n int, err error)

// Buffer is a contiguous byte region with four cursors:
// prependable <= read <= write <= end. Readable = write-read,
// writable = end-write. Buffer never relocates its backing array on
// expansion; makeWriteableSpace either compacts in place or grows the
// backing slice.
type Buffer struct {
	buf []byte

	prependable int
	readPos     int
	writePos    int

	lastOp     OpKind
	onComplete CompletionFunc
}

// New returns a Buffer with prependable bytes of headroom and an
// initial capacity of size (excluding headroom).
func New(prependable, size int) *Buffer {
	return &Buffer{
		buf:         make([]byte, prependable+size),
		prependable: prependable,
		readPos:     prependable,
		writePos:    prependable,
	}
}

// Prependable returns the current prependable-headroom cursor.
func (b *Buffer) Prependable() int { return b.prependable }

// ReadPos returns the read cursor.
func (b *Buffer) ReadPos() int { return b.readPos }

// WritePos returns the write cursor.
func (b *Buffer) WritePos() int { return b.writePos }

// End returns the end-of-extent cursor (len of the backing slice).
func (b *Buffer) End() int { return len(b.buf) }

// Readable returns the number of unread bytes.
func (b *Buffer) Readable() int { return b.writePos - b.readPos }

// Writable returns the number of bytes that can be written without
// compaction or expansion.
func (b *Buffer) Writable() int { return len(b.buf) - b.writePos }

// PrependableSpace returns the headroom still available before read.
func (b *Buffer) PrependableSpace() int { return b.readPos - b.prependable }

// ReadSlice returns the readable region [read, write).
//
// Callers MUST NOT retain the slice across a compaction or expansion.
func (b *Buffer) ReadSlice() []byte { return b.buf[b.readPos:b.writePos] }

// WriteSlice returns the writable region [write, end).
func (b *Buffer) WriteSlice() []byte { return b.buf[b.writePos:len(b.buf)] }

// Advance moves the read cursor forward by n, never past write. Once
// the buffer is fully drained it snaps both cursors back to the
// prependable boundary rather than leaving them parked wherever
// writePos ended up: a Reserve/FillAt back-fill recorded against a
// drained-but-not-rewound buffer would otherwise be invalidated by the
// next MakeWriteableSpace compaction, since that shifts [read, write)
// down to prependable and only a caller sitting exactly at prependable
// is unaffected by the shift.
func (b *Buffer) Advance(n int) {
	if n >= b.Readable() {
		b.readPos = b.prependable
		b.writePos = b.prependable
		return
	}
	b.readPos += n
}

// AdvanceWrite moves the write cursor forward by n, as if n bytes had
// just been written into WriteSlice(). Callers must ensure Writable()
// >= n before calling.
func (b *Buffer) AdvanceWrite(n int) {
	b.writePos += n
}

// Reset rewinds read/write back to the prependable boundary, keeping
// the backing array. Used once a buffer has been fully drained.
func (b *Buffer) Reset() {
	b.readPos = b.prependable
	b.writePos = b.prependable
}

// Write appends p to the writable region, growing the buffer via
// MakeWriteableSpace if necessary. It never fails.
func (b *Buffer) Write(p []byte) (int, error) {
	b.MakeWriteableSpace(len(p))
	n := copy(b.buf[b.writePos:], p)
	b.writePos += n
	return n, nil
}

// Peek returns up to n unread bytes without advancing read.
func (b *Buffer) Peek(n int) []byte {
	if n > b.Readable() {
		n = b.Readable()
	}
	return b.buf[b.readPos : b.readPos+n]
}

// Read copies up to len(p) unread bytes into p and advances read.
func (b *Buffer) Read(p []byte) (int, error) {
	n := copy(p, b.ReadSlice())
	b.Advance(n)
	return n, nil
}

// MakeWriteableSpace guarantees Writable() >= n, compacting the
// readable region down to the prependable boundary first and, only if
// that is not enough, growing the backing array. It preserves pointer
// stability for the prependable headroom: a caller that reserved space
// before the payload (to back-fill a frame header, per the HTTP/2
// writer) keeps that headroom across compaction.
func (b *Buffer) MakeWriteableSpace(n int) {
	if n < 0 {
		panic(errShrink)
	}
	if b.Writable() >= n {
		return
	}

	readable := b.Readable()
	if b.prependable+readable+n <= len(b.buf) {
		// Compact: shift [read, write) down to prependable.
		copy(b.buf[b.prependable:], b.buf[b.readPos:b.writePos])
		b.readPos = b.prependable
		b.writePos = b.prependable + readable
		return
	}

	// Expand: never relocate bytes already copied out via ReadSlice
	// beyond this call; grow in place by appending.
	grown := make([]byte, b.prependable+readable+n)
	copy(grown[b.prependable:], b.buf[b.readPos:b.writePos])
	b.buf = grown
	b.readPos = b.prependable
	b.writePos = b.prependable + readable
}

// Reserve reserves n bytes of writable space without publishing them
// (write cursor unchanged) and returns the absolute offset at which
// the caller may later back-fill a header once the payload length is
// known. Used by the HTTP/2 frame writer: reserve 9 bytes, write the
// payload, then back-fill using HeaderAt.
func (b *Buffer) Reserve(n int) int {
	b.MakeWriteableSpace(n)
	offset := b.writePos
	b.writePos += n
	return offset
}

// FillAt overwrites len(p) bytes starting at the absolute offset
// previously returned by Reserve, without moving the write cursor.
func (b *Buffer) FillAt(offset int, p []byte) {
	copy(b.buf[offset:], p)
}

// SliceAt returns n bytes starting at offset, for read-modify-write
// back-fill patterns larger than FillAt's direct copy.
func (b *Buffer) SliceAt(offset, n int) []byte {
	return b.buf[offset : offset+n]
}

// SetCompletion installs the one-shot continuation for the next
// posted operation and records its kind.
func (b *Buffer) SetCompletion(kind OpKind, f CompletionFunc) {
	b.lastOp = kind
	b.onComplete = f
}

// LastOp returns the most recently posted operation kind.
func (b *Buffer) LastOp() OpKind { return b.lastOp }

// Complete invokes the installed continuation exactly once and clears
// it, so a cancelled buffer cannot double-fire.
func (b *Buffer) Complete(n int, err error) {
	f := b.onComplete
	b.onComplete = nil
	if f != nil {
		f(n, err)
	}
}

// Cancel fires the installed continuation with a cancellation error,
// matching the "pending buffer cancelled at most once" invariant.
func (b *Buffer) Cancel() {
	b.Complete(0, errCancelled)
}

var errCancelled = newError("operation cancelled")

// IsCancelled reports whether err is the sentinel produced by Cancel.
func IsCancelled(err error) bool {
	return errors.Is(err, errCancelled)
}
