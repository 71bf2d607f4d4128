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
	"testing"

	"github.com/stretchr/testify/require"
)

func assertInvariant(t *testing.T, b *Buffer) {
	t.Helper()
	require.GreaterOrEqual(t, b.ReadPos(), b.Prependable())
	require.GreaterOrEqual(t, b.WritePos(), b.ReadPos())
	require.GreaterOrEqual(t, b.End(), b.WritePos())
}

func TestBufferInvariantAcrossWrites(t *testing.T) {
	b := New(8, 16)
	assertInvariant(t, b)

	_, err := b.Write([]byte("hello world"))
	require.NoError(t, err)
	assertInvariant(t, b)
	require.Equal(t, "hello world", string(b.ReadSlice()))
}

func TestBufferCompactionOnExactFill(t *testing.T) {
	b := New(0, 8)
	_, _ = b.Write([]byte("12345678"))
	assertInvariant(t, b)
	require.Equal(t, 0, b.Writable())

	b.Advance(4)
	assertInvariant(t, b)

	// Exactly filling the remaining writable space must compact
	// in place rather than growing the backing array.
	before := b.End()
	b.MakeWriteableSpace(4)
	require.Equal(t, before, b.End())
	assertInvariant(t, b)
	require.GreaterOrEqual(t, b.Writable(), 4)
}

func TestBufferExpandsWhenCompactionInsufficient(t *testing.T) {
	b := New(0, 4)
	_, _ = b.Write([]byte("1234"))
	b.Advance(1) // 3 bytes readable, 0 writable, compaction only frees back to 3

	before := b.End()
	b.MakeWriteableSpace(8)
	require.Greater(t, b.End(), before)
	assertInvariant(t, b)
	require.Equal(t, "234", string(b.ReadSlice()))
}

func TestBufferPrependableHeadroomSurvivesCompaction(t *testing.T) {
	b := New(9, 32) // room for an HTTP/2 frame header
	off := b.Reserve(9)
	_, _ = b.Write([]byte("payload"))
	b.FillAt(off, []byte{0, 0, 7, 1, 0, 0, 0, 0, 1})

	require.Equal(t, 9, b.Prependable())
	got := b.ReadSlice()
	require.Len(t, got, 9+len("payload"))
	require.Equal(t, byte(7), got[2])
}

func TestBufferAdvanceRewindsToPrependableOnFullDrain(t *testing.T) {
	b := New(9, 16)
	off := b.Reserve(9)
	_, _ = b.Write([]byte("payload"))
	b.FillAt(off, []byte{0, 0, 7, 0, 0, 0, 0, 0, 1})

	b.Advance(b.Readable())
	require.Equal(t, b.Prependable(), b.ReadPos())
	require.Equal(t, b.Prependable(), b.WritePos())

	// A second reserve against the rewound buffer must not be
	// invalidated by a payload write large enough to force growth.
	off2 := b.Reserve(9)
	require.Equal(t, b.Prependable(), off2)
	_, _ = b.Write(make([]byte, 64))
	b.FillAt(off2, []byte{0, 0, 64, 1, 0, 0, 0, 0, 2})
	assertInvariant(t, b)
	require.Equal(t, byte(2), b.ReadSlice()[8])
}

func TestBufferCompletionFiresExactlyOnce(t *testing.T) {
	b := New(0, 4)
	calls := 0
	b.SetCompletion(OpRecv, func(n int, err error) {
		calls++
	})
	b.Complete(4, nil)
	b.Complete(4, nil) // second call must be a no-op: continuation cleared
	require.Equal(t, 1, calls)
}

func TestBufferCancelDeliversCancellation(t *testing.T) {
	b := New(0, 4)
	var gotErr error
	b.SetCompletion(OpSend, func(n int, err error) {
		gotErr = err
	})
	b.Cancel()
	require.True(t, IsCancelled(gotErr))
}
