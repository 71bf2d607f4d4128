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

package http2

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chenbk85/corehttpd/internal/iobuf"
	"github.com/chenbk85/corehttpd/protocol/hpack"
)

func newTestBuffer(t *testing.T) *iobuf.Buffer {
	t.Helper()
	pool := iobuf.NewPool(0, 4096)
	buf := pool.Get()
	t.Cleanup(func() { pool.Put(buf) })
	return buf
}

func TestFrameHeaderRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		h    FrameHeader
	}{
		{"data frame", FrameHeader{Length: 10, Type: FrameData, Flags: FlagEndStream, StreamID: 1}},
		{"headers frame", FrameHeader{Length: 300, Type: FrameHeaders, Flags: FlagEndHeaders | FlagPadded, StreamID: 3}},
		{"settings ack", FrameHeader{Length: 0, Type: FrameSettings, Flags: FlagAck, StreamID: 0}},
		{"max stream id", FrameHeader{Length: 1, Type: FramePing, Flags: 0, StreamID: 0x7fffffff}},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			var raw [frameHeaderLen]byte
			putFrameHeader(raw[:], tt.h)
			got := ReadFrameHeader(raw[:])
			assert.Equal(t, tt.h, got)
		})
	}
}

func TestFrameReaderReadsOneFrameAtATime(t *testing.T) {
	buf := newTestBuffer(t)
	var w FrameWriter
	w.WriteFrame(buf, FramePing, FlagAck, 0, []byte("01234567"))
	w.WriteFrame(buf, FrameData, FlagEndStream, 1, []byte("hello"))

	r := NewFrameReader(1 << 20)

	h1, p1, err := r.ReadFrame(buf)
	require.NoError(t, err)
	assert.Equal(t, FramePing, h1.Type)
	assert.Equal(t, []byte("01234567"), p1)

	h2, p2, err := r.ReadFrame(buf)
	require.NoError(t, err)
	assert.Equal(t, FrameData, h2.Type)
	assert.Equal(t, []byte("hello"), p2)

	_, _, err = r.ReadFrame(buf)
	assert.ErrorIs(t, err, ErrNeedMore)
}

func TestFrameReaderNeedsMoreLeavesBufferUntouched(t *testing.T) {
	buf := newTestBuffer(t)
	var w FrameWriter
	w.WriteFrame(buf, FrameData, 0, 1, []byte("0123456789"))

	full := buf.Peek(buf.Readable())
	truncated := append([]byte(nil), full[:len(full)-1]...)
	buf.Advance(buf.Readable())
	_, _ = buf.Write(truncated)

	r := NewFrameReader(1 << 20)
	_, _, err := r.ReadFrame(buf)
	assert.ErrorIs(t, err, ErrNeedMore)
	assert.Equal(t, len(truncated), buf.Readable())
}

func TestFrameReaderRejectsOversizeFrame(t *testing.T) {
	buf := newTestBuffer(t)
	var w FrameWriter
	w.WriteFrame(buf, FrameData, 0, 1, make([]byte, 100))

	r := NewFrameReader(50)
	_, _, err := r.ReadFrame(buf)
	require.Error(t, err)
	assert.Equal(t, ErrCodeFrameSize, AsH2Error(err))
}

func TestBeginDataBackfillsActualLength(t *testing.T) {
	buf := newTestBuffer(t)
	var w FrameWriter
	finish := w.BeginData(buf, 1)
	n, _ := buf.Write([]byte("abc"))
	finish(n, true)

	r := NewFrameReader(1 << 20)
	h, payload, err := r.ReadFrame(buf)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), h.Length)
	assert.True(t, h.Has(FlagEndStream))
	assert.Equal(t, []byte("abc"), payload)
}

func TestWriteFrameBackfillSurvivesGrowthAfterDrain(t *testing.T) {
	// Regression: a send buffer that has been fully drained (as
	// Connection.Send leaves it after flushing a prior frame) must not
	// invalidate a later WriteFrame's backfill offset when the next
	// payload forces the buffer to grow.
	buf := newTestBuffer(t)
	var w FrameWriter

	w.WriteFrame(buf, FrameHeaders, FlagEndHeaders, 1, []byte("small"))
	buf.Advance(buf.Readable()) // simulate Connection.Send's full drain

	large := make([]byte, 8192)
	for i := range large {
		large[i] = byte(i)
	}
	w.WriteFrame(buf, FrameData, FlagEndStream, 1, large)

	r := NewFrameReader(1 << 20)
	h, payload, err := r.ReadFrame(buf)
	require.NoError(t, err)
	assert.Equal(t, FrameData, h.Type)
	assert.True(t, h.Has(FlagEndStream))
	assert.Equal(t, large, payload)
}

func TestParseSettingsRejectsBadLength(t *testing.T) {
	_, err := ParseSettings(make([]byte, 5), 0, false)
	require.Error(t, err)
	assert.Equal(t, ErrCodeFrameSize, AsH2Error(err))
}

func TestParseSettingsAckMustBeEmpty(t *testing.T) {
	_, err := ParseSettings([]byte{1}, 0, true)
	require.Error(t, err)
	assert.Equal(t, ErrCodeFrameSize, AsH2Error(err))
}

func TestParseSettingsDecodesEntries(t *testing.T) {
	var w FrameWriter
	buf := newTestBuffer(t)
	w.AppendSettings(buf, []Setting{{ID: SettingInitialWindowSize, Value: 65535}})
	_, payload, err := NewFrameReader(1 << 20).ReadFrame(buf)
	require.NoError(t, err)

	got, err := ParseSettings(payload, 0, false)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, SettingInitialWindowSize, got[0].ID)
	assert.EqualValues(t, 65535, got[0].Value)
}

func TestStreamFSMBasicRequestResponse(t *testing.T) {
	s := NewStream(1, DefaultMaxFrameSize, DefaultMaxFrameSize)
	require.NoError(t, s.RecvHeaders(true))
	assert.Equal(t, StreamHalfClosedRemote, s.State())
	require.NoError(t, s.SendHeaders(false))
	assert.Equal(t, StreamHalfClosedRemote, s.State())
	require.NoError(t, s.SendData(true))
	assert.Equal(t, StreamClosed, s.State())
}

func TestStreamFSMRejectsFrameAfterClose(t *testing.T) {
	s := NewStream(1, 0, 0)
	require.NoError(t, s.RecvRSTStream())
	assert.Equal(t, StreamClosed, s.State())

	err := s.RecvData(false)
	require.Error(t, err)
	assert.Equal(t, ErrCodeStreamClosed, AsH2Error(err))
}

func TestStreamFSMAllowsPriorityOnClosedStream(t *testing.T) {
	s := NewStream(1, 0, 0)
	require.NoError(t, s.RecvRSTStream())
	require.NoError(t, s.transition(evRecvPriority))
}

func TestPriorityTreeBreaksCycle(t *testing.T) {
	tree := NewPriorityTree()
	tree.Reparent(3, 0, 16, false)
	tree.Reparent(5, 3, 16, false)

	// 3 now depends on 5, but 5 already depends on 3: a cycle. The
	// tree must re-root 3 rather than loop forever or corrupt state.
	tree.Reparent(3, 5, 16, false)

	assert.False(t, tree.isAncestor(3, 3))
}

func TestPriorityTreeExclusiveReparentsSiblings(t *testing.T) {
	tree := NewPriorityTree()
	tree.Reparent(1, 0, 16, false)
	tree.Reparent(2, 0, 16, false)
	tree.Reparent(3, 0, 16, true)

	assert.Contains(t, tree.children[3], uint32(1))
	assert.Contains(t, tree.children[3], uint32(2))
	assert.Equal(t, uint32(3), tree.parent[1])
}

func TestSchedulerOrdersByWeightThenArrival(t *testing.T) {
	tree := NewPriorityTree()
	tree.Reparent(1, 0, 10, false)
	tree.Reparent(2, 0, 30, false)
	tree.Reparent(3, 0, 30, false)

	sched := NewScheduler(tree)
	sched.Ready(1)
	sched.Ready(2)
	sched.Ready(3)

	first, ok := sched.Next()
	require.True(t, ok)
	assert.Equal(t, uint32(2), first, "highest weight served first")

	second, ok := sched.Next()
	require.True(t, ok)
	assert.Equal(t, uint32(3), second, "equal weight served by arrival order")

	third, ok := sched.Next()
	require.True(t, ok)
	assert.Equal(t, uint32(1), third)

	_, ok = sched.Next()
	assert.False(t, ok)
}

func TestSchedulerDiscard(t *testing.T) {
	tree := NewPriorityTree()
	sched := NewScheduler(tree)
	sched.Ready(1)
	sched.Ready(2)
	sched.Discard(1)

	id, ok := sched.Next()
	require.True(t, ok)
	assert.Equal(t, uint32(2), id)
	assert.Equal(t, 0, sched.Len())
}

func TestConnHandleSettingsAdjustsHeaderTableAndWindow(t *testing.T) {
	c := NewConn()
	_ = c.Stream(1)
	c.HandleSettings([]Setting{{ID: SettingInitialWindowSize, Value: 1000}})

	s := c.Stream(1)
	assert.EqualValues(t, 1000, s.SendWindow)
}

func TestConnEncodeDecodeHeadersRoundTrip(t *testing.T) {
	c := NewConn()
	fields := []hpack.HeaderField{
		{Name: ":method", Value: "GET"},
		{Name: ":path", Value: "/"},
	}
	wire := c.EncodeHeaders(fields)

	dec := NewConn()
	got, err := dec.DecodeHeaders(wire)
	require.NoError(t, err)
	assert.Equal(t, fields, got)
}

func TestConnDataBudgetRespectsWindowFrameSizeAndBuffer(t *testing.T) {
	c := NewConn()
	s := c.Stream(1)
	s.SendWindow = 100

	assert.Equal(t, 50, c.DataBudget(1, 50))
	c.ConsumeSendWindow(1, 50)
	assert.Equal(t, 50, c.DataBudget(1, 1000))
}

func TestConnAppendRSTStreamClosesStream(t *testing.T) {
	c := NewConn()
	_ = c.Stream(1)
	buf := newTestBuffer(t)
	c.AppendRSTStream(buf, 1, ErrCodeCancel)

	h, payload, err := NewFrameReader(1 << 20).ReadFrame(buf)
	require.NoError(t, err)
	assert.Equal(t, FrameRSTStream, h.Type)
	assert.Len(t, payload, 4)

	_, ok := c.streams[1]
	assert.False(t, ok)
}

func TestConnAppendPingAckEchoesOpaqueData(t *testing.T) {
	c := NewConn()
	buf := newTestBuffer(t)
	c.AppendPingAck(buf, []byte("ABCDEFGH"))

	h, payload, err := NewFrameReader(1 << 20).ReadFrame(buf)
	require.NoError(t, err)
	assert.Equal(t, FramePing, h.Type)
	assert.True(t, h.Has(FlagAck))
	assert.Equal(t, []byte("ABCDEFGH"), payload)
}
