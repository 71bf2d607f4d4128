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
	"encoding/binary"
	"sync"

	"github.com/chenbk85/corehttpd/common"
	"github.com/chenbk85/corehttpd/internal/iobuf"
	"github.com/chenbk85/corehttpd/protocol/hpack"
)

// DefaultMaxFrameSize is RFC 7540 §6.5.2's minimum allowed value,
// used as our advertised default absent a larger configured value.
const DefaultMaxFrameSize = 16384

// Conn holds one HTTP/2 connection's control state: the per-stream
// FSMs, the priority tree and scheduler that order their output, and
// the HPACK encoder/decoder pair bound to this connection's dynamic
// tables (which, per RFC 7541, are connection-scoped and not shared).
//
// Conn itself does not own the socket; callers drive it by feeding
// decoded frames from a FrameReader and draining frames it queues via
// the embedded FrameWriter onto their own send buffer.
type Conn struct {
	mu sync.Mutex

	streams map[uint32]*Stream
	tree    *PriorityTree
	sched   *Scheduler

	enc *hpack.Encoder
	dec *hpack.Decoder

	initialWindow  int64
	maxFrameSize   uint32
	goAwaySent     bool
	goAwayReceived bool
	lastPeerStream uint32
	writer         FrameWriter
}

// NewConn returns a fresh connection-level HTTP/2 state holder.
func NewConn() *Conn {
	tree := NewPriorityTree()
	return &Conn{
		streams:       make(map[uint32]*Stream),
		tree:          tree,
		sched:         NewScheduler(tree),
		enc:           hpack.NewEncoder(common.DefaultHeaderTableSize),
		dec:           hpack.NewDecoder(common.DefaultHeaderTableSize),
		initialWindow: common.DefaultStreamWindowSize,
		maxFrameSize:  DefaultMaxFrameSize,
	}
}

// Stream returns the stream tracked under id, creating it in the idle
// state if this is the first frame seen for it.
func (c *Conn) Stream(id uint32) *Stream {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.streamLocked(id)
}

func (c *Conn) streamLocked(id uint32) *Stream {
	if s, ok := c.streams[id]; ok {
		return s
	}
	s := NewStream(id, c.initialWindow, c.initialWindow)
	c.streams[id] = s
	return s
}

// CloseStream removes a stream from scheduling and tree bookkeeping
// once it reaches the closed state; it stays queryable for late
// PRIORITY frames via Stream(id), which will simply re-create an idle
// entry if callers look it up again (harmless, since a closed stream
// with no further frames expected is indistinguishable from one that
// never existed for priority purposes).
func (c *Conn) CloseStream(id uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sched.Discard(id)
	delete(c.streams, id)
}

// HandleSettings applies a decoded non-ACK SETTINGS frame's entries,
// updating HPACK's table budget and our bookkeeping of the peer's
// advertised limits. Per §4.D, HEADER_TABLE_SIZE feeds directly into
// the encoder's dynamic table cap (the encoder never emits entries
// the peer's decoder would refuse to store).
func (c *Conn) HandleSettings(settings []Setting) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range settings {
		switch s.ID {
		case SettingHeaderTableSize:
			c.enc.SetMaxTableSize(int(s.Value))
		case SettingInitialWindowSize:
			delta := int64(s.Value) - c.initialWindow
			c.initialWindow = int64(s.Value)
			for _, st := range c.streams {
				st.SendWindow += delta
			}
		case SettingMaxFrameSize:
			c.maxFrameSize = s.Value
		}
	}
}

// EncodeHeaders serializes fields through this connection's HPACK
// encoder, growing the dynamic table as the indexing policy dictates.
func (c *Conn) EncodeHeaders(fields []hpack.HeaderField) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	var dst []byte
	for _, f := range fields {
		dst = c.enc.Append(dst, f)
	}
	return dst
}

// DecodeHeaders parses a HEADERS (+ CONTINUATION) block through this
// connection's HPACK decoder.
func (c *Conn) DecodeHeaders(block []byte) ([]hpack.HeaderField, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dec.DecodeFull(block)
}

// ApplyPriority records a PRIORITY frame (or the priority fields
// carried on a HEADERS frame) into the tree and marks the stream's
// cached weight.
func (c *Conn) ApplyPriority(streamID, parentID uint32, weight uint8, exclusive bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tree.Reparent(streamID, parentID, weight, exclusive)
	if s, ok := c.streams[streamID]; ok {
		s.Weight = weight
		s.ParentID = parentID
	}
}

// ReadyToSend marks a stream as having output queued, for the
// scheduler's next dispatch pass.
func (c *Conn) ReadyToSend(streamID uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sched.Ready(streamID)
}

// NextToSend pops the next stream the scheduler picks, or ok=false if
// none is queued.
func (c *Conn) NextToSend() (streamID uint32, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sched.Next()
}

// MaxFrameSize returns the negotiated SETTINGS_MAX_FRAME_SIZE, the
// ceiling a DATA frame's payload must respect.
func (c *Conn) MaxFrameSize() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maxFrameSize
}

// ReceiveGoAway records an incoming GOAWAY's last-stream-id; once
// received, the connection must not initiate any new stream above
// that id (RFC 7540 §6.8).
func (c *Conn) ReceiveGoAway(lastStreamID uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.goAwayReceived = true
	c.lastPeerStream = lastStreamID
}

// GoingAway reports whether a GOAWAY has been sent or received, after
// which no new streams should be accepted or initiated.
func (c *Conn) GoingAway() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.goAwaySent || c.goAwayReceived
}

// AppendGoAway writes a GOAWAY frame closing the connection down at
// lastStreamID with the given error code and debug text.
func (c *Conn) AppendGoAway(buf *iobuf.Buffer, lastStreamID uint32, code ErrCode, debug string) {
	c.mu.Lock()
	c.goAwaySent = true
	c.mu.Unlock()

	payload := make([]byte, 8+len(debug))
	binary.BigEndian.PutUint32(payload[0:4], lastStreamID&0x7fffffff)
	binary.BigEndian.PutUint32(payload[4:8], uint32(code))
	copy(payload[8:], debug)
	c.writer.WriteFrame(buf, FrameGoAway, 0, 0, payload)
}

// AppendRSTStream writes a RST_STREAM frame and transitions the local
// FSM copy of the stream to closed.
func (c *Conn) AppendRSTStream(buf *iobuf.Buffer, streamID uint32, code ErrCode) {
	c.mu.Lock()
	if s, ok := c.streams[streamID]; ok {
		_ = s.SendRSTStream()
	}
	c.mu.Unlock()

	var payload [4]byte
	binary.BigEndian.PutUint32(payload[:], uint32(code))
	c.writer.WriteFrame(buf, FrameRSTStream, 0, streamID, payload[:])
	c.CloseStream(streamID)
}

// AppendPingAck writes a PING frame with the ACK flag set, echoing the
// peer's 8-byte opaque payload, the required response per RFC 7540
// §6.7.
func (c *Conn) AppendPingAck(buf *iobuf.Buffer, opaque []byte) {
	c.writer.WriteFrame(buf, FramePing, FlagAck, 0, opaque)
}

// AppendWindowUpdate writes a WINDOW_UPDATE frame restoring increment
// bytes of credit on streamID (or the connection, if streamID is 0).
func (c *Conn) AppendWindowUpdate(buf *iobuf.Buffer, streamID uint32, increment uint32) {
	var payload [4]byte
	binary.BigEndian.PutUint32(payload[:], increment&0x7fffffff)
	c.writer.WriteFrame(buf, FrameWindowUpdate, 0, streamID, payload[:])
}

// ApplyWindowUpdate credits increment bytes to streamID's send window
// (or every open stream's, if streamID is 0, representing a
// connection-level update; this core tracks stream-level windows
// only, per spec, so a connection-level WINDOW_UPDATE is accepted but
// not separately accounted).
func (c *Conn) ApplyWindowUpdate(streamID uint32, increment uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if streamID == 0 {
		return nil
	}
	s, ok := c.streams[streamID]
	if !ok {
		return nil
	}
	s.SendWindow += int64(increment)
	if s.SendWindow > (1<<31 - 1) {
		return newH2Error(ErrCodeFlowControl, "stream %d: window overflow", streamID)
	}
	return nil
}

// ConsumeSendWindow decrements streamID's send window by n bytes after
// a DATA frame of that size is written; callers must have already
// checked n <= window via DataBudget.
func (c *Conn) ConsumeSendWindow(streamID uint32, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.streams[streamID]; ok {
		s.SendWindow -= int64(n)
	}
}

// DataBudget returns how many bytes may be sent right now on
// streamID: the lesser of its remaining send window, the negotiated
// max frame size, and bufferWidth (the send buffer's writable room).
func (c *Conn) DataBudget(streamID uint32, bufferWidth int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.streams[streamID]
	if !ok {
		return 0
	}
	budget := s.SendWindow
	if budget < 0 {
		return 0
	}
	if int64(c.maxFrameSize) < budget {
		budget = int64(c.maxFrameSize)
	}
	if int64(bufferWidth) < budget {
		budget = int64(bufferWidth)
	}
	return int(budget)
}
