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

// Package http2 implements RFC 7540 wire framing, the per-stream state
// machine, a weighted priority scheduler, and connection-level control
// frame handling (SETTINGS/PING/GOAWAY/RST_STREAM).
//
// Frame type/flag naming is grounded on protocol/phttp2/stream.go's
// constants; the frame reader's header/payload split and the writer's
// prependable-backfill idiom are grounded on the dgrr/http2 reference
// Frame struct (AcquireFrame/ReleaseFrame/WriteTo).
package http2

import (
	"encoding/binary"

	"github.com/chenbk85/corehttpd/internal/iobuf"
)

// Frame types, RFC 7540 §6.
const (
	FrameData         uint8 = 0x0
	FrameHeaders      uint8 = 0x1
	FramePriority     uint8 = 0x2
	FrameRSTStream    uint8 = 0x3
	FrameSettings     uint8 = 0x4
	FramePushPromise  uint8 = 0x5
	FramePing         uint8 = 0x6
	FrameGoAway       uint8 = 0x7
	FrameWindowUpdate uint8 = 0x8
	FrameContinuation uint8 = 0x9
)

// Frame flags, RFC 7540 §6.
const (
	FlagEndStream  uint8 = 0x1
	FlagAck        uint8 = 0x1 // SETTINGS/PING ack shares bit 0 with END_STREAM
	FlagEndHeaders uint8 = 0x4
	FlagPadded     uint8 = 0x8
	FlagPriority   uint8 = 0x20
)

// Preface is the exact 24-byte connection preface magic (RFC 7540
// §3.5); a mismatch is a fatal protocol error.
const Preface = "PRI * HTTP/2.0\r\n\r\nSM\r\n\r\n"

const frameHeaderLen = 9

// FrameHeader is the decoded 9-byte frame header.
type FrameHeader struct {
	Length   uint32 // 24-bit
	Type     uint8
	Flags    uint8
	StreamID uint32 // 31-bit
}

// Has reports whether flag is set.
func (h FrameHeader) Has(flag uint8) bool { return h.Flags&flag != 0 }

// ReadFrameHeader decodes the 9-byte header at the front of data.
// data must be at least 9 bytes; callers check readiness beforehand.
func ReadFrameHeader(data []byte) FrameHeader {
	return FrameHeader{
		Length:   uint32(data[0])<<16 | uint32(data[1])<<8 | uint32(data[2]),
		Type:     data[3],
		Flags:    data[4],
		StreamID: binary.BigEndian.Uint32(data[5:9]) & 0x7fffffff,
	}
}

// putFrameHeader writes h's wire form into dst[0:9].
func putFrameHeader(dst []byte, h FrameHeader) {
	dst[0] = byte(h.Length >> 16)
	dst[1] = byte(h.Length >> 8)
	dst[2] = byte(h.Length)
	dst[3] = h.Type
	dst[4] = h.Flags
	binary.BigEndian.PutUint32(dst[5:9], h.StreamID&0x7fffffff)
}

// FrameReader incrementally decodes frames out of a receive buffer.
// It never copies the payload: ReadFrame returns a header plus a slice
// referencing the buffer, valid only until the next call that advances
// the buffer's read cursor.
type FrameReader struct {
	maxFrameSize uint32
}

// NewFrameReader returns a FrameReader enforcing maxFrameSize on
// incoming payloads (SETTINGS_MAX_FRAME_SIZE).
func NewFrameReader(maxFrameSize uint32) *FrameReader {
	return &FrameReader{maxFrameSize: maxFrameSize}
}

// ErrNeedMore signals the buffer doesn't yet hold a complete frame.
var ErrNeedMore = newError("need more data")

// ReadFrame attempts to decode one frame from buf. On success it
// advances buf past the frame and returns the header plus payload
// slice. On incomplete input it returns ErrNeedMore without consuming
// anything.
func (r *FrameReader) ReadFrame(buf *iobuf.Buffer) (FrameHeader, []byte, error) {
	data := buf.ReadSlice()
	if len(data) < frameHeaderLen {
		return FrameHeader{}, nil, ErrNeedMore
	}
	h := ReadFrameHeader(data)
	if h.Length > r.maxFrameSize {
		return FrameHeader{}, nil, newH2Error(ErrCodeFrameSize, "frame length %d exceeds max %d", h.Length, r.maxFrameSize)
	}
	total := frameHeaderLen + int(h.Length)
	if len(data) < total {
		return FrameHeader{}, nil, ErrNeedMore
	}
	payload := data[frameHeaderLen:total]
	buf.Advance(total)
	return h, payload, nil
}

// FrameWriter lays frames down into a send buffer by reserving 9 bytes
// of header space, writing the payload, then back-filling the header
// once the payload length is known (the prependable-headroom idiom
// from internal/iobuf, used here so the length field never has to be
// computed up front).
type FrameWriter struct{}

// WriteFrame appends one complete frame (header + payload) to buf.
func (FrameWriter) WriteFrame(buf *iobuf.Buffer, typ, flags uint8, streamID uint32, payload []byte) {
	headerStart := buf.Reserve(frameHeaderLen)
	_, _ = buf.Write(payload)
	h := FrameHeader{Length: uint32(len(payload)), Type: typ, Flags: flags, StreamID: streamID}
	var hdr [frameHeaderLen]byte
	putFrameHeader(hdr[:], h)
	buf.FillAt(headerStart, hdr[:])
}

// BeginData reserves 9 bytes of header space for a DATA frame and
// returns a finish func. The caller writes the actual payload to buf
// via Write in between (the payload's final length is only known once
// writeContent has drained whatever it had, per spec §4.G's sending
// loop), then calls finish with the byte count actually written.
func (FrameWriter) BeginData(buf *iobuf.Buffer, streamID uint32) (finish func(nWritten int, endStream bool)) {
	headerStart := buf.Reserve(frameHeaderLen)
	return func(nWritten int, endStream bool) {
		flags := uint8(0)
		if endStream {
			flags = FlagEndStream
		}
		h := FrameHeader{Length: uint32(nWritten), Type: FrameData, Flags: flags, StreamID: streamID}
		var hdr [frameHeaderLen]byte
		putFrameHeader(hdr[:], h)
		buf.FillAt(headerStart, hdr[:])
	}
}
