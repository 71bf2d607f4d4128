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

package websocket

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chenbk85/corehttpd/internal/iobuf"
)

func newTestBuffer(t *testing.T) *iobuf.Buffer {
	t.Helper()
	pool := iobuf.NewPool(0, 4096)
	buf := pool.Get()
	t.Cleanup(func() { pool.Put(buf) })
	return buf
}

// writeMaskedClientFrame builds a masked frame the way a client would
// and writes it directly into buf; it does not reuse WriteFrame (which
// always produces an unmasked, server-style frame) to avoid retrofitting
// a mask onto already-written bytes.
func writeMaskedClientFrame(t *testing.T, buf *iobuf.Buffer, fin bool, opcode Opcode, payload []byte) {
	t.Helper()

	var first byte
	if fin {
		first = 0x80
	}
	first |= byte(opcode) & 0x0f

	var out []byte
	out = append(out, first)
	switch {
	case len(payload) < 126:
		out = append(out, 0x80|byte(len(payload)))
	case len(payload) <= 0xffff:
		var ext [2]byte
		ext[0] = byte(len(payload) >> 8)
		ext[1] = byte(len(payload))
		out = append(out, 0x80|126)
		out = append(out, ext[:]...)
	default:
		var ext [8]byte
		n := uint64(len(payload))
		for i := 7; i >= 0; i-- {
			ext[i] = byte(n)
			n >>= 8
		}
		out = append(out, 0x80|127)
		out = append(out, ext[:]...)
	}

	mask := [4]byte{0xde, 0xad, 0xbe, 0xef}
	out = append(out, mask[:]...)

	masked := make([]byte, len(payload))
	for i, b := range payload {
		masked[i] = b ^ mask[i%4]
	}
	out = append(out, masked...)

	_, _ = buf.Write(out)
}

func TestReadFrameRoundTripsTextFrame(t *testing.T) {
	buf := newTestBuffer(t)
	writeMaskedClientFrame(t, buf, true, OpcodeText, []byte("hello websocket"))

	f, err := ReadFrame(buf)
	require.NoError(t, err)
	assert.True(t, f.Fin)
	assert.Equal(t, OpcodeText, f.Opcode)
	assert.Equal(t, "hello websocket", string(f.Payload))
}

func TestReadFrameBoundaryLengths(t *testing.T) {
	sizes := []int{0, 100, 125, 126, 127, 65535, 65536}
	for _, n := range sizes {
		buf := newTestBuffer(t)
		payload := make([]byte, n)
		for i := range payload {
			payload[i] = byte(i)
		}
		writeMaskedClientFrame(t, buf, true, OpcodeBinary, payload)

		f, err := ReadFrame(buf)
		require.NoError(t, err, "size %d", n)
		assert.Equal(t, payload, f.Payload, "size %d", n)
	}
}

func TestReadFrameRejectsUnmaskedClientFrame(t *testing.T) {
	buf := newTestBuffer(t)
	WriteFrame(buf, true, OpcodeText, []byte("hi")) // server-style, unmasked

	_, err := ReadFrame(buf)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedFrame)
}

func TestReadFrameRejectsOversizeControlPayload(t *testing.T) {
	buf := newTestBuffer(t)
	writeMaskedClientFrame(t, buf, true, OpcodePing, make([]byte, 200))

	_, err := ReadFrame(buf)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedFrame)
}

func TestReadFrameRejectsFragmentedControlFrame(t *testing.T) {
	buf := newTestBuffer(t)
	writeMaskedClientFrame(t, buf, false, OpcodePing, []byte("x"))

	_, err := ReadFrame(buf)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedFrame)
}

func TestReadFrameNeedsMoreLeavesBufferUntouched(t *testing.T) {
	buf := newTestBuffer(t)
	writeMaskedClientFrame(t, buf, true, OpcodeText, []byte("incomplete"))

	full := append([]byte(nil), buf.Peek(buf.Readable())...)
	truncated := full[:len(full)-1]
	buf.Advance(buf.Readable())
	_, _ = buf.Write(truncated)

	_, err := ReadFrame(buf)
	assert.ErrorIs(t, err, ErrNeedMore)
	assert.Equal(t, len(truncated), buf.Readable())
}

func TestAcceptKeyMatchesRFC6455Example(t *testing.T) {
	// The exact example from RFC 6455 §1.3.
	got := AcceptKey("dGhlIHNhbXBsZSBub25jZQ==")
	assert.Equal(t, "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=", got)
}

func TestWriteCloseCarriesStatusCode(t *testing.T) {
	buf := newTestBuffer(t)
	WriteClose(buf, 1000, "bye")

	raw := buf.Peek(buf.Readable())
	assert.Equal(t, byte(0x80|uint8(OpcodeClose)), raw[0])
	assert.Equal(t, byte(2+3), raw[1])
}
