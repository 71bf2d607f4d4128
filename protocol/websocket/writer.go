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
	"encoding/binary"

	"github.com/chenbk85/corehttpd/internal/iobuf"
)

// WriteFrame appends one unmasked frame to buf. Per RFC 6455 §5.1,
// server-to-client frames are never masked; masking is exclusively a
// client-to-server obligation, enforced on the read side by ReadFrame.
func WriteFrame(buf *iobuf.Buffer, fin bool, opcode Opcode, payload []byte) {
	var first byte
	if fin {
		first = 0x80
	}
	first |= byte(opcode) & 0x0f

	var head [10]byte
	head[0] = first
	n := 1
	switch {
	case len(payload) < 126:
		head[1] = byte(len(payload))
		n = 2
	case len(payload) <= 0xffff:
		head[1] = 126
		binary.BigEndian.PutUint16(head[2:4], uint16(len(payload)))
		n = 4
	default:
		head[1] = 127
		binary.BigEndian.PutUint64(head[2:10], uint64(len(payload)))
		n = 10
	}

	_, _ = buf.Write(head[:n])
	_, _ = buf.Write(payload)
}

// WriteClose appends a CLOSE control frame with an optional 2-byte
// status code prefix, per RFC 6455 §5.5.1.
func WriteClose(buf *iobuf.Buffer, code uint16, reason string) {
	payload := make([]byte, 2+len(reason))
	binary.BigEndian.PutUint16(payload[0:2], code)
	copy(payload[2:], reason)
	WriteFrame(buf, true, OpcodeClose, payload)
}

// WritePong appends a PONG control frame echoing payload, the required
// response to a PING per RFC 6455 §5.5.3.
func WritePong(buf *iobuf.Buffer, payload []byte) {
	WriteFrame(buf, true, OpcodePong, payload)
}
