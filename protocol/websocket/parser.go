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

// ReadFrame decodes one frame from buf's readable region, following
// the PARSE_FIN -> PARSE_EXPECTED_SIZE -> READ_DATA -> DONE states
// from spec §4.F. On incomplete input it returns ErrNeedMore without
// consuming anything; on success it advances buf past the frame and
// unmasks the payload in place.
func ReadFrame(buf *iobuf.Buffer) (Frame, error) {
	data := buf.ReadSlice()
	if len(data) < 2 {
		return Frame{}, ErrNeedMore
	}

	fin := data[0]&0x80 != 0
	opcode := Opcode(data[0] & 0x0f)
	masked := data[1]&0x80 != 0
	lenField := data[1] & 0x7f

	pos := 2
	var payloadLen uint64
	switch {
	case lenField < 126:
		payloadLen = uint64(lenField)
	case lenField == 126:
		if len(data) < pos+2 {
			return Frame{}, ErrNeedMore
		}
		payloadLen = uint64(binary.BigEndian.Uint16(data[pos : pos+2]))
		pos += 2
	default: // 127
		if len(data) < pos+8 {
			return Frame{}, ErrNeedMore
		}
		payloadLen = binary.BigEndian.Uint64(data[pos : pos+8])
		pos += 8
	}

	if opcode.IsControl() {
		if !fin {
			return Frame{}, malformed("fragmented control frame")
		}
		if payloadLen > MaxControlPayload {
			return Frame{}, malformed("control frame payload exceeds 125 bytes")
		}
	}

	if !masked {
		return Frame{}, malformed("unmasked frame from client")
	}

	if len(data) < pos+4 {
		return Frame{}, ErrNeedMore
	}
	var mask [4]byte
	copy(mask[:], data[pos:pos+4])
	pos += 4

	total := pos + int(payloadLen)
	if len(data) < total {
		return Frame{}, ErrNeedMore
	}
	payload := data[pos:total]
	for i := range payload {
		payload[i] ^= mask[i%4]
	}

	buf.Advance(total)
	return Frame{Fin: fin, Opcode: opcode, Masked: masked, Payload: payload}, nil
}
