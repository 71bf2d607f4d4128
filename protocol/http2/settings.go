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

	"github.com/chenbk85/corehttpd/internal/iobuf"
)

// SETTINGS identifiers, RFC 7540 §6.5.2.
const (
	SettingHeaderTableSize      uint16 = 0x1
	SettingEnablePush           uint16 = 0x2
	SettingMaxConcurrentStreams uint16 = 0x3
	SettingInitialWindowSize    uint16 = 0x4
	SettingMaxFrameSize         uint16 = 0x5
	SettingMaxHeaderListSize    uint16 = 0x6
)

// Setting is one decoded (id, value) entry from a SETTINGS payload.
type Setting struct {
	ID    uint16
	Value uint32
}

// ParseSettings validates and decodes a SETTINGS frame payload. ack
// must be the frame's ACK flag; per RFC 7540 §6.5, an ACK'd SETTINGS
// frame must carry zero-length payload, and any non-ACK payload must
// be a multiple of 6 bytes.
func ParseSettings(payload []byte, streamID uint32, ack bool) ([]Setting, error) {
	if streamID != 0 {
		return nil, newH2Error(ErrCodeProtocol, "SETTINGS on non-zero stream %d", streamID)
	}
	if ack {
		if len(payload) != 0 {
			return nil, newH2Error(ErrCodeFrameSize, "SETTINGS ACK with non-empty payload")
		}
		return nil, nil
	}
	if len(payload)%6 != 0 {
		return nil, newH2Error(ErrCodeFrameSize, "SETTINGS payload length %d not a multiple of 6", len(payload))
	}

	out := make([]Setting, 0, len(payload)/6)
	for i := 0; i < len(payload); i += 6 {
		out = append(out, Setting{
			ID:    binary.BigEndian.Uint16(payload[i : i+2]),
			Value: binary.BigEndian.Uint32(payload[i+2 : i+6]),
		})
	}
	return out, nil
}

// AppendSettingsAck writes a zero-length SETTINGS frame with the ACK
// flag set, the required response to an incoming SETTINGS frame.
func (w FrameWriter) AppendSettingsAck(buf *iobuf.Buffer) {
	w.WriteFrame(buf, FrameSettings, FlagAck, 0, nil)
}

// AppendSettings writes a non-ACK SETTINGS frame carrying settings.
func (w FrameWriter) AppendSettings(buf *iobuf.Buffer, settings []Setting) {
	payload := make([]byte, 0, len(settings)*6)
	for _, s := range settings {
		var b [6]byte
		binary.BigEndian.PutUint16(b[0:2], s.ID)
		binary.BigEndian.PutUint32(b[2:6], s.Value)
		payload = append(payload, b[:]...)
	}
	w.WriteFrame(buf, FrameSettings, 0, 0, payload)
}
