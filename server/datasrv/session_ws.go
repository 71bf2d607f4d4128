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

package datasrv

import (
	"github.com/chenbk85/corehttpd/protocol/websocket"
)

// runWebSocket loops websocket.ReadFrame after a completed upgrade
// handshake, answering PING with PONG and echoing text/binary frames
// back to the sender (spec §4.F names no application semantics beyond
// the codec itself, so an echo loop is the simplest conforming peer).
func (s *session) runWebSocket() error {
	for {
		frame, err := s.nextWSFrame()
		if err != nil {
			return err
		}

		switch frame.Opcode {
		case websocket.OpcodeClose:
			websocket.WriteClose(s.conn.SendBuffer(), 1000, "")
			if err := s.flush(); err != nil {
				return err
			}
			return s.conn.GracefulClose()
		case websocket.OpcodePing:
			websocket.WritePong(s.conn.SendBuffer(), frame.Payload)
			if err := s.flush(); err != nil {
				return err
			}
		case websocket.OpcodePong:
			// No keepalive timer to satisfy in this core.
		case websocket.OpcodeText, websocket.OpcodeBinary, websocket.OpcodeContinuation:
			websocket.WriteFrame(s.conn.SendBuffer(), frame.Fin, frame.Opcode, frame.Payload)
			if err := s.flush(); err != nil {
				return err
			}
		}
	}
}

// nextWSFrame parses the next WebSocket frame off the receive buffer,
// recv'ing more bytes as the incremental parser asks for them.
func (s *session) nextWSFrame() (websocket.Frame, error) {
	for {
		frame, err := websocket.ReadFrame(s.conn.RecvBuffer())
		if err == nil {
			return frame, nil
		}
		if err != websocket.ErrNeedMore {
			return websocket.Frame{}, err
		}
		if ferr := s.fillMore(); ferr != nil {
			return websocket.Frame{}, ferr
		}
	}
}
