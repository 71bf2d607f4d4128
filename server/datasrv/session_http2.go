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
	"encoding/binary"
	"strconv"

	"github.com/chenbk85/corehttpd/protocol/hpack"
	"github.com/chenbk85/corehttpd/protocol/http1"
	"github.com/chenbk85/corehttpd/protocol/http2"
	"github.com/chenbk85/corehttpd/response"
)

// h2Request accumulates one HTTP/2 stream's decoded pseudo-headers and
// regular headers across HEADERS/CONTINUATION frames until END_HEADERS,
// and tracks whether END_STREAM has arrived yet.
type h2Request struct {
	req         *http1.Request
	headerBlock []byte
	endStream   bool
}

// runHTTP2 validates the connection preface, exchanges initial
// SETTINGS, then loops FrameReader.ReadFrame dispatching each frame
// against a fresh http2.Conn until the peer disconnects or a fatal
// protocol error occurs.
func (s *session) runHTTP2(upgradeSettings []byte) error {
	if err := s.fill(len(http2.Preface)); err != nil {
		return err
	}
	buf := s.conn.RecvBuffer()
	if string(buf.Peek(len(http2.Preface))) != http2.Preface {
		return newError("missing HTTP/2 connection preface")
	}
	buf.Advance(len(http2.Preface))

	h2 := http2.NewConn()
	if upgradeSettings != nil {
		if settings, err := http2.ParseSettings(upgradeSettings, 0, false); err == nil {
			h2.HandleSettings(settings)
		}
	}

	var w http2.FrameWriter
	sendBuf := s.conn.SendBuffer()
	w.AppendSettings(sendBuf, []http2.Setting{
		{ID: http2.SettingMaxFrameSize, Value: h2.MaxFrameSize()},
	})
	if err := s.flush(); err != nil {
		return err
	}

	reader := http2.NewFrameReader(h2.MaxFrameSize())
	pending := make(map[uint32]*h2Request)

	for {
		hdr, payload, err := reader.ReadFrame(buf)
		if err == http2.ErrNeedMore {
			if ferr := s.fillMore(); ferr != nil {
				return ferr
			}
			continue
		}
		if err != nil {
			code := http2.AsH2Error(err)
			h2.AppendGoAway(sendBuf, 0, code, err.Error())
			_ = s.flush()
			return err
		}

		if herr := s.handleH2Frame(h2, hdr, payload, pending); herr != nil {
			code := http2.AsH2Error(herr)
			h2.AppendGoAway(sendBuf, 0, code, herr.Error())
			_ = s.flush()
			return herr
		}
	}
}

func (s *session) handleH2Frame(h2 *http2.Conn, hdr http2.FrameHeader, payload []byte, pending map[uint32]*h2Request) error {
	switch hdr.Type {
	case http2.FrameSettings:
		return s.handleH2Settings(h2, hdr, payload)
	case http2.FramePing:
		return s.handleH2Ping(h2, hdr, payload)
	case http2.FrameWindowUpdate:
		return s.handleH2WindowUpdate(h2, hdr, payload)
	case http2.FrameRSTStream:
		stream := h2.Stream(hdr.StreamID)
		_ = stream.RecvRSTStream()
		h2.CloseStream(hdr.StreamID)
		delete(pending, hdr.StreamID)
		return nil
	case http2.FrameGoAway:
		if len(payload) >= 8 {
			h2.ReceiveGoAway(binary.BigEndian.Uint32(payload[0:4]) & 0x7fffffff)
		}
		return nil
	case http2.FramePriority:
		return s.handleH2Priority(h2, hdr, payload)
	case http2.FrameHeaders:
		return s.handleH2Headers(h2, hdr, payload, pending)
	case http2.FrameContinuation:
		return s.handleH2Continuation(h2, hdr, payload, pending)
	case http2.FrameData:
		return s.handleH2Data(h2, hdr, payload, pending)
	case http2.FramePushPromise:
		// Server push is never initiated by this engine, and a client
		// is not permitted to send PUSH_PROMISE (RFC 7540 §6.6).
		return newH2ProtocolError("unexpected PUSH_PROMISE from client")
	default:
		// Unknown frame types are ignored per RFC 7540 §4.1.
		return nil
	}
}

func newH2ProtocolError(msg string) error {
	return newError("%s", msg)
}

func (s *session) handleH2Settings(h2 *http2.Conn, hdr http2.FrameHeader, payload []byte) error {
	ack := hdr.Has(http2.FlagAck)
	settings, err := http2.ParseSettings(payload, hdr.StreamID, ack)
	if err != nil {
		return err
	}
	if ack {
		return nil
	}
	h2.HandleSettings(settings)
	var w http2.FrameWriter
	w.AppendSettingsAck(s.conn.SendBuffer())
	return s.flush()
}

func (s *session) handleH2Ping(h2 *http2.Conn, hdr http2.FrameHeader, payload []byte) error {
	if hdr.Has(http2.FlagAck) {
		return nil
	}
	h2.AppendPingAck(s.conn.SendBuffer(), payload)
	return s.flush()
}

func (s *session) handleH2WindowUpdate(h2 *http2.Conn, hdr http2.FrameHeader, payload []byte) error {
	if len(payload) < 4 {
		return newError("short WINDOW_UPDATE frame")
	}
	increment := binary.BigEndian.Uint32(payload) & 0x7fffffff
	if err := h2.ApplyWindowUpdate(hdr.StreamID, increment); err != nil {
		h2.AppendRSTStream(s.conn.SendBuffer(), hdr.StreamID, http2.AsH2Error(err))
		return s.flush()
	}
	return nil
}

func (s *session) handleH2Priority(h2 *http2.Conn, hdr http2.FrameHeader, payload []byte) error {
	if len(payload) != 5 {
		return newError("malformed PRIORITY frame")
	}
	exclusive := payload[0]&0x80 != 0
	parentID := binary.BigEndian.Uint32(payload[0:4]) & 0x7fffffff
	weight := payload[4] + 1
	h2.ApplyPriority(hdr.StreamID, parentID, weight, exclusive)
	return nil
}

// stripHeadersFraming removes HEADERS padding (RFC 7540 §6.2) and
// the HEADERS priority prefix (§6.2), returning the remaining header
// block fragment.
func stripHeadersFraming(hdr http2.FrameHeader, payload []byte, h2 *http2.Conn) ([]byte, error) {
	if hdr.Has(http2.FlagPadded) {
		if len(payload) < 1 {
			return nil, newError("short padded HEADERS frame")
		}
		padLen := int(payload[0])
		payload = payload[1:]
		if padLen > len(payload) {
			return nil, newError("HEADERS pad length exceeds frame")
		}
		payload = payload[:len(payload)-padLen]
	}
	if hdr.Has(http2.FlagPriority) {
		if len(payload) < 5 {
			return nil, newError("short HEADERS priority prefix")
		}
		exclusive := payload[0]&0x80 != 0
		parentID := binary.BigEndian.Uint32(payload[0:4]) & 0x7fffffff
		weight := payload[4] + 1
		h2.ApplyPriority(hdr.StreamID, parentID, weight, exclusive)
		payload = payload[5:]
	}
	return payload, nil
}

func (s *session) handleH2Headers(h2 *http2.Conn, hdr http2.FrameHeader, payload []byte, pending map[uint32]*h2Request) error {
	fragment, err := stripHeadersFraming(hdr, payload, h2)
	if err != nil {
		return err
	}

	stream := h2.Stream(hdr.StreamID)
	endStream := hdr.Has(http2.FlagEndStream)
	if err := stream.RecvHeaders(endStream); err != nil {
		return err
	}

	pr := &h2Request{endStream: endStream}
	pr.headerBlock = append(pr.headerBlock, fragment...)
	pending[hdr.StreamID] = pr

	if hdr.Has(http2.FlagEndHeaders) {
		return s.finishH2Headers(h2, hdr.StreamID, pending)
	}
	return nil
}

func (s *session) handleH2Continuation(h2 *http2.Conn, hdr http2.FrameHeader, payload []byte, pending map[uint32]*h2Request) error {
	pr, ok := pending[hdr.StreamID]
	if !ok {
		return newError("CONTINUATION for unknown stream %d", hdr.StreamID)
	}
	pr.headerBlock = append(pr.headerBlock, payload...)
	if hdr.Has(http2.FlagEndHeaders) {
		return s.finishH2Headers(h2, hdr.StreamID, pending)
	}
	return nil
}

// finishH2Headers decodes the accumulated header block once
// END_HEADERS has arrived, building the http1.Request the file handler
// expects from the HPACK-decoded pseudo/regular headers.
func (s *session) finishH2Headers(h2 *http2.Conn, streamID uint32, pending map[uint32]*h2Request) error {
	pr := pending[streamID]
	fields, err := h2.DecodeHeaders(pr.headerBlock)
	if err != nil {
		return err
	}

	req := &http1.Request{ContentLength: -1, KeepAlive: true}
	for _, f := range fields {
		switch f.Name {
		case ":method":
			req.Method = f.Value
		case ":path":
			path, query, _ := cutPath(f.Value)
			req.Path, req.Query = path, query
		case ":authority", ":scheme":
			// Not needed to resolve a file from the document root.
		default:
			req.Headers = append(req.Headers, http1.Header{Name: f.Name, Value: f.Value})
		}
	}
	pr.req = req

	if pr.endStream {
		return s.respondH2(h2, streamID, pending)
	}
	return nil
}

func cutPath(target string) (path, query string, ok bool) {
	for i := 0; i < len(target); i++ {
		if target[i] == '?' {
			return target[:i], target[i+1:], true
		}
	}
	return target, "", false
}

func (s *session) handleH2Data(h2 *http2.Conn, hdr http2.FrameHeader, payload []byte, pending map[uint32]*h2Request) error {
	stream := h2.Stream(hdr.StreamID)
	endStream := hdr.Has(http2.FlagEndStream)
	if err := stream.RecvData(endStream); err != nil {
		return err
	}
	// Request bodies are not consumed by the file handler; DATA
	// payload bytes are simply discarded once accounted for.
	if endStream {
		if pr, ok := pending[hdr.StreamID]; ok && pr.req != nil {
			return s.respondH2(h2, hdr.StreamID, pending)
		}
	}
	return nil
}

// respondH2 resolves the accumulated request against the file handler
// and streams the response back as a HEADERS frame plus flow-controlled
// DATA frames, per spec §4.G.
func (s *session) respondH2(h2 *http2.Conn, streamID uint32, pending map[uint32]*h2Request) error {
	pr := pending[streamID]
	delete(pending, streamID)
	req := pr.req

	plan, err := s.server.handler.Resolve(req)
	status := plan.Status
	if err != nil {
		status = 404
	}
	defer s.server.handler.Release(req, plan)

	fields := []hpack.HeaderField{
		{Name: ":status", Value: strconv.Itoa(status)},
	}
	if err == nil {
		fields = append(fields,
			hpack.HeaderField{Name: "content-length", Value: strconv.FormatInt(plan.ContentLength, 10)},
			hpack.HeaderField{Name: "content-type", Value: plan.ContentType},
		)
		if plan.GzipEncoded {
			fields = append(fields, hpack.HeaderField{Name: "content-encoding", Value: "gzip"})
		}
		if plan.ContentRange != "" {
			fields = append(fields, hpack.HeaderField{Name: "content-range", Value: plan.ContentRange})
		}
	}

	block := h2.EncodeHeaders(fields)
	var w http2.FrameWriter
	sendBuf := s.conn.SendBuffer()

	stream := h2.Stream(streamID)
	noBody := err != nil || plan.ContentLength == 0
	flags := http2.FlagEndHeaders
	if noBody {
		flags |= http2.FlagEndStream
	}
	w.WriteFrame(sendBuf, http2.FrameHeaders, flags, streamID, block)
	_ = stream.SendHeaders(noBody)
	if err := s.flush(); err != nil {
		return err
	}
	if noBody {
		h2.CloseStream(streamID)
		return nil
	}

	if serr := response.SendHTTP2(sendBuf, h2, streamID, &plan, s.server.cfg.BufferWidth, s.sendAsync); serr != nil {
		return serr
	}
	_ = stream.SendData(true)
	h2.CloseStream(streamID)
	return nil
}
