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
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/chenbk85/corehttpd/internal/conn"
	"github.com/chenbk85/corehttpd/internal/iobuf"
	"github.com/chenbk85/corehttpd/protocol/http1"
	"github.com/chenbk85/corehttpd/protocol/websocket"
	"github.com/chenbk85/corehttpd/response"
	"github.com/chenbk85/corehttpd/tlsengine"
)

// session drives one accepted connection from protocol detection
// through whichever codec loop (HTTP/1, HTTP/2, WebSocket) the
// handshake settles on, per spec.md §4.A through §4.F.
type session struct {
	server *Server
	conn   *conn.Connection
	id     string

	parser *http1.Parser
}

// errConnClosed is returned up through a session's codec loop once the
// peer has performed an orderly (FIN) close; it is not logged as a
// protocol failure.
var errConnClosed = newError("peer closed connection")

// run detects the connection's protocol and serves it until the peer
// disconnects or a fatal protocol error occurs.
func (s *session) run() error {
	s.id = uuid.NewString()
	s.parser = http1.NewParser(s.server.cfg.MaxHeaders)

	if tc, ok := s.conn.Raw().(*tls.Conn); ok {
		if err := tc.Handshake(); err != nil {
			return newError("tls handshake: %v", err)
		}
		if tlsengine.NegotiatedProtocol(tc) == tlsengine.ALPNH2 {
			return s.runHTTP2(nil)
		}
		return s.runHTTP1()
	}
	return s.runPlain()
}

// runPlain distinguishes HTTP/2 prior-knowledge (RFC 7540 §3.4) from
// HTTP/1.1 before a single byte of either has been fully read: the
// connection preface's first four bytes ("PRI ") can never begin a
// valid HTTP/1.1 request line, so a 4-byte peek is enough to branch.
func (s *session) runPlain() error {
	if err := s.fill(4); err != nil {
		return err
	}
	if string(s.conn.RecvBuffer().Peek(4)) == "PRI " {
		return s.runHTTP2(nil)
	}
	return s.runHTTP1()
}

// fill recvs until the connection's receive buffer holds at least min
// readable bytes.
func (s *session) fill(min int) error {
	buf := s.conn.RecvBuffer()
	for buf.Readable() < min {
		if err := s.fillMore(); err != nil {
			return err
		}
	}
	return nil
}

// fillMore posts one more recv, translating a peer FIN into
// errConnClosed so codec loops can treat it as a clean exit.
func (s *session) fillMore() error {
	n, err := s.conn.Recv(s.server.cfg.BufferWidth)
	if n == 0 && err == nil {
		_ = s.conn.GracefulClose()
		return errConnClosed
	}
	return err
}

// flush drains the connection's send buffer onto the wire, reposting
// writes until the kernel has accepted everything, per spec §4.A.
func (s *session) flush() error {
	_, err := s.conn.Send()
	return err
}

// runHTTP1 loops parse-dispatch-respond over the connection until the
// peer closes or a request asks to switch protocol.
func (s *session) runHTTP1() error {
	for {
		req, err := s.nextRequest()
		if err != nil {
			return err
		}

		switch http1.DetectUpgrade(req) {
		case http1.UpgradeH2C:
			return s.upgradeToH2C(req)
		case http1.UpgradeWebSocket:
			return s.upgradeToWebSocket(req)
		}

		if err := s.drainBody(req); err != nil {
			return err
		}

		keepAlive, err := s.serveHTTP1(req)
		if err != nil {
			return err
		}
		if !keepAlive {
			return s.conn.ActiveClose()
		}
	}
}

// nextRequest parses the next HTTP/1.1 request off the receive buffer,
// recv'ing more bytes as the incremental parser asks for them.
func (s *session) nextRequest() (*http1.Request, error) {
	for {
		req, err := s.parser.Parse(s.conn.RecvBuffer())
		if err == nil {
			return req, nil
		}
		if err != http1.ErrNeedMore {
			return nil, err
		}
		if ferr := s.fillMore(); ferr != nil {
			return nil, ferr
		}
	}
}

// drainBody consumes a declared, non-chunked request body so framing
// stays correct for the next pipelined request. This engine serves
// files and never reads a request body itself; chunked request bodies
// are rejected rather than decoded, since no handler here needs one.
func (s *session) drainBody(req *http1.Request) error {
	if req.Chunked {
		return newError("chunked request bodies are not accepted")
	}
	if req.ContentLength <= 0 {
		return nil
	}
	if err := s.fill(int(req.ContentLength)); err != nil {
		return err
	}
	s.conn.RecvBuffer().Advance(int(req.ContentLength))
	return nil
}

// serveHTTP1 resolves req against the file handler and writes the
// response out over the connection, returning whether the connection
// should stay open for the next pipelined request.
func (s *session) serveHTTP1(req *http1.Request) (keepAlive bool, err error) {
	plan, rerr := s.server.handler.Resolve(req)
	if rerr != nil {
		return false, s.writeHTTP1Error(404, "Not Found")
	}
	defer s.server.handler.Release(req, plan)

	sendBuf := s.conn.SendBuffer()
	connHeader := "close"
	if req.KeepAlive {
		connHeader = "keep-alive"
	}

	fmt.Fprintf(sendBuf, "HTTP/1.1 %d %s\r\n", plan.Status, statusText(plan.Status))
	fmt.Fprintf(sendBuf, "Content-Length: %d\r\n", plan.ContentLength)
	fmt.Fprintf(sendBuf, "Content-Type: %s\r\n", plan.ContentType)
	if plan.GzipEncoded {
		fmt.Fprintf(sendBuf, "Content-Encoding: gzip\r\n")
	}
	if plan.ContentRange != "" {
		fmt.Fprintf(sendBuf, "Content-Range: %s\r\n", plan.ContentRange)
		fmt.Fprintf(sendBuf, "Accept-Ranges: bytes\r\n")
	}
	fmt.Fprintf(sendBuf, "Connection: %s\r\n\r\n", connHeader)

	if err := response.SendHTTP1(sendBuf, &plan, s.sendAsync); err != nil {
		return false, err
	}
	return req.KeepAlive, nil
}

// writeHTTP1Error writes a minimal status-only response and signals
// the connection should close afterwards.
func (s *session) writeHTTP1Error(status int, reason string) error {
	sendBuf := s.conn.SendBuffer()
	fmt.Fprintf(sendBuf, "HTTP/1.1 %d %s\r\nContent-Length: 0\r\nConnection: close\r\n\r\n", status, reason)
	return s.flush()
}

// sendAsync matches response.SendHTTP1/SendHTTP2's sendAsync signature;
// buf is always the connection's own send buffer, so it's ignored in
// favor of draining via Connection.Send directly.
func (s *session) sendAsync(*iobuf.Buffer) error {
	return s.flush()
}

// upgradeToH2C answers an h2c Upgrade request with 101 Switching
// Protocols, applies the client's HTTP2-Settings preamble (RFC 7540
// §3.2) as the connection's initial SETTINGS, then continues the
// connection as HTTP/2.
func (s *session) upgradeToH2C(req *http1.Request) error {
	sendBuf := s.conn.SendBuffer()
	fmt.Fprintf(sendBuf, "HTTP/1.1 101 Switching Protocols\r\nConnection: Upgrade\r\nUpgrade: h2c\r\n\r\n")
	if err := s.flush(); err != nil {
		return err
	}

	var settingsPayload []byte
	if raw := req.Header("HTTP2-Settings"); raw != "" {
		if decoded, err := base64.RawURLEncoding.DecodeString(raw); err == nil {
			settingsPayload = decoded
		}
	}
	return s.runHTTP2(settingsPayload)
}

// upgradeToWebSocket answers a WebSocket handshake with 101 Switching
// Protocols and the computed Sec-WebSocket-Accept, then continues the
// connection as a WebSocket frame loop.
func (s *session) upgradeToWebSocket(req *http1.Request) error {
	accept := websocket.AcceptKey(req.Header("Sec-WebSocket-Key"))

	sendBuf := s.conn.SendBuffer()
	fmt.Fprintf(sendBuf, "HTTP/1.1 101 Switching Protocols\r\n")
	fmt.Fprintf(sendBuf, "Connection: Upgrade\r\nUpgrade: websocket\r\n")
	fmt.Fprintf(sendBuf, "Sec-WebSocket-Accept: %s\r\n\r\n", accept)
	if err := s.flush(); err != nil {
		return err
	}
	return s.runWebSocket()
}

// statusText mirrors net/http's table without adopting net/http's
// server: pulling in the stdlib's own ServeMux/Handler machinery here
// would duplicate the codec loop this package already drives by hand.
func statusText(code int) string {
	if t := http.StatusText(code); t != "" {
		return t
	}
	return "Unknown"
}
