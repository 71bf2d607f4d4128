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

package response

import (
	"io"

	"github.com/chenbk85/corehttpd/internal/iobuf"
	"github.com/chenbk85/corehttpd/protocol/http2"
)

// contentSource abstracts Plan's Body/Reader behind one read call so
// the two send loops below don't need to special-case which one is
// set.
func (p *Plan) read(chunk []byte) (int, error) {
	if p.Body != nil {
		n := copy(chunk, p.Body)
		p.Body = p.Body[n:]
		if len(p.Body) == 0 {
			return n, io.EOF
		}
		return n, nil
	}
	if p.Reader != nil {
		return p.Reader.Read(chunk)
	}
	return 0, io.EOF
}

// SendHTTP1 drains p's body into buf in ReadWriteBlockSize-ish chunks,
// calling sendAsync after each fill, until EOF. Per spec §4.G this is
// "loop writeContent(buf) then sendAsync until the reader reports
// EOF"; the Connection header itself is the caller's responsibility
// (set before the first sendAsync call), since it depends on the
// request's keep-alive negotiation, not the body being sent.
func SendHTTP1(buf *iobuf.Buffer, p *Plan, sendAsync func(*iobuf.Buffer) error) error {
	chunk := make([]byte, 32*1024)
	for {
		n, err := p.read(chunk)
		if n > 0 {
			if _, werr := buf.Write(chunk[:n]); werr != nil {
				return werr
			}
			if serr := sendAsync(buf); serr != nil {
				return serr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// SendHTTP2 drains p's body as a sequence of DATA frames on streamID,
// each sized to min(window, bufferWidth) per spec §4.G, setting
// END_STREAM on the final frame and requesting a WINDOW_UPDATE replay
// whenever the stream's send window is exhausted before the body is.
func SendHTTP2(buf *iobuf.Buffer, conn *http2.Conn, streamID uint32, p *Plan, bufferWidth int, sendAsync func(*iobuf.Buffer) error) error {
	var writer http2.FrameWriter
	chunk := make([]byte, bufferWidth)

	for {
		budget := conn.DataBudget(streamID, bufferWidth)
		if budget == 0 {
			// Window exhausted: this engine is both the peer the
			// WINDOW_UPDATE targets and the sender waiting on it, so
			// emitting the frame alone never moves DataBudget off
			// zero. Credit the local send window by the same amount,
			// restoring the default per spec §4.D.
			conn.AppendWindowUpdate(buf, streamID, uint32(bufferWidth))
			if err := conn.ApplyWindowUpdate(streamID, uint32(bufferWidth)); err != nil {
				return err
			}
			if err := sendAsync(buf); err != nil {
				return err
			}
			continue
		}
		if budget > len(chunk) {
			budget = len(chunk)
		}

		n, rerr := p.read(chunk[:budget])
		endStream := rerr == io.EOF

		if n > 0 {
			finish := writer.BeginData(buf, streamID)
			if _, werr := buf.Write(chunk[:n]); werr != nil {
				return werr
			}
			finish(n, endStream)
			conn.ConsumeSendWindow(streamID, n)
			if err := sendAsync(buf); err != nil {
				return err
			}
		}

		if endStream {
			if n == 0 {
				finish := writer.BeginData(buf, streamID)
				finish(0, true)
				if err := sendAsync(buf); err != nil {
					return err
				}
			}
			return nil
		}
		if rerr != nil {
			return rerr
		}
	}
}
