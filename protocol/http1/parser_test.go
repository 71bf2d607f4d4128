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

package http1

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chenbk85/corehttpd/internal/iobuf"
)

func TestParseRequestPlain(t *testing.T) {
	buf := iobuf.New(0, 256)
	_, _ = buf.Write([]byte("GET /index.html HTTP/1.1\r\nHost: x\r\nAccept-Encoding: gzip\r\n\r\n"))

	p := NewParser(100)
	req, err := p.Parse(buf)
	require.NoError(t, err)
	assert.Equal(t, "GET", req.Method)
	assert.Equal(t, "/index.html", req.Path)
	assert.Equal(t, 1, req.MajorVersion)
	assert.Equal(t, 1, req.MinorVersion)
	assert.Equal(t, "x", req.Header("Host"))
	assert.True(t, req.KeepAlive)
	assert.Equal(t, 0, buf.Readable())
}

func TestParseRequestIncompleteLeavesBufferUntouched(t *testing.T) {
	buf := iobuf.New(0, 256)
	_, _ = buf.Write([]byte("GET /index.html HTTP/1.1\r\nHost: x\r\n"))

	before := buf.Readable()
	p := NewParser(100)
	_, err := p.Parse(buf)
	require.ErrorIs(t, err, ErrNeedMore)
	assert.Equal(t, before, buf.Readable())
}

func TestParseRequestMalformedMissingTarget(t *testing.T) {
	buf := iobuf.New(0, 256)
	_, _ = buf.Write([]byte("GET\r\n\r\n"))

	p := NewParser(100)
	_, err := p.Parse(buf)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedRequest)
}

func TestParseRequestTooManyHeaders(t *testing.T) {
	buf := iobuf.New(0, 512)
	_, _ = buf.Write([]byte("GET / HTTP/1.1\r\nA: 1\r\nB: 2\r\nC: 3\r\n\r\n"))

	p := NewParser(2)
	_, err := p.Parse(buf)
	require.ErrorIs(t, err, ErrTooManyHeaders)
}

func TestParseRequestContentLengthAndConnectionClose(t *testing.T) {
	buf := iobuf.New(0, 256)
	_, _ = buf.Write([]byte("POST /submit HTTP/1.1\r\nContent-Length: 12\r\nConnection: close\r\n\r\n"))

	p := NewParser(100)
	req, err := p.Parse(buf)
	require.NoError(t, err)
	assert.Equal(t, int64(12), req.ContentLength)
	assert.False(t, req.KeepAlive)
}

func TestDetectUpgradeH2C(t *testing.T) {
	buf := iobuf.New(0, 256)
	_, _ = buf.Write([]byte("GET / HTTP/1.1\r\nConnection: Upgrade, HTTP2-Settings\r\nUpgrade: h2c\r\nHTTP2-Settings: AAMAAABkAAQAAP__\r\n\r\n"))

	req, err := NewParser(100).Parse(buf)
	require.NoError(t, err)
	assert.Equal(t, UpgradeH2C, DetectUpgrade(req))
}

func TestDetectUpgradeWebSocket(t *testing.T) {
	buf := iobuf.New(0, 256)
	_, _ = buf.Write([]byte(
		"GET /ws HTTP/1.1\r\n" +
			"Connection: Upgrade\r\n" +
			"Upgrade: websocket\r\n" +
			"Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\n" +
			"Sec-WebSocket-Version: 13\r\n\r\n"))

	req, err := NewParser(100).Parse(buf)
	require.NoError(t, err)
	assert.Equal(t, UpgradeWebSocket, DetectUpgrade(req))
}

func TestDetectUpgradeNoneForPlainRequest(t *testing.T) {
	buf := iobuf.New(0, 256)
	_, _ = buf.Write([]byte("GET / HTTP/1.1\r\nHost: x\r\n\r\n"))

	req, err := NewParser(100).Parse(buf)
	require.NoError(t, err)
	assert.Equal(t, UpgradeNone, DetectUpgrade(req))
}
