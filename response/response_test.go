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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chenbk85/corehttpd/filecache"
	"github.com/chenbk85/corehttpd/internal/iobuf"
	"github.com/chenbk85/corehttpd/protocol/http2"
)

func TestParseRangeExplicitBounds(t *testing.T) {
	r, ok := ParseRange("bytes=100-199", 1000)
	require.True(t, ok)
	assert.Equal(t, int64(100), r.Start)
	assert.Equal(t, int64(199), r.End)
	assert.Equal(t, int64(100), r.Length())
}

func TestParseRangeOpenEndedDefaultsToSizeMinusOne(t *testing.T) {
	r, ok := ParseRange("bytes=500-", 1000)
	require.True(t, ok)
	assert.Equal(t, int64(500), r.Start)
	assert.Equal(t, int64(999), r.End)
}

func TestParseRangeSuffix(t *testing.T) {
	r, ok := ParseRange("bytes=-500", 1000)
	require.True(t, ok)
	assert.Equal(t, int64(500), r.Start)
	assert.Equal(t, int64(999), r.End)
}

func TestParseRangeRejectsMultiRange(t *testing.T) {
	_, ok := ParseRange("bytes=0-10,20-30", 1000)
	assert.False(t, ok)
}

func TestParseRangeRejectsOutOfBounds(t *testing.T) {
	_, ok := ParseRange("bytes=5000-6000", 1000)
	assert.False(t, ok)
}

func TestNegotiateGzipRequiresCompressibleTypeAndClientSupport(t *testing.T) {
	assert.True(t, NegotiateGzip("gzip, deflate", "text/html"))
	assert.False(t, NegotiateGzip("", "text/html"))
	assert.False(t, NegotiateGzip("gzip", "image/png"))
	assert.False(t, NegotiateGzip("identity", "text/html"))
}

func TestNegotiateGzipIgnoresContentTypeParameters(t *testing.T) {
	// mime.TypeByExtension returns "text/html; charset=utf-8", not the
	// bare type compressibleTypes is keyed on.
	assert.True(t, NegotiateGzip("gzip", "text/html; charset=utf-8"))
	assert.True(t, NegotiateGzip("gzip", "text/css; charset=utf-8"))
}

func TestPlanFullBodyNoRange(t *testing.T) {
	res := filecache.Result{Size: 10, Bytes: []byte("0123456789")}
	p, err := NewPlan(res, "", "text/plain", false)
	require.NoError(t, err)
	assert.Equal(t, 200, p.Status)
	assert.Equal(t, int64(10), p.ContentLength)
	assert.Empty(t, p.ContentRange)
}

func TestPlanRangeSlicesInMemoryBody(t *testing.T) {
	res := filecache.Result{Size: 10, Bytes: []byte("0123456789")}
	p, err := NewPlan(res, "bytes=2-4", "text/plain", false)
	require.NoError(t, err)
	assert.Equal(t, 206, p.Status)
	assert.Equal(t, "bytes 2-4/10", p.ContentRange)
	assert.Equal(t, []byte("234"), p.Body)
}

func TestPlanIgnoresRangeWhenGzipped(t *testing.T) {
	res := filecache.Result{Size: 10, Bytes: []byte("0123456789")}
	p, err := NewPlan(res, "bytes=2-4", "text/plain", true)
	require.NoError(t, err)
	assert.Equal(t, 200, p.Status)
}

func TestSendHTTP1DrainsBodyToCompletion(t *testing.T) {
	pool := iobuf.NewPool(0, 256)
	buf := pool.Get()
	defer pool.Put(buf)

	body := []byte("hello, world")
	p := &Plan{Body: append([]byte(nil), body...)}

	var sent []byte
	err := SendHTTP1(buf, p, func(b *iobuf.Buffer) error {
		sent = append(sent, b.Peek(b.Readable())...)
		b.Advance(b.Readable())
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, body, sent)
}

func TestSendHTTP2EmitsDataFramesWithEndStream(t *testing.T) {
	pool := iobuf.NewPool(0, 4096)
	buf := pool.Get()
	defer pool.Put(buf)

	conn := http2.NewConn()
	s := conn.Stream(1)
	s.SendWindow = 1 << 20

	p := &Plan{Body: []byte("abcdef")}

	var sent []byte
	err := SendHTTP2(buf, conn, 1, p, 4096, func(b *iobuf.Buffer) error {
		sent = append(sent, b.Peek(b.Readable())...)
		b.Advance(b.Readable())
		return nil
	})
	require.NoError(t, err)

	sendBuf := pool.Get()
	defer pool.Put(sendBuf)
	_, _ = sendBuf.Write(sent)

	r := http2.NewFrameReader(1 << 20)
	h, payload, err := r.ReadFrame(sendBuf)
	require.NoError(t, err)
	assert.Equal(t, http2.FrameData, h.Type)
	assert.True(t, h.Has(http2.FlagEndStream))
	assert.Equal(t, []byte("abcdef"), payload)

	assert.Equal(t, 0, sendBuf.Readable(), "no further frames expected")
}

func TestSendHTTP2RestoresWindowOnExhaustion(t *testing.T) {
	pool := iobuf.NewPool(0, 4096)
	buf := pool.Get()
	defer pool.Put(buf)

	conn := http2.NewConn()
	conn.Stream(1) // default SendWindow, smaller than the body below

	body := make([]byte, 20000)
	for i := range body {
		body[i] = byte(i)
	}
	p := &Plan{Body: append([]byte(nil), body...)}

	var sent []byte
	err := SendHTTP2(buf, conn, 1, p, 4096, func(b *iobuf.Buffer) error {
		sent = append(sent, b.Peek(b.Readable())...)
		b.Advance(b.Readable())
		return nil
	})
	require.NoError(t, err)

	sendBuf := pool.Get()
	defer pool.Put(sendBuf)
	_, _ = sendBuf.Write(sent)

	r := http2.NewFrameReader(1 << 20)
	var got []byte
	var sawEndStream bool
	for sendBuf.Readable() > 0 {
		h, payload, err := r.ReadFrame(sendBuf)
		require.NoError(t, err)
		if h.Type != http2.FrameData {
			continue
		}
		got = append(got, payload...)
		if h.Has(http2.FlagEndStream) {
			sawEndStream = true
		}
	}

	assert.True(t, sawEndStream)
	assert.Equal(t, body, got)
}
