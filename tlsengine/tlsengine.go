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

// Package tlsengine builds the ALPN-aware crypto/tls.Config this
// engine terminates TLS with, plus a server-side session cache keyed
// by session id, per spec §4.I.
//
// There is no OpenSSL binding anywhere in the example corpus for a Go
// server (crypto/tls is the only TLS stack the pack reaches for,
// transitively via golang.org/x/net's HTTP/2 ALPN plumbing), so this
// package is stdlib crypto/tls rather than a bound C library; the
// session cache's mutex+map shape is grounded on
// common/socket/ttlcache.go, generalized from a fixed-TTL tuple set to
// an explicit-eviction session store (TLS sessions are evicted by the
// peer resuming or the cache filling, not by a wall-clock TTL).
package tlsengine

import (
	"crypto/tls"
	"sync"

	"github.com/pkg/errors"
)

// ALPN protocol names advertised by this engine, spec §4.I / §6.
const (
	ALPNH2   = "h2"
	ALPNHTTP1 = "http/1.1"
)

// Options configures the per-process TLS context, sourced from the
// configuration keys listed in spec §6 (privateKeyPath,
// certificatePath, enableHTTP2).
type Options struct {
	CertFile    string
	KeyFile     string
	EnableHTTP2 bool
}

// NewConfig builds a *tls.Config advertising h2 (when enabled) ahead
// of http/1.1 in its ALPN NextProtos list, backed by cache as the
// session store. TLS 1.2 is the floor per spec §4.I ("TLS 1.2 server
// method"); modern cipher suites and curve preferences are left to
// crypto/tls's own defaults, which already exclude the
// compression/renegotiation behaviors spec §4.I says to disable
// (crypto/tls never implements TLS-level compression and only
// renegotiates when explicitly configured to, which this config
// leaves at its zero value, i.e. never).
func NewConfig(opts Options, cache *SessionCache) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(opts.CertFile, opts.KeyFile)
	if err != nil {
		return nil, errors.Wrap(err, "tlsengine: load certificate")
	}

	protos := []string{ALPNHTTP1}
	if opts.EnableHTTP2 {
		protos = []string{ALPNH2, ALPNHTTP1}
	}

	cfg := &tls.Config{
		Certificates:             []tls.Certificate{cert},
		MinVersion:               tls.VersionTLS12,
		NextProtos:               protos,
		PreferServerCipherSuites: true,
		ClientSessionCache:       nil, // server side: we are the session store, not a client cache user
	}
	if cache != nil {
		cache.bind(cfg)
	}
	return cfg, nil
}

// NegotiatedProtocol reports which of h2/http/1.1 the handshake
// selected, so the caller's listener knows whether to hand the
// connection to protocol/http2 or protocol/http1.
func NegotiatedProtocol(conn *tls.Conn) string {
	return conn.ConnectionState().NegotiatedProtocol
}
