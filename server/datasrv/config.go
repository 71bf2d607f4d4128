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

// Package datasrv wires the codec packages (http1, http2, websocket,
// hpack), the connection lifecycle (internal/conn), the TLS engine and
// the response pipeline together into the data-plane listener spec.md
// describes: one TCP listener speaking HTTP/1.1, HTTP/2 (h2c and ALPN)
// and WebSocket.
//
// There is no direct teacher analog for a real accept loop (the
// teacher only ever observes traffic passively via sniffer/); the
// worker-pool/shutdown shape here is grounded on controller/
// controller.go's Start/Stop lifecycle and internal/rescue's
// panic-recovery convention, generalized from "supervise capture
// goroutines" to "supervise accepted-connection goroutines".
package datasrv

import (
	"time"

	"github.com/chenbk85/corehttpd/tlsengine"
)

// Config carries the document-root, buffer, and concurrency knobs
// loaded from confengine per spec §6's configuration table plus this
// expansion's ambient keys.
type Config struct {
	Address string

	EnableHTTP2 bool
	TLS         *tlsengine.Options // nil selects plaintext (HTTP/1 + h2c)

	DocumentRoot string

	MaxHeaders     int
	MaxConnections int
	BufferWidth    int
	TimeWait       time.Duration
}

// Session-ticket rotation defaults applied when cfg.TLS is set; both
// are overridable via the ambient tlsSessionTicketRotation/
// tlsSessionCacheSize configuration keys (§6 expansion).
const (
	defaultTicketRotation = 12 * time.Hour
	defaultTicketKeep     = 3
)

// DefaultConfig returns the configuration applied absent an explicit
// override, matching the constants in common/const.go.
func DefaultConfig() Config {
	return Config{
		Address:        ":8080",
		EnableHTTP2:    true,
		MaxHeaders:     100,
		MaxConnections: 10000,
		BufferWidth:    4096,
		TimeWait:       240 * time.Second,
	}
}
