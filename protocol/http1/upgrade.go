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

import "strings"

// Upgrade is the decision the upgrade state machine makes once a
// request has been parsed: continue in plain HTTP/1.1, switch to h2c,
// or switch to WebSocket.
type Upgrade uint8

const (
	UpgradeNone Upgrade = iota
	UpgradeH2C
	UpgradeWebSocket
)

// DetectUpgrade inspects Connection/Upgrade (and method-specific
// conditions) to decide whether req requests a protocol switch, per
// spec §4.B and §4.F's handshake token list.
func DetectUpgrade(req *Request) Upgrade {
	if !connectionHasToken(req, "upgrade") {
		return UpgradeNone
	}

	switch strings.ToLower(req.Header("Upgrade")) {
	case "h2c":
		if connectionHasToken(req, "http2-settings") && req.Header("HTTP2-Settings") != "" {
			return UpgradeH2C
		}
	case "websocket":
		if req.Method == "GET" &&
			req.Header("Sec-WebSocket-Key") != "" &&
			req.Header("Sec-WebSocket-Version") != "" {
			return UpgradeWebSocket
		}
	}
	return UpgradeNone
}

func connectionHasToken(req *Request, token string) bool {
	for _, v := range req.HeaderValues("Connection") {
		for _, t := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(t), token) {
				return true
			}
		}
	}
	return false
}
