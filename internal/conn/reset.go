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

package conn

import (
	"errors"
	"io"
	"net"
	"strings"
	"syscall"
)

// isConnReset reports whether err indicates the peer reset the
// connection (RST), which per spec.md §4.A must transition the
// Connection directly to the active-close path rather than attempting
// a graceful shutdown sequence the peer can no longer observe.
func isConnReset(err error) bool {
	if err == nil || errors.Is(err, io.EOF) {
		return false
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return strings.Contains(opErr.Err.Error(), "reset by peer") ||
			strings.Contains(opErr.Err.Error(), "broken pipe")
	}
	return false
}
