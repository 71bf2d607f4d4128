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

package websocket

import "github.com/pkg/errors"

func newError(format string, args ...any) error {
	format = "websocket: " + format
	return errors.Errorf(format, args...)
}

// ErrNeedMore signals the buffer doesn't yet hold a complete frame.
var ErrNeedMore = newError("need more data")

// ErrMalformedFrame is MalformedWebSocketFrame from spec §7: an
// unmasked client frame, or a fragmented/oversize control frame.
var ErrMalformedFrame = newError("malformed frame")

func malformed(reason string) error {
	return errors.Wrap(ErrMalformedFrame, reason)
}
