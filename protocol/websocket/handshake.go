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

import (
	"crypto/sha1"
	"encoding/base64"

	"github.com/chenbk85/corehttpd/common"
)

// AcceptKey computes the Sec-WebSocket-Accept value for clientKey per
// RFC 6455 §1.3: base64(SHA1(clientKey || GUID)). SHA-1 and base64 are
// spec-designated external primitives (§1), so this reaches for the
// standard library directly rather than a wrapping dependency.
func AcceptKey(clientKey string) string {
	h := sha1.New()
	h.Write([]byte(clientKey))
	h.Write([]byte(common.WebSocketGUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}
