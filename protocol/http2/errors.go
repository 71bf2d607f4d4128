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

package http2

import "github.com/pkg/errors"

func newError(format string, args ...any) error {
	format = "http2: " + format
	return errors.Errorf(format, args...)
}

// ErrCode is an RFC 7540 §7 error code carried on RST_STREAM/GOAWAY.
type ErrCode uint32

const (
	ErrCodeNone               ErrCode = 0x0
	ErrCodeProtocol           ErrCode = 0x1
	ErrCodeInternal           ErrCode = 0x2
	ErrCodeFlowControl        ErrCode = 0x3
	ErrCodeSettingsTimeout    ErrCode = 0x4
	ErrCodeStreamClosed       ErrCode = 0x5
	ErrCodeFrameSize          ErrCode = 0x6
	ErrCodeRefusedStream      ErrCode = 0x7
	ErrCodeCancel             ErrCode = 0x8
	ErrCodeCompression        ErrCode = 0x9
	ErrCodeConnect            ErrCode = 0xa
	ErrCodeEnhanceYourCalm    ErrCode = 0xb
	ErrCodeInadequateSecurity ErrCode = 0xc
	ErrCodeHTTP11Required     ErrCode = 0xd
)

// H2Error is a protocol error tagged with the RFC 7540 error code to
// send back on RST_STREAM (stream-scoped) or GOAWAY (connection-scoped),
// matching spec §7's "MalformedHttp2Frame(code)" error kind.
type H2Error struct {
	Code ErrCode
	msg  string
}

func (e *H2Error) Error() string { return e.msg }

func newH2Error(code ErrCode, format string, args ...any) *H2Error {
	return &H2Error{Code: code, msg: errors.Errorf(format, args...).Error()}
}

// AsH2Error extracts the ErrCode from err if it is an *H2Error,
// defaulting to INTERNAL_ERROR for anything else (e.g. an I/O error
// surfaced while reading/writing frames).
func AsH2Error(err error) ErrCode {
	var h *H2Error
	if errors.As(err, &h) {
		return h.Code
	}
	return ErrCodeInternal
}
