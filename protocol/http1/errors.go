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

import "github.com/pkg/errors"

func newError(format string, args ...any) error {
	format = "http1: " + format
	return errors.Errorf(format, args...)
}

// ErrNeedMore signals the buffer does not yet hold a complete request;
// the caller must leave the buffer untouched and recv more bytes.
var ErrNeedMore = newError("need more data")

// ErrMalformedRequest is the MalformedRequest error kind from spec §7.
var ErrMalformedRequest = newError("malformed request")

// ErrTooManyHeaders fires when the header count exceeds the configured
// bound, classified as MalformedRequest per spec §7.
var ErrTooManyHeaders = newError("too many headers")

func malformed(reason string) error {
	return errors.Wrap(ErrMalformedRequest, reason)
}
