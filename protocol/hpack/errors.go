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

package hpack

import "github.com/pkg/errors"

func newError(format string, args ...any) error {
	format = "hpack: " + format
	return errors.Errorf(format, args...)
}

// ErrDecode is the HpackDecodeError error kind from spec §7: a
// malformed index, truncated integer, or truncated string.
var ErrDecode = newError("decode error")

// ErrHuffmanDecode is the HuffmanDecodeError error kind from spec §7.
var ErrHuffmanDecode = newError("huffman decode error")

func decodeErrorf(format string, args ...any) error {
	return errors.Wrap(ErrDecode, errors.Errorf(format, args...).Error())
}
