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

// maxIntegerBytes bounds how many continuation bytes decodeInteger
// will read, so a malicious unterminated integer cannot hang the
// decoder reading forever from a truncated buffer.
const maxIntegerBytes = 10

// appendInteger encodes n as an N-bit prefix integer (RFC 7541 §5.1),
// ORing the low bits into the prefix byte's high bits (already set by
// the caller) and appending continuation bytes as needed.
func appendInteger(dst []byte, prefixBits int, prefixHighBits byte, n int) []byte {
	max := (1 << prefixBits) - 1
	if n < max {
		return append(dst, prefixHighBits|byte(n))
	}

	dst = append(dst, prefixHighBits|byte(max))
	n -= max
	for n >= 128 {
		dst = append(dst, byte(n%128+128))
		n /= 128
	}
	return append(dst, byte(n))
}

// decodeInteger reads an N-bit prefix integer starting at data[0],
// whose low prefixBits bits hold the prefix value. It returns the
// decoded value and the number of bytes consumed.
func decodeInteger(data []byte, prefixBits int) (n int, consumed int, err error) {
	if len(data) == 0 {
		return 0, 0, decodeErrorf("integer: empty input")
	}
	max := (1 << prefixBits) - 1
	n = int(data[0]) & max
	if n < max {
		return n, 1, nil
	}

	m := 0
	for i := 1; i < len(data); i++ {
		b := data[i]
		n += int(b&0x7f) << m
		m += 7
		if b&0x80 == 0 {
			return n, i + 1, nil
		}
		if i >= maxIntegerBytes {
			return 0, 0, decodeErrorf("integer: exceeds %d continuation bytes", maxIntegerBytes)
		}
	}
	return 0, 0, decodeErrorf("integer: truncated")
}
