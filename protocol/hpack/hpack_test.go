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

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntegerCodecRoundTrip(t *testing.T) {
	tests := []struct {
		name       string
		prefixBits int
		n          int
	}{
		{"fits in prefix", 5, 10},
		{"exactly saturates prefix", 5, 31},
		{"one continuation byte", 5, 200},
		{"many continuation bytes", 7, 1_000_000},
		{"zero", 6, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst := appendInteger(nil, tt.prefixBits, 0, tt.n)
			got, consumed, err := decodeInteger(dst, tt.prefixBits)
			require.NoError(t, err)
			assert.Equal(t, tt.n, got)
			assert.Equal(t, len(dst), consumed)
		})
	}
}

func TestHuffmanRoundTrip(t *testing.T) {
	samples := []string{
		"",
		"www.example.com",
		"no-cache",
		"custom-key",
		"custom-value",
		"gzip, deflate, br",
		"Mon, 21 Oct 2013 20:13:21 GMT",
	}
	for _, s := range samples {
		enc := appendHuffman(nil, s)
		dec, err := decodeHuffman(enc)
		require.NoError(t, err, "input %q", s)
		assert.Equal(t, s, dec)
	}
}

func TestEncoderDecoderRoundTrip(t *testing.T) {
	fields := []HeaderField{
		{":method", "GET"},
		{":path", "/index.html"},
		{":scheme", "https"},
		{"host", "example.com"},
		{"custom-header", "custom-value"},
		{"cookie", "sess=abc123"},
	}

	enc := NewEncoder(4096)
	var wire []byte
	for _, f := range fields {
		wire = enc.Append(wire, f)
	}

	dec := NewDecoder(4096)
	got, err := dec.DecodeFull(wire)
	require.NoError(t, err)
	assert.Equal(t, fields, got)
}

func TestEncoderReusesDynamicTableEntry(t *testing.T) {
	enc := NewEncoder(4096)
	f := HeaderField{"custom-header", "custom-value"}

	first := enc.Append(nil, f)
	second := enc.Append(nil, f)

	// The second encoding should be a single Indexed Header Field byte
	// (plus possible continuation), far shorter than the first literal.
	assert.Less(t, len(second), len(first))
	assert.NotZero(t, second[0]&0x80)
}

func TestEncoderUsesStaticIndexedField(t *testing.T) {
	enc := NewEncoder(4096)
	wire := enc.Append(nil, HeaderField{":method", "GET"})
	require.Len(t, wire, 1)
	assert.Equal(t, byte(0x80|2), wire[0])
}

func TestDynamicTableEvictsByByteCost(t *testing.T) {
	dyn := newDynamicTable(64)
	dyn.insert(HeaderField{"a", "12345678901234567890"}) // 1+20+32 = 53
	require.Equal(t, 1, dyn.len())

	dyn.insert(HeaderField{"b", "12345678901234567890"}) // evicts "a"
	assert.Equal(t, 1, dyn.len())
	f, ok := dyn.at(1)
	require.True(t, ok)
	assert.Equal(t, "b", f.Name)
}

func TestDecodeDynamicTableSizeUpdate(t *testing.T) {
	dec := NewDecoder(4096)
	// Dynamic Table Size Update to 0, encoded as a 5-bit prefix integer
	// with the 0x20 high bits.
	wire := appendInteger(nil, 5, 0x20, 0)
	got, err := dec.DecodeFull(wire)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 0, dec.dyn.maxSize)
}
