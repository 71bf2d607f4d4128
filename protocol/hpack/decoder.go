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

// Decoder holds one connection's dynamic table and decodes a header
// block (the concatenated payload of one or more HEADERS/CONTINUATION
// frames) into HeaderFields.
type Decoder struct {
	dyn *dynamicTable
}

// NewDecoder returns a Decoder with a dynamic table bounded at
// maxTableSize bytes.
func NewDecoder(maxTableSize int) *Decoder {
	return &Decoder{dyn: newDynamicTable(maxTableSize)}
}

// SetMaxTableSize applies a local HEADER_TABLE_SIZE change.
func (d *Decoder) SetMaxTableSize(n int) { d.dyn.setMaxSize(n) }

// DecodeFull decodes every field in a complete header block.
func (d *Decoder) DecodeFull(data []byte) ([]HeaderField, error) {
	var out []HeaderField
	for len(data) > 0 {
		f, n, err := d.decodeOne(data)
		if err != nil {
			return nil, err
		}
		data = data[n:]
		if f != nil {
			out = append(out, *f)
		}
	}
	return out, nil
}

// decodeOne decodes the representation at data[0] and returns the
// field (nil for a dynamic-table-size-update, which carries no field)
// plus bytes consumed.
func (d *Decoder) decodeOne(data []byte) (*HeaderField, int, error) {
	if len(data) == 0 {
		return nil, 0, decodeErrorf("empty representation")
	}
	b := data[0]

	switch {
	case b&0x80 != 0: // Indexed Header Field
		idx, n, err := decodeInteger(data, 7)
		if err != nil {
			return nil, 0, err
		}
		f, err := d.resolve(idx)
		if err != nil {
			return nil, 0, err
		}
		return &f, n, nil

	case b&0x40 != 0: // Literal with Incremental Indexing
		f, n, err := d.decodeLiteral(data, 6)
		if err != nil {
			return nil, 0, err
		}
		d.dyn.insert(f)
		return &f, n, nil

	case b&0x20 != 0: // Dynamic Table Size Update
		n, consumed, err := decodeInteger(data, 5)
		if err != nil {
			return nil, 0, err
		}
		d.dyn.setMaxSize(n)
		return nil, consumed, nil

	case b&0x10 != 0: // Literal Never Indexed
		f, n, err := d.decodeLiteral(data, 4)
		if err != nil {
			return nil, 0, err
		}
		return &f, n, nil

	default: // Literal without Indexing
		f, n, err := d.decodeLiteral(data, 4)
		if err != nil {
			return nil, 0, err
		}
		return &f, n, nil
	}
}

func (d *Decoder) decodeLiteral(data []byte, prefixBits int) (HeaderField, int, error) {
	idx, n, err := decodeInteger(data, prefixBits)
	if err != nil {
		return HeaderField{}, 0, err
	}

	var name string
	if idx == 0 {
		name, consumed, err := decodeStringAt(data, n)
		if err != nil {
			return HeaderField{}, 0, err
		}
		value, vconsumed, err := decodeStringAt(data, n+consumed)
		if err != nil {
			return HeaderField{}, 0, err
		}
		return HeaderField{Name: name, Value: value}, n + consumed + vconsumed, nil
	}

	f, err := d.resolve(idx)
	if err != nil {
		return HeaderField{}, 0, err
	}
	name = f.Name

	value, vconsumed, err := decodeStringAt(data, n)
	if err != nil {
		return HeaderField{}, 0, err
	}
	return HeaderField{Name: name, Value: value}, n + vconsumed, nil
}

func decodeStringAt(data []byte, offset int) (string, int, error) {
	s, n, err := decodeString(data[offset:])
	return s, n, err
}

// resolve maps a 1-based combined index to its header field: 1..61
// is the static table, higher indices are the dynamic table offset by
// staticTableSize, with dynamic index 1 the most recently inserted
// entry, per RFC 7541 §2.3.3.
func (d *Decoder) resolve(idx int) (HeaderField, error) {
	if idx >= 1 && idx <= staticTableSize {
		return staticTable[idx-1], nil
	}
	if f, ok := d.dyn.at(idx - staticTableSize); ok {
		return f, nil
	}
	return HeaderField{}, decodeErrorf("index %d out of range", idx)
}
