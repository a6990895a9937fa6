// Copyright (C) 2026 tydb contributors
//
//	This program is free software: you can redistribute it and/or modify
//	it under the terms of the GNU General Public License as published by
//	the Free Software Foundation, either version 3 of the License, or
//	(at your option) any later version.
//
//	This program is distributed in the hope that it will be useful,
//	but WITHOUT ANY WARRANTY; without even the implied warranty of
//	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
//	GNU General Public License for more details.
//
//	You should have received a copy of the GNU General Public License
//	along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package directory decodes the compact binary directory trie
// (spec.md §3/§4.1) that maps object path names to typed store
// offsets, and the matching Variant for a given name.
package directory

// decodeVarint reads one big-endian, 7-bits-per-byte varint from b:
// continuation bit (0x80) set means more bytes follow. It always
// consumes at least one byte. Returns the value and bytes consumed, or
// ok=false if b runs out before a terminating byte is found.
func decodeVarint(b []byte) (value uint64, n int, ok bool) {
	for _, by := range b {
		value = (value << 7) | uint64(by&0x7f)
		n++
		if by&0x80 == 0 {
			return value, n, true
		}
	}
	return 0, 0, false
}

// encodeVarint appends v's big-endian 7-bit-per-byte varint encoding to
// dst. Used by directory_test.go to build trie fixtures (the real
// encoder lives in the out-of-scope store code generator) and by the
// journal package for its varint-encoded update lengths (its keys are
// fixed-width).
func encodeVarint(dst []byte, v uint64) []byte {
	var stack [10]byte
	n := 0
	stack[n] = byte(v & 0x7f)
	n++
	v >>= 7
	for v > 0 {
		stack[n] = byte(v&0x7f) | 0x80
		n++
		v >>= 7
	}
	for i := n - 1; i >= 0; i-- {
		dst = append(dst, stack[i])
	}
	return dst
}

// EncodeVarint is the exported form of encodeVarint, reused by other
// packages (journal) that need the identical big-endian varint format.
func EncodeVarint(dst []byte, v uint64) []byte { return encodeVarint(dst, v) }

// DecodeVarint is the exported form of decodeVarint.
func DecodeVarint(b []byte) (value uint64, n int, ok bool) { return decodeVarint(b) }
