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
package directory

import "github.com/launix-de/tydb/variant"

// Directory node byte classes, per spec.md §3:
//   - 0x00            terminator, no match
//   - '/' (0x2F)      path-segment boundary
//   - 0x80..0xFF      variable record (type tag is b^0x80)
//   - 0x20..0x7F      branch on a character (excluding '/')
const (
	terminatorByte = 0x00
	segmentByte    = '/'
	variableMinByte = 0x80
)

// Branch node layout (spec.md §4.1 resolved against the worked example
// in spec.md §8 scenario 1): a compare byte, then three big-endian
// varints lessLen, greaterLen, equalLen giving the BYTE LENGTH of each
// sibling subtree, followed immediately by the subtrees themselves in
// the order [equal][less][greater] — the equal continuation (the
// common case when walking a matched prefix) needs no skip at all,
// while less/greater are reached by skipping over the subtrees that
// precede them. This is the only offset convention consistent with the
// example's byte-for-byte result.
func branchTargets(base int, lessLen, greaterLen, equalLen uint64) (equalNode, lessNode, greaterNode int) {
	equalNode = base
	lessNode = base + int(equalLen)
	greaterNode = base + int(equalLen) + int(lessLen)
	return
}

// Find walks dir and name in lockstep and returns the Variant the name
// resolves to, or an invalid Variant on any lookup miss (spec.md §4.1:
// "does not fail loudly"). An unambiguous prefix of name (one that,
// given dir's shape, could not resolve to any other variable) is
// accepted exactly like the full name (directory abbreviation).
func Find(store *variant.Store, dir []byte, name string) variant.Variant {
	node := 0
	pos := 0
	for {
		if node < 0 || node >= len(dir) {
			debugf("Find(%q): ran off the directory at node %d", name, node)
			return variant.Invalid
		}
		b := dir[node]
		switch {
		case b == terminatorByte:
			debugf("Find(%q): terminator at node %d, no match", name, node)
			return variant.Invalid

		case b == segmentByte:
			node++
			for pos < len(name) && name[pos] != '/' {
				pos++
			}
			if pos >= len(name) {
				return variant.Invalid
			}
			pos++ // consume the '/'

		case b >= variableMinByte:
			tag := variant.Tag(b ^ variableMinByte)
			node++
			var explicitLen uint32
			if !tag.IsFixed() {
				if node >= len(dir) {
					return variant.Invalid
				}
				explicitLen = uint32(dir[node])
				node++
			}
			off, _, ok := decodeVarint(dir[node:])
			if !ok {
				return variant.Invalid
			}
			if pos != len(name) {
				// Name wasn't fully consumed: not a match (and the
				// abbreviation rule above only ever leaves pos where
				// it was, so this only trips on a genuine mismatch).
				return variant.Invalid
			}
			if tag.IsFunction() {
				size := uint32(tag.Size())
				if !tag.IsFixed() {
					size = explicitLen
				}
				return variant.NewFunction(store, tag, uint32(off), size)
			}
			length := uint32(tag.Size())
			if !tag.IsFixed() {
				length = explicitLen
			}
			return variant.NewData(store, tag, uint32(off), length)

		default: // 0x20 <= b < 0x80, excluding '/' handled above
			node++
			lessLen, n1, ok1 := decodeVarint(dir[node:])
			if !ok1 {
				return variant.Invalid
			}
			node += n1
			greaterLen, n2, ok2 := decodeVarint(dir[node:])
			if !ok2 {
				return variant.Invalid
			}
			node += n2
			equalLen, n3, ok3 := decodeVarint(dir[node:])
			if !ok3 {
				return variant.Invalid
			}
			node += n3
			equalNode, lessNode, greaterNode := branchTargets(node, lessLen, greaterLen, equalLen)

			if pos >= len(name) {
				// Directory abbreviation: only legal when this branch
				// is unambiguous (no less/greater alternative exists).
				if lessLen != 0 || greaterLen != 0 || equalLen == 0 {
					return variant.Invalid
				}
				node = equalNode
				continue
			}

			c := name[pos]
			switch {
			case c == b:
				if equalLen == 0 {
					return variant.Invalid
				}
				pos++
				node = equalNode
			case c < b:
				if lessLen == 0 {
					return variant.Invalid
				}
				node = lessNode
			default:
				if greaterLen == 0 {
					return variant.Invalid
				}
				node = greaterNode
			}
		}
	}
}
