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

// Visitor is called once per variable record reached during List. It
// returns false to stop the walk early.
type Visitor func(name string, v variant.Variant) bool

// List performs a depth-first walk of dir, emitting (name, Variant)
// pairs for every variable record reachable under prefix. When prefix
// is empty every object in the directory is emitted; otherwise only
// the sub-tries compatible with prefix are traversed (spec.md §4.1).
func List(store *variant.Store, dir []byte, prefix string, visit Visitor) {
	walk(store, dir, 0, nil, []byte(prefix), 0, visit)
}

func walk(store *variant.Store, dir []byte, node int, path, prefix []byte, ppos int, visit Visitor) bool {
	if node < 0 || node >= len(dir) {
		return true
	}
	b := dir[node]
	switch {
	case b == terminatorByte:
		return true

	case b == segmentByte:
		if ppos < len(prefix) {
			if prefix[ppos] != '/' {
				return true
			}
			ppos++
		}
		next := append(append([]byte{}, path...), '/')
		return walk(store, dir, node+1, next, prefix, ppos, visit)

	case b >= variableMinByte:
		tag := variant.Tag(b ^ variableMinByte)
		node++
		var explicitLen uint32
		if !tag.IsFixed() {
			if node >= len(dir) {
				return true
			}
			explicitLen = uint32(dir[node])
			node++
		}
		off, n, ok := decodeVarint(dir[node:])
		if !ok {
			return true
		}
		_ = n
		if ppos < len(prefix) {
			return true // prefix not fully matched by this leaf
		}
		var v variant.Variant
		if tag.IsFunction() {
			size := uint32(tag.Size())
			if !tag.IsFixed() {
				size = explicitLen
			}
			v = variant.NewFunction(store, tag, uint32(off), size)
		} else {
			length := uint32(tag.Size())
			if !tag.IsFixed() {
				length = explicitLen
			}
			v = variant.NewData(store, tag, uint32(off), length)
		}
		return visit(string(path), v)

	default:
		node++
		lessLen, n1, ok1 := decodeVarint(dir[node:])
		if !ok1 {
			return true
		}
		node += n1
		greaterLen, n2, ok2 := decodeVarint(dir[node:])
		if !ok2 {
			return true
		}
		node += n2
		equalLen, n3, ok3 := decodeVarint(dir[node:])
		if !ok3 {
			return true
		}
		node += n3
		equalNode, lessNode, greaterNode := branchTargets(node, lessLen, greaterLen, equalLen)

		if ppos < len(prefix) {
			c := prefix[ppos]
			switch {
			case c == b && equalLen > 0:
				return walk(store, dir, equalNode, append(append([]byte{}, path...), b), prefix, ppos+1, visit)
			case c < b && lessLen > 0:
				return walk(store, dir, lessNode, path, prefix, ppos, visit)
			case c > b && greaterLen > 0:
				return walk(store, dir, greaterNode, path, prefix, ppos, visit)
			default:
				return true // prefix incompatible with this subtree
			}
		}

		// Prefix fully matched (or empty): explore every alternative.
		if lessLen > 0 {
			if !walk(store, dir, lessNode, path, prefix, ppos, visit) {
				return false
			}
		}
		if equalLen > 0 {
			if !walk(store, dir, equalNode, append(append([]byte{}, path...), b), prefix, ppos, visit) {
				return false
			}
		}
		if greaterLen > 0 {
			if !walk(store, dir, greaterNode, path, prefix, ppos, visit) {
				return false
			}
		}
		return true
	}
}
