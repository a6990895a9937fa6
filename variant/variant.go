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
package variant

import (
	"bytes"
	"errors"

	"github.com/launix-de/tydb"
)

var (
	ErrInvalid         = errors.New("variant: invalid")
	ErrNoCallable      = errors.New("variant: no such callable")
	ErrNotWritable     = errors.New("variant: function variants are not writable")
	ErrOutOfBounds     = errors.New("variant: offset/length outside store buffer")
)

// Variant is a small polymorphic handle onto one variable: a type tag
// plus either a buffer pointer+length (data variants) or a callable id
// (function variants), per spec.md §3/§4.2.
type Variant struct {
	store *Store
	tag   Tag
	ptr   uint32 // buffer offset, or callable id for functions
	len   uint32 // byte length, or declared size for functions
}

// Invalid is the zero Variant: Valid() is false.
var Invalid Variant

// NewData constructs a data variant at buffer offset ptr spanning len
// bytes of tag's type.
func NewData(s *Store, tag Tag, ptr, length uint32) Variant {
	return Variant{store: s, tag: tag, ptr: ptr, len: length}
}

// NewFunction constructs a function variant identified by callable id.
func NewFunction(s *Store, tag Tag, id uint32, declaredSize uint32) Variant {
	return Variant{store: s, tag: tag, ptr: id, len: declaredSize}
}

func (v Variant) Valid() bool { return v.tag.Valid() }
func (v Variant) Type() Tag   { return v.tag }
func (v Variant) Size() uint32 { return v.len }
func (v Variant) Offset() uint32 { return v.ptr }
func (v Variant) Store() *Store  { return v.store }

func needsSwap(t Tag, s *Store) bool {
	if !t.IsArithmetic() && t.Class() != ClassPointer {
		return false
	}
	if t.Size() <= 1 {
		return false
	}
	return !s.nativeOrder()
}

func reverseBytes(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}

// Get copies up to len(dst) bytes of the variant's current value into
// dst (swapping endianness to host order for arithmetic/pointer types)
// and returns the number of bytes written. Functions are invoked with a
// writable window capped to both dst and their declared size.
func (v Variant) Get(dst []byte) (int, error) {
	if !v.Valid() {
		return 0, ErrInvalid
	}
	if v.tag.IsFunction() {
		fn, ok := v.store.callable(v.ptr)
		if !ok {
			return 0, ErrNoCallable
		}
		max := len(dst)
		if v.len > 0 && uint32(max) > v.len {
			max = int(v.len)
		}
		return fn(dst[:max])
	}
	if uint64(v.ptr)+uint64(v.len) > uint64(len(v.store.Buffer)) {
		return 0, ErrOutOfBounds
	}
	n := int(v.len)
	if len(dst) < n {
		n = len(dst)
	}
	copy(dst[:n], v.store.Buffer[v.ptr:v.ptr+uint32(n)])
	if needsSwap(v.tag, v.store) {
		reverseBytes(dst[:n])
	}
	return n, nil
}

// Set writes up to min(v.Size(), len(src)) bytes of src into the store
// buffer (swapping endianness from host order), invoking the store's
// write hook exactly when the new bytes differ from what was stored.
func (v Variant) Set(src []byte) (int, error) {
	if !v.Valid() {
		return 0, ErrInvalid
	}
	if v.tag.IsFunction() {
		return 0, ErrNotWritable
	}
	if uint64(v.ptr)+uint64(v.len) > uint64(len(v.store.Buffer)) {
		return 0, ErrOutOfBounds
	}
	n := int(v.len)
	if len(src) < n {
		n = len(src)
	}
	staged := make([]byte, n)
	copy(staged, src[:n])
	if needsSwap(v.tag, v.store) {
		reverseBytes(staged)
	}
	dst := v.store.Buffer[v.ptr : v.ptr+uint32(n)]
	changed := !bytes.Equal(dst, staged)
	copy(dst, staged)
	if changed && tydb.Settings.EnableHooks && v.store.hook != nil {
		v.store.hook(v.ptr, uint32(n), changed)
	}
	debugf("Set offset=%d len=%d changed=%v", v.ptr, n, changed)
	return n, nil
}
