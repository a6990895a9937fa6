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

// Package variant implements the store's type-erased value handle and
// the backing store buffer it points into.
package variant

import (
	"bytes"
	"encoding/binary"

	"github.com/launix-de/tydb"
)

// WriteHook is called after a data variant's Set has written new bytes
// into the store buffer. changed reports whether the new bytes differed
// from what was there before. Callers (e.g. journal.Journal) register a
// hook to implement the write barrier described in spec.md §4.5; the
// hook may be invoked from any goroutine (spec.md §5), so it must be
// safe to call concurrently with encode/decode on the journal it feeds.
type WriteHook func(offset, length uint32, changed bool)

// Callable backs a function-typed variable: it writes up to len(dst)
// bytes of its result into dst and reports how many bytes it wrote.
type Callable func(dst []byte) (int, error)

// Store is a non-owning view over a fixed-size buffer plus the side
// table of callables referenced by function variants, grounded on the
// teacher's storage-seq.go pattern of pairing a raw byte buffer with a
// small header describing how to interpret it.
type Store struct {
	Hash      string
	Buffer    []byte
	Order     binary.ByteOrder
	callables []Callable
	hook      WriteHook
}

// NewStore wraps buf (which the caller continues to own) as a store
// identified by hash, encoded in the given byte order. A nil order
// falls back to tydb.Settings.StoreInLittleEndian (spec.md §6) rather
// than the host's native order, so the compile-time flag actually
// governs stores that don't pin an explicit order.
func NewStore(hash string, buf []byte, order binary.ByteOrder) *Store {
	if order == nil {
		if tydb.Settings.StoreInLittleEndian {
			order = binary.LittleEndian
		} else {
			order = binary.BigEndian
		}
	}
	return &Store{Hash: hash, Buffer: buf, Order: order}
}

// RegisterCallable appends fn to the store's callable side table and
// returns its id, suitable for use as a function Variant's Ptr.
func (s *Store) RegisterCallable(fn Callable) uint32 {
	s.callables = append(s.callables, fn)
	return uint32(len(s.callables) - 1)
}

func (s *Store) callable(id uint32) (Callable, bool) {
	if int(id) >= len(s.callables) {
		return nil, false
	}
	return s.callables[id], true
}

// SetWriteHook installs the write barrier invoked by Variant.Set
// whenever it stores bytes that differ from the buffer's prior content.
func (s *Store) SetWriteHook(hook WriteHook) { s.hook = hook }

func (s *Store) nativeOrder() bool {
	if s.Order == nil {
		return true
	}
	var probe [2]byte
	binary.NativeEndian.PutUint16(probe[:], 1)
	return s.Order.Uint16(probe[:]) == 1
}

// ReadRaw copies length bytes starting at offset out of the buffer,
// with no type interpretation. Used by the debugger's `R` command
// (spec.md §4.7), which addresses memory directly rather than through
// a named variable.
func (s *Store) ReadRaw(offset, length uint32) ([]byte, error) {
	if uint64(offset)+uint64(length) > uint64(len(s.Buffer)) {
		return nil, ErrOutOfBounds
	}
	out := make([]byte, length)
	copy(out, s.Buffer[offset:offset+length])
	return out, nil
}

// WriteRaw writes data directly into the buffer at offset, bypassing
// variant type interpretation, and invokes the write hook exactly when
// the new bytes differ from what was there — the same write-barrier
// discipline Variant.Set follows. Backs the debugger's `W` command.
func (s *Store) WriteRaw(offset uint32, data []byte) error {
	if uint64(offset)+uint64(len(data)) > uint64(len(s.Buffer)) {
		return ErrOutOfBounds
	}
	dst := s.Buffer[offset : offset+uint32(len(data))]
	changed := !bytes.Equal(dst, data)
	copy(dst, data)
	if changed && tydb.Settings.EnableHooks && s.hook != nil {
		s.hook(offset, uint32(len(data)), changed)
	}
	return nil
}
