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
	"encoding/binary"
	"testing"
)

func newTestStore(t *testing.T, order binary.ByteOrder, size int) *Store {
	t.Helper()
	return NewStore("test-store", make([]byte, size), order)
}

func TestVariantRoundTripLittleEndian(t *testing.T) {
	s := newTestStore(t, binary.LittleEndian, 8)
	v := NewData(s, TagUint32, 0, 4)

	var in [4]byte
	binary.LittleEndian.PutUint32(in[:], 0x2A)
	if _, err := v.Set(in[:]); err != nil {
		t.Fatalf("Set: %v", err)
	}

	want := []byte{0x2a, 0x00, 0x00, 0x00}
	if got := s.Buffer[0:4]; !bytesEqual(got, want) {
		t.Fatalf("buffer bytes = %x, want %x", got, want)
	}

	var out [4]byte
	n, err := v.Get(out[:])
	if err != nil || n != 4 {
		t.Fatalf("Get: n=%d err=%v", n, err)
	}
	if got := binary.LittleEndian.Uint32(out[:]); got != 0x2A {
		t.Fatalf("round-trip value = %d, want 42", got)
	}
}

// the scenario from spec.md §8.2: store [0x00,0x00,0x00,0x2A] little
// endian, variable bound to a uint32 at offset 0 -> read returns 2a.
func TestVariantScenario8_2(t *testing.T) {
	s := NewStore("s", []byte{0x00, 0x00, 0x00, 0x2A}, binary.LittleEndian)
	v := NewData(s, TagUint32, 0, 4)
	var out [4]byte
	if _, err := v.Get(out[:]); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got := binary.BigEndian.Uint32(out[:]); got != 0x2A {
		t.Fatalf("value = %#x, want 0x2a", got)
	}
}

func TestVariantEndianSwap(t *testing.T) {
	// Store declared big-endian; host is whatever NativeEndian is, but
	// since BigEndian != NativeEndian on (the common) little-endian
	// hosts, Get must swap into host order.
	if binary.NativeEndian.String() == binary.BigEndian.String() {
		t.Skip("host is big-endian; swap test assumes little-endian host semantics")
	}
	s := NewStore("s", make([]byte, 4), binary.BigEndian)
	v := NewData(s, TagUint32, 0, 4)
	copy(s.Buffer, []byte{0x00, 0x00, 0x00, 0x2A})
	var out [4]byte
	if _, err := v.Get(out[:]); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got := binary.LittleEndian.Uint32(out[:]); got != 0x2A {
		t.Fatalf("swapped value = %#x, want 0x2a", got)
	}
}

func TestVariantSetInvokesHookOnlyWhenChanged(t *testing.T) {
	s := NewStore("s", make([]byte, 4), binary.LittleEndian)
	var calls int
	s.SetWriteHook(func(offset, length uint32, changed bool) {
		calls++
		if !changed {
			t.Fatalf("hook called with changed=false")
		}
	})
	v := NewData(s, TagUint32, 0, 4)
	buf := []byte{1, 0, 0, 0}
	if _, err := v.Set(buf); err != nil {
		t.Fatal(err)
	}
	if _, err := v.Set(buf); err != nil { // same bytes again: no change
		t.Fatal(err)
	}
	if calls != 1 {
		t.Fatalf("hook called %d times, want 1", calls)
	}
}

func TestVariantFunctionInvoke(t *testing.T) {
	s := NewStore("s", nil, binary.LittleEndian)
	id := s.RegisterCallable(func(dst []byte) (int, error) {
		return copy(dst, []byte("hi")), nil
	})
	v := NewFunction(s, TagFunction, id, 2)
	var out [8]byte
	n, err := v.Get(out[:])
	if err != nil {
		t.Fatal(err)
	}
	if string(out[:n]) != "hi" {
		t.Fatalf("got %q, want %q", out[:n], "hi")
	}
	if _, err := v.Set([]byte("x")); err != ErrNotWritable {
		t.Fatalf("Set on function variant: err=%v, want ErrNotWritable", err)
	}
}

func TestInvalidVariant(t *testing.T) {
	if Invalid.Valid() {
		t.Fatal("zero Variant must be invalid")
	}
	if _, err := Invalid.Get(make([]byte, 4)); err != ErrInvalid {
		t.Fatalf("Get on invalid variant: err=%v, want ErrInvalid", err)
	}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
