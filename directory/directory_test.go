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

import (
	"sort"
	"testing"

	"github.com/launix-de/tydb/variant"
)

// entry describes one object the test trie builder should place.
type entry struct {
	name         string
	tag          variant.Tag
	offset       uint64
	explicitLen  uint8
}

// buildTrie is a test-only directory encoder mirroring Find/List's
// decode rules; the real encoder is the out-of-scope store code
// generator (spec.md §1).
func buildTrie(entries []entry, pos int) []byte {
	if len(entries) == 0 {
		// Zero-length subtree: Find/List treat this as "no such
		// alternative" without needing to land on an explicit
		// terminator byte, which also keeps unique chains unambiguous
		// for the abbreviation rule.
		return nil
	}
	if len(entries) == 1 && pos == len(entries[0].name) {
		return buildVariable(entries[0])
	}
	sorted := append([]entry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].name[pos:] < sorted[j].name[pos:] })
	mid := sorted[len(sorted)/2]
	b := mid.name[pos]

	var less, equal, greater []entry
	for _, e := range sorted {
		c := e.name[pos]
		switch {
		case c < b:
			less = append(less, e)
		case c > b:
			greater = append(greater, e)
		default:
			equal = append(equal, e)
		}
	}

	equalBytes := buildTrie(equal, pos+1)
	lessBytes := buildTrie(less, pos)
	greaterBytes := buildTrie(greater, pos)

	out := []byte{b}
	out = encodeVarint(out, uint64(len(lessBytes)))
	out = encodeVarint(out, uint64(len(greaterBytes)))
	out = encodeVarint(out, uint64(len(equalBytes)))
	out = append(out, equalBytes...)
	out = append(out, lessBytes...)
	out = append(out, greaterBytes...)
	return out
}

func buildVariable(e entry) []byte {
	out := []byte{variableMinByte | byte(e.tag)}
	if !e.tag.IsFixed() {
		out = append(out, e.explicitLen)
	}
	out = encodeVarint(out, e.offset)
	return out
}

// TestFindScenario reproduces spec.md §8 scenario 1: a branch on 'a'
// whose equal edge leads straight to a variable record (raw tag byte
// 0x01, a non-fixed one-byte unsigned integer under tydb's Tag
// encoding) with offset 0.
func TestFindScenario(t *testing.T) {
	dir := buildTrie([]entry{{name: "a", tag: variant.Tag(1), offset: 0, explicitLen: 1}}, 0)

	store := variant.NewStore("s", make([]byte, 16), nil)
	v := Find(store, dir, "a")
	if !v.Valid() {
		t.Fatalf("find(a) = invalid, want valid")
	}
	if v.Offset() != 0 {
		t.Fatalf("offset = %d, want 0", v.Offset())
	}
	if v.Type().IsFixed() {
		t.Fatalf("expected non-fixed tag per worked example")
	}
}

func TestFindMissingName(t *testing.T) {
	dir := buildTrie([]entry{{name: "a", tag: variant.TagUint8, offset: 0}}, 0)
	store := variant.NewStore("s", make([]byte, 16), nil)
	if Find(store, dir, "zzz").Valid() {
		t.Fatal("expected invalid Variant for unknown name")
	}
}

func TestFindMultipleNames(t *testing.T) {
	entries := []entry{
		{name: "alpha", tag: variant.TagUint32, offset: 0},
		{name: "beta", tag: variant.TagUint32, offset: 4},
		{name: "gamma", tag: variant.TagFloat64, offset: 8},
	}
	dir := buildTrie(entries, 0)
	store := variant.NewStore("s", make([]byte, 32), nil)

	for _, e := range entries {
		v := Find(store, dir, e.name)
		if !v.Valid() {
			t.Fatalf("find(%q): invalid", e.name)
		}
		if v.Offset() != uint32(e.offset) {
			t.Fatalf("find(%q): offset = %d, want %d", e.name, v.Offset(), e.offset)
		}
		if v.Type() != e.tag {
			t.Fatalf("find(%q): tag = %v, want %v", e.name, v.Type(), e.tag)
		}
	}
	// "al" is an unambiguous prefix of "alpha" among this set (no other
	// name shares it), so it abbreviates to the same Variant.
	if v := Find(store, dir, "al"); !v.Valid() || v.Offset() != 0 {
		t.Fatalf("find(al) = %+v, want the same resolution as find(alpha)", v)
	}
	if Find(store, dir, "delta").Valid() {
		t.Fatal("unknown name must not resolve")
	}
}

// TestFindAmbiguousPrefix checks that a prefix shared by two distinct
// names does NOT resolve via abbreviation.
func TestFindAmbiguousPrefix(t *testing.T) {
	entries := []entry{
		{name: "alpha", tag: variant.TagUint32, offset: 0},
		{name: "alps", tag: variant.TagUint32, offset: 4},
	}
	dir := buildTrie(entries, 0)
	store := variant.NewStore("s", make([]byte, 32), nil)
	if Find(store, dir, "al").Valid() {
		t.Fatal("prefix 'al' is ambiguous between alpha/alps and must not resolve")
	}
}

// TestFindAbbreviation checks the unambiguous-prefix acceptance rule:
// "solo" is the only name in the trie, so every branch along its chain
// has no sibling, and any prefix of it (down to the empty string)
// resolves the same as the full name.
func TestFindAbbreviation(t *testing.T) {
	entries := []entry{{name: "solo", tag: variant.TagUint16, offset: 2}}
	dir := buildTrie(entries, 0)
	store := variant.NewStore("s", make([]byte, 16), nil)

	full := Find(store, dir, "solo")
	if !full.Valid() {
		t.Fatal("find(solo) must resolve")
	}
	abbrev := Find(store, dir, "sol")
	if !abbrev.Valid() || abbrev.Offset() != full.Offset() || abbrev.Type() != full.Type() {
		t.Fatalf("find(sol) = %+v, want same resolution as find(solo)", abbrev)
	}
	// Completely empty input against an unambiguous single-entry trie
	// abbreviates all the way down too.
	empty := Find(store, dir, "")
	if !empty.Valid() || empty.Offset() != full.Offset() {
		t.Fatal("find(\"\") should abbreviate to the sole entry")
	}
}

func TestFindSegmentedPath(t *testing.T) {
	// "a/b" encoded as: branch 'a' -> equal -> '/' segment marker ->
	// branch 'b' -> equal -> variable record.
	inner := buildTrie([]entry{{name: "b", tag: variant.TagBool, offset: 5}}, 0)
	withSlash := append([]byte{segmentByte}, inner...)
	dir := []byte{'a'}
	dir = encodeVarint(dir, 0) // lessLen
	dir = encodeVarint(dir, 0) // greaterLen
	dir = encodeVarint(dir, uint64(len(withSlash)))
	dir = append(dir, withSlash...)

	store := variant.NewStore("s", make([]byte, 16), nil)
	v := Find(store, dir, "a/b")
	if !v.Valid() || v.Offset() != 5 {
		t.Fatalf("find(a/b) = %+v, want offset 5", v)
	}
	if v := Find(store, dir, "a/"); !v.Valid() || v.Offset() != 5 {
		t.Fatal("find(a/) must abbreviate to a/b: the only segment past the slash is unambiguous")
	}
	if Find(store, dir, "a").Valid() {
		t.Fatal("find(a) must miss: the '/' node requires a following segment")
	}
}

func TestList(t *testing.T) {
	entries := []entry{
		{name: "alpha", tag: variant.TagUint32, offset: 0},
		{name: "beta", tag: variant.TagUint32, offset: 4},
		{name: "gamma", tag: variant.TagFloat64, offset: 8},
	}
	dir := buildTrie(entries, 0)
	store := variant.NewStore("s", make([]byte, 32), nil)

	seen := map[string]variant.Variant{}
	List(store, dir, "", func(name string, v variant.Variant) bool {
		seen[name] = v
		return true
	})
	if len(seen) != len(entries) {
		t.Fatalf("listed %d entries, want %d: %v", len(seen), len(entries), seen)
	}
	for _, e := range entries {
		v, ok := seen[e.name]
		if !ok {
			t.Fatalf("List did not emit %q", e.name)
		}
		if v.Offset() != uint32(e.offset) {
			t.Fatalf("List(%q): offset = %d, want %d", e.name, v.Offset(), e.offset)
		}
	}
}

func TestListPrefix(t *testing.T) {
	entries := []entry{
		{name: "alpha", tag: variant.TagUint32, offset: 0},
		{name: "alps", tag: variant.TagUint32, offset: 4},
		{name: "beta", tag: variant.TagFloat64, offset: 8},
	}
	dir := buildTrie(entries, 0)
	store := variant.NewStore("s", make([]byte, 32), nil)

	var got []string
	List(store, dir, "al", func(name string, v variant.Variant) bool {
		got = append(got, name)
		return true
	})
	sort.Strings(got)
	want := []string{"alpha", "alps"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("List with prefix 'al' = %v, want %v", got, want)
	}
}

func TestListStopsEarly(t *testing.T) {
	entries := []entry{
		{name: "alpha", tag: variant.TagUint32, offset: 0},
		{name: "beta", tag: variant.TagUint32, offset: 4},
	}
	dir := buildTrie(entries, 0)
	store := variant.NewStore("s", make([]byte, 32), nil)

	count := 0
	List(store, dir, "", func(name string, v variant.Variant) bool {
		count++
		return false
	})
	if count != 1 {
		t.Fatalf("visitor called %d times after returning false, want 1", count)
	}
}
