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
package journal

import (
	"bytes"
	"math/rand"
	"testing"
)

// TestIterateChangedScenario reproduces spec.md §8 scenario 3.
func TestIterateChangedScenario(t *testing.T) {
	buf := make([]byte, 32)
	j := New("h", buf)

	j.RecordChange(0, 4) // stamped with seq 1
	j.BumpSeq()          // seq -> 2
	j.RecordChange(8, 4) // stamped with seq 2
	j.BumpSeq()          // seq -> 3
	j.RecordChange(16, 4) // stamped with seq 3

	var got []uint32
	j.IterateChanged(1, func(key uint32) { got = append(got, key) })
	if len(got) != 2 || got[0] != 8 || got[1] != 16 {
		t.Fatalf("IterateChanged(1) = %v, want [8 16]", got)
	}
}

func TestSeqMonotonic(t *testing.T) {
	buf := make([]byte, 64)
	j := New("h", buf)
	prev := j.Seq()
	for i := 0; i < 50; i++ {
		j.RecordChange(uint32(i%16)*4, 4)
		if i%3 == 0 {
			cur := j.BumpSeq()
			if cur < prev {
				t.Fatalf("seq went backwards: %d -> %d", prev, cur)
			}
			prev = cur
			if j.partialSeq {
				t.Fatal("partialSeq must be false right after BumpSeq")
			}
		}
	}
}

func TestHighestInvariant(t *testing.T) {
	buf := make([]byte, 64)
	j := New("h", buf)
	for i := 0; i < 20; i++ {
		j.RecordChange(uint32(i%8)*4, 4)
		j.BumpSeq()

		var maxSeq uint64
		j.tree.Ascend(func(rec ObjectInfo) bool {
			if s := j.toLong(rec.Seq); s > maxSeq {
				maxSeq = s
			}
			return true
		})
		if got := j.toLong(j.highest); got != maxSeq {
			t.Fatalf("cached highest = %d, want max over records %d", got, maxSeq)
		}
	}
}

func TestReplicationRoundTrip(t *testing.T) {
	a := make([]byte, 1024)
	b := make([]byte, 1024)
	ja := New("h", a)
	jb := New("h", b)

	rng := rand.New(rand.NewSource(1))
	since := uint64(0)
	for round := 0; round < 50; round++ {
		for i := 0; i < 5; i++ {
			off := uint32(rng.Intn(1024 - 4))
			v := byte(rng.Intn(256))
			for k := uint32(0); k < 4; k++ {
				a[off+k] = v
			}
			ja.RecordChange(off, 4)
		}
		var out []byte
		out, newSeq := ja.EncodeUpdates(out, since)
		if err := jb.DecodeUpdates(out, false); err != nil {
			t.Fatalf("DecodeUpdates: %v", err)
		}
		jb.BumpSeq()
		since = newSeq
	}
	if !bytes.Equal(a, b) {
		t.Fatal("buffers diverged after replication")
	}
}
