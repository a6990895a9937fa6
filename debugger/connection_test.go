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
package debugger

import (
	"bytes"
	"testing"

	"github.com/launix-de/tydb/protocol"
)

// sink is a bottom-of-stack test layer that records every Encode call.
type sink struct {
	protocol.Base
	sent [][]byte
}

func (s *sink) Encode(p []byte, last bool) error {
	s.sent = append(s.sent, append([]byte(nil), p...))
	return nil
}

func TestConnectionDecodeRepliesDownward(t *testing.T) {
	d, _ := newFixture(t)
	conn := NewConnection(d)
	bottom := &sink{}
	protocol.Link(conn, bottom)

	if err := conn.Decode([]byte("ehi")); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(bottom.sent) != 1 || !bytes.Equal(bottom.sent[0], []byte("!hi")) {
		t.Fatalf("bottom.sent = %v, want one frame !hi", bottom.sent)
	}
}

func TestConnectionThroughSegmenter(t *testing.T) {
	d, _ := newFixture(t)
	conn := NewConnection(d)
	seg := protocol.NewSegmenter()
	bottom := &sink{}
	protocol.Link(conn, seg, bottom)

	if err := conn.Decode([]byte("w2a=x")); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(bottom.sent) == 0 {
		t.Fatal("segmenter forwarded nothing downward")
	}
}
