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
package protocol

// segmentHeaderSize is the one-byte continuation marker prefixed to
// every chunk a Segmenter emits downward.
const segmentHeaderSize = 1

const (
	segmentMore  = 0x01
	segmentFinal = 0x00
)

// Segmenter splits outbound payloads into chunks no larger than
// Down().MTU()-1 (leaving room for the continuation marker byte), and
// reassembles inbound chunks by concatenating them until the final
// marker arrives (spec.md §4.3).
type Segmenter struct {
	Base
	in []byte
}

// NewSegmenter returns a Segmenter ready to be linked into a stack.
func NewSegmenter() *Segmenter { return &Segmenter{} }

// MTU reports the usable payload size above the header byte, or 0 if
// the layer below is unlimited (no segmentation needed).
func (s *Segmenter) MTU() int {
	down := s.Base.MTU()
	if down == 0 {
		return 0
	}
	limit := down - segmentHeaderSize
	if limit < 1 {
		limit = 1
	}
	return limit
}

// Encode splits p into MTU-bounded chunks, each prefixed with a
// continuation marker: every chunk but the one ending this call is
// marked "more"; the final chunk is marked "more" or "final" according
// to last. A zero-length p with last=true still emits a bare final
// marker so the far end can close out an exact-multiple-of-MTU
// message.
func (s *Segmenter) Encode(p []byte, last bool) error {
	limit := s.MTU()
	if limit <= 0 {
		limit = len(p)
		if limit == 0 {
			limit = 1
		}
	}
	if len(p) == 0 {
		return s.emit(nil, last)
	}
	for len(p) > 0 {
		n := limit
		if n > len(p) {
			n = len(p)
		}
		chunk := p[:n]
		p = p[n:]
		if err := s.emit(chunk, last && len(p) == 0); err != nil {
			return err
		}
	}
	return nil
}

func (s *Segmenter) emit(chunk []byte, final bool) error {
	marker := byte(segmentMore)
	if final {
		marker = segmentFinal
	}
	out := make([]byte, 0, len(chunk)+segmentHeaderSize)
	out = append(out, marker)
	out = append(out, chunk...)
	return s.Base.Encode(out, final)
}

// Decode strips the continuation marker from an inbound chunk,
// accumulates its payload, and forwards the reassembled message up
// once a chunk carrying the final marker arrives.
func (s *Segmenter) Decode(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	marker, payload := p[0], p[1:]
	s.in = append(s.in, payload...)
	if marker != segmentFinal {
		return nil
	}
	msg := s.in
	s.in = nil
	return s.Base.Decode(msg)
}

// Reset discards any partially reassembled inbound message.
func (s *Segmenter) Reset() {
	debugf("Segmenter.Reset dropping %d buffered bytes", len(s.in))
	s.in = nil
}
