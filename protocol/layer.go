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

// Package protocol implements the stackable protocol-layer pipeline
// (spec.md §4.3): a doubly linked chain of codecs, each flowing decoded
// bytes up towards the application and encoded bytes down towards the
// transport.
package protocol

// Layer is one node of the protocol stack. Decode consumes inbound
// bytes (possibly buffering until a full logical unit is ready) and
// forwards upward via Up().Decode. Encode produces outbound bytes and
// forwards downward via Down().Encode; last=false marks a partial
// flush (segmentation, compression).
//
// No layer owns its neighbours: the caller assembles the stack with
// SetUp/SetDown and must keep every referenced layer alive, mirroring
// the teacher's index-based, non-owning links for tree/graph structure
// (storage/index.go's node references by key rather than pointer
// ownership).
type Layer interface {
	Decode(b []byte) error
	Encode(b []byte, last bool) error

	// MTU returns this layer's own limit combined with Down().MTU(),
	// or 0 if unlimited.
	MTU() int

	SetUp(Layer)
	SetDown(Layer)
	Up() Layer
	Down() Layer
}

// Flusher is implemented by layers that buffer outbound bytes and can
// be asked to emit them without a new Encode call (e.g. a segmenter
// mid-message, or a compressor between idle periods).
type Flusher interface {
	Flush() error
}

// Resetter is implemented by layers with internal protocol state that
// must be discardable independent of object lifetime (e.g. a
// compressor returning to Idle after a peer reconnects).
type Resetter interface {
	Reset()
}

// Base is an embeddable Layer implementation providing the default
// neighbour wiring and pass-through Decode/Encode/MTU behaviour
// described in spec.md §4.3 ("default decode delegates up, default
// encode delegates down"). Concrete layers embed Base and override
// only the methods they need to specialise.
type Base struct {
	up, down Layer
}

func (b *Base) SetUp(l Layer)   { b.up = l }
func (b *Base) SetDown(l Layer) { b.down = l }
func (b *Base) Up() Layer       { return b.up }
func (b *Base) Down() Layer     { return b.down }

// Decode forwards b upward unchanged.
func (b *Base) Decode(p []byte) error {
	if b.up == nil {
		return nil
	}
	return b.up.Decode(p)
}

// Encode forwards b downward unchanged.
func (b *Base) Encode(p []byte, last bool) error {
	if b.down == nil {
		return nil
	}
	return b.down.Encode(p, last)
}

// MTU returns Down().MTU(), or 0 (unlimited) at the bottom of the
// stack.
func (b *Base) MTU() int {
	if b.down == nil {
		return 0
	}
	return b.down.MTU()
}

// Link chains layers top to bottom: Link(a, b, c) wires a-up-of-b,
// b-up-of-c (a is the topmost/application-facing layer, c is the
// bottommost/transport-facing layer).
func Link(layers ...Layer) {
	for i := 0; i+1 < len(layers); i++ {
		layers[i].SetDown(layers[i+1])
		layers[i+1].SetUp(layers[i])
	}
}
