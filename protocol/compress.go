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

import (
	"bytes"
	"io"

	"github.com/pierrec/lz4/v4"
)

// compressorState tracks the stream-stateful encoder side of a
// Compressor, per spec.md §4.3 ("States: Idle, Encoding, Decoding").
// The decode side never needs to hold state across calls because
// lower layers (Segmenter) already deliver one complete frame per
// Decode call, so decoding always runs Idle->Decoding->Idle within a
// single call.
type compressorState int

const (
	stateIdle compressorState = iota
	stateEncoding
)

// Compressor is the stream-oriented compression layer. It substitutes
// the ecosystem's streaming frame compressor, github.com/pierrec/lz4/v4,
// for the spec's reference Heatshrink parameters (W=8, L=4, inbuf=32):
// both are bounded-window, stream-stateful LZ compressors, and lz4's
// Writer/Reader pair gives the same Idle/Encoding/Decoding shape
// without vendoring a Heatshrink port (see DESIGN.md).
type Compressor struct {
	Base
	state compressorState
	buf   bytes.Buffer
	w     *lz4.Writer
}

// NewCompressor returns a Compressor in the Idle state.
func NewCompressor() *Compressor { return &Compressor{} }

// MTU reports 0: a stream layer imposes no per-message limit
// (spec.md §4.3).
func (c *Compressor) MTU() int { return 0 }

// Encode feeds p into the encoder. On last=true it finalizes the
// frame, drains the tail, and returns to Idle; a last=true call with
// no pending bytes and nothing buffered since the last finalize is a
// no-op (idempotence, spec.md §4.3).
func (c *Compressor) Encode(p []byte, last bool) error {
	if c.state == stateIdle {
		if last && len(p) == 0 {
			return nil
		}
		c.buf.Reset()
		c.w = lz4.NewWriter(&c.buf)
		c.state = stateEncoding
	}
	if len(p) > 0 {
		if _, err := c.w.Write(p); err != nil {
			return err
		}
	}
	if !last {
		if c.buf.Len() == 0 {
			return nil
		}
		out := append([]byte(nil), c.buf.Bytes()...)
		c.buf.Reset()
		return c.Base.Encode(out, false)
	}
	if err := c.w.Close(); err != nil {
		return err
	}
	out := append([]byte(nil), c.buf.Bytes()...)
	c.buf.Reset()
	c.w = nil
	c.state = stateIdle
	return c.Base.Encode(out, true)
}

// Decode decompresses one complete lz4 frame and passes the result
// upward in a single call, matching spec.md §4.3's "when the decoder
// signals end-of-input, pass the accumulated buffer upward in one
// decode call" (the layer below is expected to deliver whole frames,
// as Segmenter does).
func (c *Compressor) Decode(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	r := lz4.NewReader(bytes.NewReader(p))
	out, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	return c.Base.Decode(out)
}

// Reset discards any in-flight encoder state, returning to Idle.
func (c *Compressor) Reset() {
	debugf("Compressor.Reset from state %d", c.state)
	c.state = stateIdle
	c.w = nil
	c.buf.Reset()
}
