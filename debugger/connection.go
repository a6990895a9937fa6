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

import "github.com/launix-de/tydb/protocol"

// Connection sits at the top of a protocol stack (spec.md §4.7:
// "framing is provided by lower layers"): each inbound line reaching
// Decode is dispatched through a Debugger, and the response is sent
// back down through the embedded Base's Encode.
type Connection struct {
	protocol.Base
	d *Debugger
}

// NewConnection returns a Connection dispatching to d. Wire it under a
// Segmenter (and optionally a Compressor) with protocol.Link to get
// MTU-bounded framing for free.
func NewConnection(d *Debugger) *Connection {
	return &Connection{d: d}
}

// Decode treats p as one complete command line and replies downward
// with its response.
func (c *Connection) Decode(p []byte) error {
	resp := c.d.Process(p)
	return c.Base.Encode(resp, true)
}
