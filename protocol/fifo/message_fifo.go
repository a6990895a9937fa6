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
package fifo

import "fmt"

// msgRecord locates one queued message inside MessageFifo's byte ring.
type msgRecord struct {
	offset, length uint32
}

// MessageFifo stores variable-length messages by appending bytes to a
// circular byte buffer and keeping an ordered record of
// (offset, length) spans (spec.md §4.4). At most maxMessages records
// may be outstanding at once.
type MessageFifo struct {
	buf         []byte
	maxMessages int
	records     []msgRecord
	writePos    uint32
}

// NewMessageFifo returns an empty MessageFifo with the given total
// byte capacity and maximum number of outstanding messages.
func NewMessageFifo(capacityBytes, maxMessages int) *MessageFifo {
	return &MessageFifo{buf: make([]byte, capacityBytes), maxMessages: maxMessages}
}

// fits reports whether an n-byte message can be written starting at
// start without overlapping any currently active message's bytes.
func (f *MessageFifo) fits(start, n int) bool {
	end := start + n
	if end > len(f.buf) {
		return false
	}
	for _, r := range f.records {
		rs, re := int(r.offset), int(r.offset)+int(r.length)
		if start < re && rs < end {
			return false
		}
	}
	return true
}

// PushBack queues msg. It is placed right after the previous message
// when there is room; otherwise, if it fits starting at offset 0, it
// is placed there and the unused gap at the end of the buffer is
// skipped (spec.md §4.4). It returns false if msg cannot be queued
// right now (no contiguous room, or maxMessages outstanding already).
//
// A message that could never fit regardless of buffer state — longer
// than the whole backing buffer — is a configuration error, not a
// transient backpressure condition, so PushBack panics rather than
// returning false for it (spec.md §4.4 "aborts"), matching the
// teacher's ChangeSettings panic for a similarly unrecoverable
// programmer error.
func (f *MessageFifo) PushBack(msg []byte) bool {
	n := len(msg)
	if n > len(f.buf) {
		panic(fmt.Sprintf("fifo: message of %d bytes exceeds MessageFifo capacity %d", n, len(f.buf)))
	}
	if len(f.records) >= f.maxMessages {
		return false
	}
	if f.fits(int(f.writePos), n) {
		start := int(f.writePos)
		copy(f.buf[start:start+n], msg)
		f.records = append(f.records, msgRecord{offset: uint32(start), length: uint32(n)})
		f.writePos = uint32(start + n)
		if int(f.writePos) == len(f.buf) {
			f.writePos = 0
		}
		return true
	}
	if f.writePos != 0 && f.fits(0, n) {
		copy(f.buf[0:n], msg)
		f.records = append(f.records, msgRecord{offset: 0, length: uint32(n)})
		f.writePos = uint32(n)
		return true
	}
	return false
}

// Front returns the oldest queued message still waiting, without
// removing it.
func (f *MessageFifo) Front() ([]byte, bool) {
	if len(f.records) == 0 {
		return nil, false
	}
	r := f.records[0]
	return f.buf[r.offset : r.offset+r.length], true
}

// PopFront removes the oldest queued message.
func (f *MessageFifo) PopFront() bool {
	if len(f.records) == 0 {
		return false
	}
	f.records = f.records[1:]
	return true
}

func (f *MessageFifo) Empty() bool { return len(f.records) == 0 }
func (f *MessageFifo) Len() int    { return len(f.records) }
