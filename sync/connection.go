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
package sync

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/launix-de/tydb/journal"
	"github.com/launix-de/tydb/protocol"
)

// State is the per-(connection, store) link state of spec.md §4.6's
// table.
type State int

const (
	Unlinked State = iota
	WaitWelcome
	Synced
)

// StoreInfo is the per-store bookkeeping a SyncConnection keeps once a
// store is linked (spec.md §3).
type StoreInfo struct {
	Seq    uint64
	IDOut  uint16
	Source bool
}

type link struct {
	state State
	info  StoreInfo
}

// SyncConnection hosts the Hello/Welcome/Update/Bye state machine for
// one peer transport. It embeds protocol.Base so it can sit at the top
// of a protocol stack: inbound bytes reach it via Decode, outbound
// frames leave via the embedded Base's Encode (delegating down to
// whatever transport/compression/segmentation layers are below).
type SyncConnection struct {
	protocol.Base

	ID        uuid.UUID
	bigEndian bool

	sync *Synchronizer

	mu       sync.Mutex
	idInNext uint16
	idIn     map[uint16]*journal.Journal
	links    map[*journal.Journal]*link
}

// NewConnection returns a connection identified by a fresh
// github.com/google/uuid id. bigEndian declares this side's stores'
// endianness for the capitalised-command mismatch signal of spec.md
// §4.6.
func NewConnection(bigEndian bool) *SyncConnection {
	return &SyncConnection{
		ID:        uuid.New(),
		bigEndian: bigEndian,
		idIn:      make(map[uint16]*journal.Journal),
		links:     make(map[*journal.Journal]*link),
	}
}

func (c *SyncConnection) linkFor(j *journal.Journal) *link {
	l, ok := c.links[j]
	if !ok {
		l = &link{}
		c.links[j] = l
	}
	return l
}

func (c *SyncConnection) newID(j *journal.Journal) uint16 {
	id := c.idInNext
	c.idInNext++
	c.idIn[id] = j
	return id
}

func (c *SyncConnection) send(frame []byte) error {
	return c.Base.Encode(frame, true)
}

// Source requests replication of j to the peer: sends Hello and moves
// the (connection, j) link to WaitWelcome (spec.md §4.6).
func (c *SyncConnection) Source(j *journal.Journal) error {
	c.mu.Lock()
	id := c.newID(j)
	l := c.linkFor(j)
	l.state = WaitWelcome
	frame := encodeHello(j.Hash(), id, c.bigEndian)
	c.mu.Unlock()
	return c.send(frame)
}

// State reports the current link state for j, or Unlinked if j has
// never been mentioned on this connection.
func (c *SyncConnection) State(j *journal.Journal) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if l, ok := c.links[j]; ok {
		return l.state
	}
	return Unlinked
}

// Decode dispatches one inbound sync command frame (spec.md §4.6).
func (c *SyncConnection) Decode(p []byte) error {
	if len(p) == 0 {
		return fmt.Errorf("sync: empty frame")
	}
	cmd := baseCmd(p[0])
	body := p[1:]
	switch cmd {
	case cmdHello:
		return c.onHello(body)
	case cmdWelcome:
		return c.onWelcome(body)
	case cmdUpdate:
		return c.onUpdate(body)
	case cmdBye:
		return c.onBye(body)
	default:
		return fmt.Errorf("sync: unknown command %q", p[0])
	}
}

// onHello implements: "Unlinked, recv Hello -> register idOut, send
// Welcome, record full buffer as sent -> Synced". An unknown hash is a
// ProtocolViolation (spec.md §7): answer Bye(hash) and do not link.
func (c *SyncConnection) onHello(body []byte) error {
	hash, peerIDIn, err := decodeHello(body)
	if err != nil {
		return err
	}
	j, ok := c.sync.Lookup(hash)
	if !ok {
		debugf("%s: Hello for unknown hash %q, sending Bye", c.ID, hash)
		return c.send(encodeBye(byeFrame{kind: byeHash, hash: hash}, c.bigEndian))
	}

	c.mu.Lock()
	myID := c.newID(j)
	l := c.linkFor(j)
	l.state = Synced
	l.info = StoreInfo{IDOut: peerIDIn, Source: false}
	c.mu.Unlock()

	buf, seq := j.EncodeBuffer(nil)

	c.mu.Lock()
	l.info.Seq = seq
	c.mu.Unlock()

	return c.send(encodeWelcome(myID, peerIDIn, buf, c.bigEndian))
}

// onWelcome implements: "WaitWelcome, recv Welcome -> apply buffer,
// record seq, mark source=true -> Synced".
func (c *SyncConnection) onWelcome(body []byte) error {
	peerID, idOutEcho, buffer, err := decodeWelcome(body)
	if err != nil {
		return err
	}

	c.mu.Lock()
	j, ok := c.idIn[idOutEcho]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("sync: Welcome echoes unknown idIn %d", idOutEcho)
	}
	l := c.linkFor(j)
	if l.state != WaitWelcome {
		c.mu.Unlock()
		return fmt.Errorf("sync: unexpected Welcome for hash %q", j.Hash())
	}
	c.mu.Unlock()

	copy(j.Buffer(), buffer)

	c.mu.Lock()
	l.state = Synced
	l.info = StoreInfo{IDOut: peerID, Source: true, Seq: j.Seq()}
	c.mu.Unlock()
	debugf("%s: Welcome for %q adopted, seq=%d", c.ID, j.Hash(), j.Seq())
	return nil
}

// onUpdate implements: "Synced, recv Update -> apply deltas; mark new
// local seq as do-not-echo-back". idOut in the frame is the id this
// connection gave the peer for the store, i.e. a key into our own
// idIn map.
func (c *SyncConnection) onUpdate(body []byte) error {
	id, updates, err := decodeUpdate(body)
	if err != nil {
		return err
	}
	c.mu.Lock()
	j, ok := c.idIn[id]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("sync: Update for unknown id %d", id)
	}
	if err := j.DecodeUpdates(updates, false); err != nil {
		return err
	}
	newSeq := j.BumpSeq()

	c.mu.Lock()
	l := c.linkFor(j)
	l.info.Seq = newSeq // loop avoidance: Process() only sends what was stamped at or after this
	c.mu.Unlock()
	return nil
}

// onBye implements the any->Unlinked "recv Bye" transition for all
// three documented forms (spec.md §9 open question).
func (c *SyncConnection) onBye(body []byte) error {
	bye, err := decodeBye(body)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	switch bye.kind {
	case byeAll:
		c.links = make(map[*journal.Journal]*link)
		c.idIn = make(map[uint16]*journal.Journal)
	case byeHash:
		for j := range c.links {
			if j.Hash() == bye.hash {
				delete(c.links, j)
			}
		}
	case byeIn:
		if j, ok := c.idIn[bye.id]; ok {
			delete(c.links, j)
			delete(c.idIn, bye.id)
		}
	case byeOut:
		for j, l := range c.links {
			if l.info.IDOut == bye.id {
				delete(c.links, j)
			}
		}
	}
	return nil
}

// Process drains pending changes on every Synced store and sends one
// Update frame per store that has something new since it was last
// sent on this connection (spec.md §2 "periodic process() call").
// Stores with nothing new are skipped entirely rather than sending an
// empty Update.
func (c *SyncConnection) Process() error {
	type job struct {
		j     *journal.Journal
		since uint64
		idOut uint16
	}

	c.mu.Lock()
	jobs := make([]job, 0, len(c.links))
	for j, l := range c.links {
		if l.state == Synced {
			jobs = append(jobs, job{j: j, since: l.info.Seq, idOut: l.info.IDOut})
		}
	}
	c.mu.Unlock()

	for _, jb := range jobs {
		updates, newSeq := jb.j.EncodeUpdates(nil, jb.since)
		if len(updates) == 0 {
			continue
		}
		if err := c.send(encodeUpdate(jb.idOut, updates, c.bigEndian)); err != nil {
			return err
		}
		c.mu.Lock()
		if l, ok := c.links[jb.j]; ok {
			l.info.Seq = newSeq
		}
		c.mu.Unlock()
	}
	return nil
}

// Disconnect sends the most specific Bye it can for every linked store
// and drops all local mappings (spec.md §4.6 "any, user disconnect").
func (c *SyncConnection) Disconnect() error {
	c.mu.Lock()
	hashes := make([]string, 0, len(c.links))
	for j := range c.links {
		hashes = append(hashes, j.Hash())
	}
	c.links = make(map[*journal.Journal]*link)
	c.idIn = make(map[uint16]*journal.Journal)
	c.mu.Unlock()

	for _, h := range hashes {
		if err := c.send(encodeBye(byeFrame{kind: byeHash, hash: h}, c.bigEndian)); err != nil {
			return err
		}
	}
	return nil
}
