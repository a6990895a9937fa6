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
	"context"
	"sync"

	"github.com/dc0d/onexit"
	"golang.org/x/sync/errgroup"

	"github.com/launix-de/NonLockingReadMap"

	"github.com/launix-de/tydb/journal"
)

// journalEntry adapts a registered journal to
// NonLockingReadMap.KeyGetter[string], mirroring the teacher's own use
// of NonLockingReadMap for "read often, write very seldom" lookup
// tables (spec.md §5: the write-hook may fire from any goroutine, but
// a store is registered with a Synchronizer once and essentially never
// again).
type journalEntry struct {
	hash string
	j    *journal.Journal
}

func (e journalEntry) GetKey() string   { return e.hash }
func (e journalEntry) ComputeSize() uint { return 64 }

// Synchronizer owns the process-wide map of registered stores and the
// set of live peer connections (spec.md §3/§4.6).
type Synchronizer struct {
	storeMap NonLockingReadMap.NonLockingReadMap[journalEntry, string]

	mu          sync.Mutex
	connections []*SyncConnection
}

// New returns an empty Synchronizer and registers a graceful-shutdown
// hook (github.com/dc0d/onexit, grounded on the teacher's
// storage/settings.go onexit.Register use) that emits Bye to every
// live connection.
func New() *Synchronizer {
	s := &Synchronizer{storeMap: NonLockingReadMap.New[journalEntry, string]()}
	onexit.Register(s.byeAll)
	return s
}

// Register makes j available to Hello requests for hash.
func (s *Synchronizer) Register(hash string, j *journal.Journal) {
	s.storeMap.Set(&journalEntry{hash: hash, j: j})
}

// Lookup resolves a store hash to its journal.
func (s *Synchronizer) Lookup(hash string) (*journal.Journal, bool) {
	e := s.storeMap.Get(hash)
	if e == nil {
		return nil, false
	}
	return e.j, true
}

// Connect attaches c to this Synchronizer so its Decode can resolve
// Hello/Update frames against the registered stores.
func (s *Synchronizer) Connect(c *SyncConnection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.sync = s
	s.connections = append(s.connections, c)
}

// Disconnect removes c from the Synchronizer and asks it to Bye out of
// everything it had linked.
func (s *Synchronizer) Disconnect(c *SyncConnection) error {
	s.mu.Lock()
	for i, cc := range s.connections {
		if cc == c {
			s.connections = append(s.connections[:i], s.connections[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	return c.Disconnect()
}

// ProcessAll fans Process() out across every live connection with
// golang.org/x/sync/errgroup, since distinct connections are
// independent protocol stacks (spec.md §5: the single-threaded
// contract is per-stack, not process-wide).
func (s *Synchronizer) ProcessAll(ctx context.Context) error {
	s.mu.Lock()
	conns := append([]*SyncConnection(nil), s.connections...)
	s.mu.Unlock()

	g, _ := errgroup.WithContext(ctx)
	for _, c := range conns {
		c := c
		g.Go(c.Process)
	}
	return g.Wait()
}

func (s *Synchronizer) byeAll() {
	s.mu.Lock()
	conns := append([]*SyncConnection(nil), s.connections...)
	s.mu.Unlock()
	for _, c := range conns {
		_ = c.Disconnect()
	}
}
