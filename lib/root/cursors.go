// Copyright (C) 2026 The Dirwatch Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package root

import (
	"github.com/dirwatch/dirwatch/lib/sync"
)

// cursorMap tracks, per named cursor, the last tick value a client observed.
// Clients use cursors for incremental queries: "everything since my named
// cursor" without carrying the tick themselves.
type cursorMap struct {
	mut     sync.Mutex
	cursors map[string]uint64
}

func newCursorMap() *cursorMap {
	return &cursorMap{
		mut:     sync.NewMutex(),
		cursors: make(map[string]uint64),
	}
}

// Advance records tick as the cursor's new position and returns the
// previous one. A cursor never seen before starts at zero.
func (c *cursorMap) Advance(name string, tick uint64) uint64 {
	c.mut.Lock()
	defer c.mut.Unlock()
	prev := c.cursors[name]
	c.cursors[name] = tick
	return prev
}

// Delete forgets the named cursor, reporting whether it existed.
func (c *cursorMap) Delete(name string) bool {
	c.mut.Lock()
	defer c.mut.Unlock()
	_, ok := c.cursors[name]
	delete(c.cursors, name)
	return ok
}

// Dump copies the cursor table for diagnostics.
func (c *cursorMap) Dump() map[string]uint64 {
	c.mut.Lock()
	defer c.mut.Unlock()
	res := make(map[string]uint64, len(c.cursors))
	for name, tick := range c.cursors {
		res[name] = tick
	}
	return res
}
