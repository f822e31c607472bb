// Copyright (C) 2026 The Dirwatch Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package root

import "time"

// StateSnapshot is the set of root facts that other threads may read
// without taking any root lock. It is immutable once published; a reader
// always observes a consistent combination of fields from a single
// publication.
type StateSnapshot struct {
	// DoneInitial is set once the initial crawl has completed. It reverts
	// to false while a recrawl is in flight.
	DoneInitial bool

	// Cancelled is set by Cancel. Once true, it is never set to false.
	Cancelled bool

	// LastCommand is the time of the most recent client operation against
	// this root, used by the idle reaper.
	LastCommand time.Time

	// FailureReason is non-empty once the watch has failed irrecoverably.
	FailureReason string
}

// snapshot returns the currently published state. The result must not be
// modified.
func (r *Root) snapshot() *StateSnapshot {
	return r.snap.Load()
}

// updateSnapshot publishes a new state derived from the current one. The
// mutation function sees a private copy; concurrent updates are serialized
// so no publication is lost.
func (r *Root) updateSnapshot(mutate func(*StateSnapshot)) *StateSnapshot {
	r.snapMut.Lock()
	defer r.snapMut.Unlock()
	next := *r.snap.Load()
	mutate(&next)
	r.snap.Store(&next)
	return &next
}
