// Copyright (C) 2026 The Dirwatch Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package root

import (
	"slices"

	"github.com/dirwatch/dirwatch/lib/sync"
)

// Disposition is the lifecycle stage of a client state assertion.
type Disposition int

const (
	PendingEnter Disposition = iota
	Asserted
	PendingLeave
	Done
)

func (d Disposition) String() string {
	switch d {
	case PendingEnter:
		return "PendingEnter"
	case Asserted:
		return "Asserted"
	case PendingLeave:
		return "PendingLeave"
	case Done:
		return "Done"
	default:
		return "Unknown"
	}
}

// ClientStateAssertion is one client's request to occupy a named external
// state, e.g. signalling that a source-control checkout is in progress.
type ClientStateAssertion struct {
	// root is a back-reference only; keeping the root alive is the
	// business of whoever manages the assertion's lifetime.
	root *Root
	name string

	// Guarded by the owning registry's lock.
	disposition Disposition

	// Deferred payload to broadcast when this assertion makes it to the
	// front of the queue. Guarded by the owning registry's lock.
	enterPayload map[string]interface{}
}

func (a *ClientStateAssertion) Name() string { return a.name }
func (a *ClientStateAssertion) Root() *Root { return a.root }

// ClientStateAssertions maps each state name to the ordered queue of
// assertions targeting it. At most one assertion per name is ever in
// Asserted disposition, and it is always the queue head. A name with an
// empty queue has no entry.
//
// All operations are serialized by one lock scoped to the registry.
// Promotion payloads are copied out under the lock and must be broadcast by
// the caller after it is released; publishing while holding the lock would
// nest it with the publisher's own.
type ClientStateAssertions struct {
	mut    sync.Mutex
	states map[string][]*ClientStateAssertion
}

func NewClientStateAssertions() *ClientStateAssertions {
	return &ClientStateAssertions{
		mut:    sync.NewMutex(),
		states: make(map[string][]*ClientStateAssertion),
	}
}

// QueueAssertion appends the assertion to the tail of its name's queue. It
// returns a *StateConflictError, mutating nothing, if the name already has
// an Asserted holder or another entry still in PendingEnter or
// PendingLeave.
func (s *ClientStateAssertions) QueueAssertion(a *ClientStateAssertion) error {
	s.mut.Lock()
	defer s.mut.Unlock()

	q := s.states[a.name]
	if len(q) > 0 && q[0].disposition == Asserted {
		return &StateConflictError{Name: a.name, Reason: "already asserted"}
	}
	for _, other := range q {
		switch other.disposition {
		case PendingEnter:
			return &StateConflictError{Name: a.name, Reason: "pending enter already outstanding"}
		case PendingLeave:
			return &StateConflictError{Name: a.name, Reason: "pending leave already outstanding"}
		}
	}

	s.states[a.name] = append(q, a)
	return nil
}

// IsFront returns true if the assertion occupies the head of its name's
// queue.
func (s *ClientStateAssertions) IsFront(a *ClientStateAssertion) bool {
	s.mut.Lock()
	defer s.mut.Unlock()
	q := s.states[a.name]
	return len(q) > 0 && q[0] == a
}

// IsStateAsserted returns true if the named queue is non-empty and its head
// holds the state.
func (s *ClientStateAssertions) IsStateAsserted(name string) bool {
	s.mut.Lock()
	defer s.mut.Unlock()
	q := s.states[name]
	return len(q) > 0 && q[0].disposition == Asserted
}

// Assert promotes the assertion from PendingEnter to Asserted. It returns
// false if the assertion is not at the front of its queue or is past
// PendingEnter already; promotion of a queued-behind entry would violate
// the head-holds-the-state invariant.
func (s *ClientStateAssertions) Assert(a *ClientStateAssertion) bool {
	s.mut.Lock()
	defer s.mut.Unlock()
	q := s.states[a.name]
	if len(q) == 0 || q[0] != a || a.disposition != PendingEnter {
		return false
	}
	a.disposition = Asserted
	return true
}

// MarkLeaving moves the assertion from Asserted to PendingLeave, the step
// preceding removal on a clean exit. Returns false if the assertion does
// not currently hold the state.
func (s *ClientStateAssertions) MarkLeaving(a *ClientStateAssertion) bool {
	s.mut.Lock()
	defer s.mut.Unlock()
	if a.disposition != Asserted {
		return false
	}
	a.disposition = PendingLeave
	return true
}

// promotion is the copied-out broadcast data for a successor that took
// effect when its predecessor was removed.
type promotion struct {
	name    string
	payload map[string]interface{}
}

// RemoveAssertion removes the assertion from its queue wherever it sits,
// marking it Done. If the queue becomes empty the name's entry is deleted.
// If the new head's disposition is already Asserted, its deferred payload
// is returned for the caller to broadcast exactly once, outside this
// registry's lock.
func (s *ClientStateAssertions) RemoveAssertion(a *ClientStateAssertion) (bool, *promotion) {
	s.mut.Lock()
	defer s.mut.Unlock()

	q := s.states[a.name]
	i := slices.Index(q, a)
	if i < 0 {
		return false, nil
	}

	a.disposition = Done
	q = slices.Delete(q, i, i+1)
	if len(q) == 0 {
		delete(s.states, a.name)
		return true, nil
	}
	s.states[a.name] = q

	if i == 0 && q[0].disposition == Asserted {
		// The new head already holds the state; downstream waiters learn
		// of it through its deferred payload.
		payload := make(map[string]interface{}, len(q[0].enterPayload))
		for k, v := range q[0].enterPayload {
			payload[k] = v
		}
		return true, &promotion{name: a.name, payload: payload}
	}
	return true, nil
}

// Len returns the number of state names with a non-empty queue.
func (s *ClientStateAssertions) Len() int {
	s.mut.Lock()
	defer s.mut.Unlock()
	return len(s.states)
}

// AssertionState describes one queued assertion in a DebugStates dump.
type AssertionState struct {
	Disposition string `json:"disposition"`
}

// DebugStates dumps the full per-name queue contents and dispositions.
// Read-only; for diagnostics and integration tests.
func (s *ClientStateAssertions) DebugStates() map[string][]AssertionState {
	s.mut.Lock()
	defer s.mut.Unlock()

	res := make(map[string][]AssertionState, len(s.states))
	for name, q := range s.states {
		states := make([]AssertionState, len(q))
		for i, a := range q {
			states[i] = AssertionState{Disposition: a.disposition.String()}
		}
		res[name] = states
	}
	return res
}
