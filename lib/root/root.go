// Copyright (C) 2026 The Dirwatch Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package root implements the coordination core for one watched directory
// tree: the crawl/recrawl lifecycle and its garbage collection, the
// cookie-based sync-to-now protocol, and the named client-state-assertion
// queues. Many goroutines touch one root concurrently; shared state is
// partitioned into small independently locked regions, and the
// cross-thread-visible facts are published as one immutable snapshot.
package root

import (
	"context"
	"fmt"
	stdsync "sync"
	"sync/atomic"
	"time"

	"github.com/dirwatch/dirwatch/lib/config"
	"github.com/dirwatch/dirwatch/lib/events"
	"github.com/dirwatch/dirwatch/lib/fs"
	"github.com/dirwatch/dirwatch/lib/sync"
)

// EventSource sets up the change-event pipeline below a root and returns
// the channels events and fatal errors are delivered on.
type EventSource func(ctx context.Context) (<-chan fs.Event, <-chan error, error)

// Root coordinates all activity for one watched directory tree. Identity
// (path, filesystem type, case sensitivity) is fixed at construction; a
// root lives until it is cancelled and its serve loop has exited.
//
// Locking discipline: each guarded region (recrawl record, assertion
// registry, query set, cursors, triggers, cookie table) has its own lock
// and none may be held while calling into another component that takes its
// own; broadcast payloads are copied out before publishing. No ordering is
// defined across two roots' locks.
type Root struct {
	cfg config.RootConfiguration

	// Immutable identity.
	path            string
	fsType          string
	caseInsensitive bool

	view      View
	publisher *events.Logger
	source    EventSource
	registry  *Registry // nil unless owned by a registry

	cookies        *CookieSync
	recrawl        *recrawlTracker
	assertedStates *ClientStateAssertions
	queries        *queryRegistry
	cursors        *cursorMap
	triggers       *triggerTable
	settle         *settleTracker
	ageOut         AgeOutPolicy

	snapMut sync.Mutex
	snap    atomic.Pointer[StateSnapshot]

	// tick advances once per observed change; queries and cursors hang
	// incremental semantics off it.
	tick atomic.Uint64

	recrawlRequest chan string
	cancelledC     chan struct{}
	stopped        chan struct{}
	stopOnce       stdsync.Once

	// Serve-loop-only bookkeeping.
	lastAgeOut time.Time
}

// NewRoot validates the path, probes the filesystem type and assembles a
// root around the given view. The root does nothing until its Serve loop
// runs (typically under a supervisor via Registry.Watch).
func NewRoot(cfg config.RootConfiguration, view View, publisher *events.Logger, source EventSource) (*Root, error) {
	path, err := fs.ValidateRoot(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("watch %q: %w", cfg.Path, err)
	}
	fsType := cfg.FilesystemType
	if fsType == "" {
		fsType = fs.TypeName(path)
	}

	r := &Root{
		cfg:             cfg,
		path:            path,
		fsType:          fsType,
		caseInsensitive: cfg.CaseInsensitive,

		view:      view,
		publisher: publisher,
		source:    source,

		cookies:        NewCookieSync(path),
		recrawl:        newRecrawlTracker(),
		assertedStates: NewClientStateAssertions(),
		queries:        newQueryRegistry(),
		cursors:        newCursorMap(),
		triggers:       newTriggerTable(),
		settle:         newSettleTracker(),
		ageOut: AgeOutPolicy{
			Interval: cfg.GCInterval(),
			Age:      cfg.GCAge(),
		},

		snapMut:        sync.NewMutex(),
		recrawlRequest: make(chan string, 1),
		cancelledC:     make(chan struct{}),
		stopped:        make(chan struct{}),
	}
	r.snap.Store(&StateSnapshot{LastCommand: time.Now()})
	return r, nil
}

func (r *Root) Path() string          { return r.path }
func (r *Root) FSType() string        { return r.fsType }
func (r *Root) CaseInsensitive() bool { return r.caseInsensitive }
func (r *Root) Config() config.RootConfiguration {
	return r.cfg.Copy()
}

// Publisher exposes the broadcast stream carrying this root's unilateral
// events.
func (r *Root) Publisher() *events.Logger { return r.publisher }

// Cancelled reports whether Cancel has been called.
func (r *Root) Cancelled() bool {
	return r.snapshot().Cancelled
}

// DoneInitial reports whether the initial crawl has completed.
func (r *Root) DoneInitial() bool {
	return r.snapshot().DoneInitial
}

// LastCommand returns the time of the most recent client operation.
func (r *Root) LastCommand() time.Time {
	return r.snapshot().LastCommand
}

// touch records client activity, pushing out the idle reaper.
func (r *Root) touch() {
	r.updateSnapshot(func(s *StateSnapshot) {
		s.LastCommand = time.Now()
	})
}

// Cancel transitions the root to cancelled exactly once and returns
// whether this call performed the transition. Safe to call concurrently
// from any number of goroutines; exactly one observes true. All blocked
// sync and settle waiters are resolved with ErrRootCancelled, and the
// serve loop is signalled to exit.
func (r *Root) Cancel() bool {
	r.snapMut.Lock()
	cur := r.snap.Load()
	if cur.Cancelled {
		r.snapMut.Unlock()
		return false
	}
	next := *cur
	next.Cancelled = true
	r.snap.Store(&next)
	close(r.cancelledC)
	r.snapMut.Unlock()

	l.Infof("Cancelling watch on %s", r.path)
	r.cookies.AbortAll(ErrRootCancelled)
	r.settle.abortAll(ErrRootCancelled)
	r.publisher.Log(events.RootCancelled, map[string]interface{}{"root": r.path})
	return true
}

// fail records an irrecoverable watch failure, drives the root toward
// cancellation and detaches it from its registry. Every caller blocked on
// a sync or settle wait is resolved with the failure; none is left
// pending.
func (r *Root) fail(err error) {
	werr := fmt.Errorf("%w: %v", ErrWatchFailed, err)
	r.updateSnapshot(func(s *StateSnapshot) {
		if s.FailureReason == "" {
			s.FailureReason = err.Error()
		}
	})
	l.Warnf("Watch on %s failed: %v", r.path, err)
	r.publisher.Log(events.WatchFailed, map[string]interface{}{
		"root":   r.path,
		"reason": err.Error(),
	})
	r.cookies.AbortAll(werr)
	r.settle.abortAll(werr)
	r.Cancel()
	r.removeFromWatched()
}

// ScheduleRecrawl requests a full recrawl of the root, e.g. after event
// overflow. Idempotent while a recrawl is already pending; the crawl
// itself happens on the serve loop. Not an error: the reason is tracked
// state surfaced for diagnostics.
func (r *Root) ScheduleRecrawl(reason string) {
	if !r.recrawl.Schedule(reason) {
		return
	}
	l.Infof("Scheduling recrawl of %s: %s", r.path, reason)
	r.publisher.Log(events.RecrawlScheduled, map[string]interface{}{
		"root":   r.path,
		"reason": reason,
	})
	select {
	case r.recrawlRequest <- reason:
	default:
		// The serve loop is busy; the 1-buffered channel already carries a
		// pending request and the shouldRecrawl flag keeps the reason.
	}
}

// RecrawlInfo returns a copy of the recrawl bookkeeping.
func (r *Root) RecrawlInfo() RecrawlInfo {
	return r.recrawl.Info()
}

// ConsiderReap reports whether the root should stop watching due to
// inactivity. Evaluated by the serve loop only; never invoked concurrently
// with itself.
func (r *Root) ConsiderReap() bool {
	idleAge := r.cfg.IdleReapAge()
	if idleAge == 0 {
		return false
	}
	return time.Since(r.LastCommand()) >= idleAge
}

// WaitForSettle returns a channel resolved with nil once no changes have
// been observed for at least period, or with an error if the root fails or
// is cancelled first.
func (r *Root) WaitForSettle(period time.Duration) <-chan error {
	return r.settle.wait(period)
}

// SyncToNow blocks until every filesystem change that happened strictly
// before this call has been drained through the event pipeline into the
// view, or until the timeout elapses (ErrSyncTimeout, recoverable).
func (r *Root) SyncToNow(ctx context.Context, timeout time.Duration) error {
	r.touch()
	if r.Cancelled() {
		return ErrRootCancelled
	}

	err := r.cookies.Sync(ctx, timeout)
	switch {
	case err == nil:
		metricCookieSyncs.WithLabelValues(r.path, "ok").Inc()
	case err == ErrSyncTimeout:
		metricCookieSyncs.WithLabelValues(r.path, "timeout").Inc()
	default:
		metricCookieSyncs.WithLabelValues(r.path, "error").Inc()
	}
	return err
}

// QueryOptions modify one Query call.
type QueryOptions struct {
	// Sync runs SyncToNow with the given timeout before evaluation, so
	// the result reflects everything that happened before the call.
	Sync        bool
	SyncTimeout time.Duration
	// SinceCursor names a cursor to evaluate incrementally against and
	// advance.
	SinceCursor string
}

// Query evaluates expr against the view, registering the execution for
// diagnostics for its duration.
func (r *Root) Query(ctx context.Context, expr string, opts QueryOptions) (*QueryResult, error) {
	r.touch()
	if r.Cancelled() {
		return nil, ErrRootCancelled
	}

	qc := &QueryContext{
		Expression:  expr,
		SinceCursor: opts.SinceCursor,
		Started:     time.Now(),
	}
	r.queries.Enter(qc)
	defer r.queries.Leave(qc)

	if opts.Sync {
		timeout := opts.SyncTimeout
		if timeout == 0 {
			timeout = r.cfg.SyncTimeout()
		}
		if err := r.SyncToNow(ctx, timeout); err != nil {
			return nil, err
		}
		qc.Synced = true
	}
	if opts.SinceCursor != "" {
		qc.SinceTick = r.cursors.Advance(opts.SinceCursor, r.tick.Load())
	}

	metricQueries.WithLabelValues(r.path).Inc()
	res, err := r.view.EvaluateQuery(ctx, qc)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// EnterState queues an assertion of the named state. When the assertion
// reaches the front of its queue immediately, it is promoted to Asserted
// and the payload is broadcast; otherwise the payload is deferred until
// promotion. A conflicting request returns a *StateConflictError.
func (r *Root) EnterState(name string, payload map[string]interface{}) (*ClientStateAssertion, error) {
	r.touch()
	if r.Cancelled() {
		return nil, ErrRootCancelled
	}

	a := &ClientStateAssertion{
		root:         r,
		name:         name,
		disposition:  PendingEnter,
		enterPayload: r.enterPayload(name, payload),
	}
	if err := r.assertedStates.QueueAssertion(a); err != nil {
		return nil, err
	}
	metricAssertedStates.WithLabelValues(r.path).Set(float64(r.assertedStates.Len()))

	if r.assertedStates.Assert(a) {
		// Copy made at construction; safe to publish without the registry
		// lock.
		r.publisher.Log(events.StateEntered, a.enterPayload)
	}
	return a, nil
}

// LeaveState releases the given assertion: the current holder exits via
// PendingLeave, a still-pending request is withdrawn. If the removal
// uncovers a successor that already holds the state, its deferred payload
// is broadcast exactly once.
func (r *Root) LeaveState(a *ClientStateAssertion) error {
	r.touch()

	r.assertedStates.MarkLeaving(a)
	removed, promoted := r.assertedStates.RemoveAssertion(a)
	if !removed {
		return &StateConflictError{Name: a.name, Reason: "not queued"}
	}
	metricAssertedStates.WithLabelValues(r.path).Set(float64(r.assertedStates.Len()))

	r.publisher.Log(events.StateLeft, map[string]interface{}{
		"root":       r.path,
		"state-name": a.name,
	})
	if promoted != nil {
		r.publisher.Log(events.StateEntered, promoted.payload)
	}
	return nil
}

// AssertedStates exposes the assertion registry, e.g. for DebugStates.
func (r *Root) AssertedStates() *ClientStateAssertions {
	return r.assertedStates
}

func (r *Root) enterPayload(name string, payload map[string]interface{}) map[string]interface{} {
	res := map[string]interface{}{
		"root":       r.path,
		"state-name": name,
		"clock":      r.tick.Load(),
	}
	if payload != nil {
		res["payload"] = payload
	}
	return res
}

// RegisterTrigger adds or replaces a named trigger.
func (r *Root) RegisterTrigger(name, expression string, command []string) error {
	r.touch()
	return r.triggers.Register(name, expression, command)
}

// UnregisterTrigger removes a named trigger, reporting whether it existed.
func (r *Root) UnregisterTrigger(name string) bool {
	r.touch()
	return r.triggers.Unregister(name)
}

// TriggerList returns the registered triggers sorted by name.
func (r *Root) TriggerList() []*TriggerCommand {
	return r.triggers.List()
}

// AdvanceCursor records the current tick under the named cursor and
// returns the previous position.
func (r *Root) AdvanceCursor(name string) uint64 {
	r.touch()
	return r.cursors.Advance(name, r.tick.Load())
}

// DeleteCursor forgets the named cursor, reporting whether it existed.
func (r *Root) DeleteCursor(name string) bool {
	r.touch()
	return r.cursors.Delete(name)
}

// StopWatch cancels the root (if not already cancelled), stops its serve
// activity and detaches it from its registry. Returns whether this call
// performed the cancellation. Safe to call after Cancel has already fired.
func (r *Root) StopWatch() bool {
	cancelled := r.Cancel()
	r.stopThreads()
	r.removeFromWatched()
	return cancelled
}

// stopThreads resolves anything still blocked on this root. The serve loop
// itself exits in response to Cancel's signal; it is not force-joined
// here.
func (r *Root) stopThreads() {
	r.cookies.AbortAll(ErrRootCancelled)
	r.settle.abortAll(ErrRootCancelled)
}

// removeFromWatched detaches the root from its registry, if any. Returns
// whether it was still attached.
func (r *Root) removeFromWatched() bool {
	if r.registry == nil {
		return false
	}
	return r.registry.remove(r)
}

// Stopped is closed when the serve loop has exited; teardown that must
// wait for full quiescence blocks on it.
func (r *Root) Stopped() <-chan struct{} {
	return r.stopped
}

func (r *Root) String() string {
	return fmt.Sprintf("root/%s@%p", r.path, r)
}

// RootStatus is a point-in-time diagnostic dump of one root.
type RootStatus struct {
	Path            string                      `json:"path"`
	FSType          string                      `json:"fsType"`
	CaseInsensitive bool                        `json:"caseInsensitive"`
	DoneInitial     bool                        `json:"doneInitial"`
	Cancelled       bool                        `json:"cancelled"`
	FailureReason   string                      `json:"failureReason,omitempty"`
	LastCommand     time.Time                   `json:"lastCommand"`
	Recrawl         RecrawlInfo                 `json:"recrawl"`
	Tick            uint64                      `json:"tick"`
	InFlightQueries []string                    `json:"inFlightQueries,omitempty"`
	OutstandingSync []string                    `json:"outstandingSync,omitempty"`
	States          map[string][]AssertionState `json:"states,omitempty"`
	Cursors         map[string]uint64           `json:"cursors,omitempty"`
	Triggers        []*TriggerCommand           `json:"triggers,omitempty"`
}

// Status assembles the diagnostic view of the root.
func (r *Root) Status() RootStatus {
	snap := r.snapshot()
	var inFlight []string
	r.queries.ForEach(func(qc *QueryContext) {
		inFlight = append(inFlight, qc.Expression)
	})
	return RootStatus{
		Path:            r.path,
		FSType:          r.fsType,
		CaseInsensitive: r.caseInsensitive,
		DoneInitial:     snap.DoneInitial,
		Cancelled:       snap.Cancelled,
		FailureReason:   snap.FailureReason,
		LastCommand:     snap.LastCommand,
		Recrawl:         r.recrawl.Info(),
		Tick:            r.tick.Load(),
		InFlightQueries: inFlight,
		OutstandingSync: r.cookies.Outstanding(),
		States:          r.assertedStates.DebugStates(),
		Cursors:         r.cursors.Dump(),
		Triggers:        r.triggers.List(),
	}
}
