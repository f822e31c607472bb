// Copyright (C) 2026 The Dirwatch Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package root

import (
	"context"
	"strings"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/thejerf/suture/v4"

	"github.com/dirwatch/dirwatch/lib/config"
	"github.com/dirwatch/dirwatch/lib/events"
	"github.com/dirwatch/dirwatch/lib/sync"
)

// ViewFactory builds the view for a newly watched root.
type ViewFactory func(cfg config.RootConfiguration) View

// SourceFactory builds the change-event source for a newly watched root.
// May be nil when events are fed by other means (tests).
type SourceFactory func(path string) EventSource

// Registry is the process-scoped table of watched roots. It is an explicit
// object, created at startup and passed to whoever needs it; there is no
// ambient global. It is itself a suture service: roots watched through it
// run under its supervisor and stop with it.
type Registry struct {
	publisher *events.Logger
	newView   ViewFactory
	newSource SourceFactory

	sup    *suture.Supervisor
	roots  *xsync.MapOf[string, *Root]
	tokens *xsync.MapOf[string, suture.ServiceToken]
}

func NewRegistry(publisher *events.Logger, newView ViewFactory, newSource SourceFactory) *Registry {
	return &Registry{
		publisher: publisher,
		newView:   newView,
		newSource: newSource,
		sup:       suture.New("root.Registry", suture.Spec{PassThroughPanics: true}),
		roots:     xsync.NewMapOf[string, *Root](),
		tokens:    xsync.NewMapOf[string, suture.ServiceToken](),
	}
}

// Serve runs the supervisor owning every watched root's serve loop.
func (reg *Registry) Serve(ctx context.Context) error {
	return reg.sup.Serve(ctx)
}

// Watch establishes or attaches to a root for the given configuration. An
// existing root for the same path is returned as-is; otherwise a new one
// is built, registered and started under the supervisor.
func (reg *Registry) Watch(cfg config.RootConfiguration) (*Root, error) {
	key := reg.key(cfg.Path, cfg.CaseInsensitive)
	if r, ok := reg.roots.Load(key); ok {
		r.touch()
		return r, nil
	}

	var source EventSource
	if reg.newSource != nil {
		source = reg.newSource(cfg.Path)
	}
	r, err := NewRoot(cfg, reg.newView(cfg), reg.publisher, source)
	if err != nil {
		return nil, err
	}
	r.registry = reg

	// Two concurrent Watch calls for the same path race benignly here;
	// the loser's root never starts.
	if existing, loaded := reg.roots.LoadOrStore(key, r); loaded {
		existing.touch()
		return existing, nil
	}
	reg.tokens.Store(key, reg.sup.Add(r))
	metricWatchedRoots.Set(float64(reg.roots.Size()))
	reg.publisher.Log(events.RootAdded, map[string]interface{}{"root": r.path})
	l.Infof("Watching %s (%s)", r.path, r.fsType)
	return r, nil
}

// Get returns the root watching the given path, if any.
func (reg *Registry) Get(path string) (*Root, bool) {
	// The key function needs the case mode; try both forms.
	if r, ok := reg.roots.Load(reg.key(path, false)); ok {
		return r, true
	}
	r, ok := reg.roots.Load(reg.key(path, true))
	return r, ok
}

// Unwatch cancels and removes the root for the given path. Returns false
// if no such root is watched.
func (reg *Registry) Unwatch(path string) bool {
	r, ok := reg.Get(path)
	if !ok {
		return false
	}
	r.Cancel()
	return reg.remove(r)
}

// remove detaches a root. Called by Unwatch and by Root.removeFromWatched
// during teardown; idempotent.
func (reg *Registry) remove(r *Root) bool {
	key := reg.key(r.path, r.caseInsensitive)
	if _, ok := reg.roots.LoadAndDelete(key); !ok {
		return false
	}
	if token, ok := reg.tokens.LoadAndDelete(key); ok {
		// The serve loop may already have exited; Remove of a finished
		// service is a no-op.
		_ = reg.sup.Remove(token)
	}
	metricWatchedRoots.Set(float64(reg.roots.Size()))
	reg.publisher.Log(events.RootRemoved, map[string]interface{}{"root": r.path})
	return true
}

// Len returns the number of watched roots.
func (reg *Registry) Len() int {
	return reg.roots.Size()
}

// Status dumps the status of every watched root.
func (reg *Registry) Status() []RootStatus {
	res := make([]RootStatus, 0, reg.roots.Size())
	reg.roots.Range(func(_ string, r *Root) bool {
		res = append(res, r.Status())
		return true
	})
	return res
}

// CancelAll cancels every watched root, e.g. at process shutdown. Roots
// are stopped concurrently; CancelAll returns once every stop has been
// driven through.
func (reg *Registry) CancelAll() {
	wg := sync.NewWaitGroup()
	reg.roots.Range(func(_ string, r *Root) bool {
		wg.Add(1)
		go func(r *Root) {
			defer wg.Done()
			r.StopWatch()
		}(r)
		return true
	})
	wg.Wait()
}

func (*Registry) key(path string, caseInsensitive bool) string {
	if caseInsensitive {
		return strings.ToLower(path)
	}
	return path
}
