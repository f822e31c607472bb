// Copyright (C) 2026 The Dirwatch Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package root

import (
	"time"

	"github.com/dirwatch/dirwatch/lib/sync"
)

// QueryContext carries one query execution. Expression, SinceCursor and
// Started are immutable after construction and are the only fields other
// threads may read, and then only from inside queryRegistry.ForEach.
// Everything else belongs to the executing goroutine.
type QueryContext struct {
	Expression  string
	SinceCursor string
	Started     time.Time

	// Owned by the executing goroutine; not for cross-thread reads.
	SinceTick uint64
	Synced    bool
}

// queryRegistry tracks in-flight query executions against one root, for
// diagnostics. Registration is paired with deregistration via defer so a
// failing query never leaks its entry.
type queryRegistry struct {
	mut     sync.Mutex
	queries map[*QueryContext]struct{}
}

func newQueryRegistry() *queryRegistry {
	return &queryRegistry{
		mut:     sync.NewMutex(),
		queries: make(map[*QueryContext]struct{}),
	}
}

func (reg *queryRegistry) Enter(qc *QueryContext) {
	reg.mut.Lock()
	reg.queries[qc] = struct{}{}
	reg.mut.Unlock()
}

func (reg *queryRegistry) Leave(qc *QueryContext) {
	reg.mut.Lock()
	delete(reg.queries, qc)
	reg.mut.Unlock()
}

// ForEach visits every registered context under the registry lock. The
// callback may read the immutable fields only and must not call back into
// the registry.
func (reg *queryRegistry) ForEach(fn func(*QueryContext)) {
	reg.mut.Lock()
	defer reg.mut.Unlock()
	for qc := range reg.queries {
		fn(qc)
	}
}

func (reg *queryRegistry) Len() int {
	reg.mut.Lock()
	defer reg.mut.Unlock()
	return len(reg.queries)
}
