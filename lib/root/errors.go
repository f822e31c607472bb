// Copyright (C) 2026 The Dirwatch Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package root

import (
	"errors"
	"fmt"
)

var (
	// ErrRootCancelled is the resolution of any blocked operation when the
	// root is cancelled underneath it.
	ErrRootCancelled = errors.New("root cancelled")

	// ErrSyncTimeout is returned by SyncToNow when the cookie was not
	// observed within the caller's timeout. It is recoverable; the caller
	// may retry.
	ErrSyncTimeout = errors.New("sync_timeout")

	// ErrWatchFailed wraps the underlying cause when the watch pipeline
	// breaks down. Waiters blocked at that point are resolved with it.
	ErrWatchFailed = errors.New("watch failed")
)

// StateConflictError reports a protocol-level conflict on QueueAssertion:
// the named state already has a holder or an in-flight entry or exit. No
// registry state is mutated when it is returned.
type StateConflictError struct {
	Name   string
	Reason string
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("state %q: %s", e.Name, e.Reason)
}
