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

// settleTracker resolves "no changes for at least this long" waits. The
// serve loop notes every observed change; each waiter polls the last-change
// time at the granularity of its own period, so a burst of changes pushes
// resolution out rather than producing one resolution per change.
type settleTracker struct {
	mut        sync.Mutex
	lastChange time.Time
	abortErr   error
	abortC     chan struct{}
}

func newSettleTracker() *settleTracker {
	return &settleTracker{
		mut:    sync.NewMutex(),
		abortC: make(chan struct{}),
	}
}

// note records that a change was observed now.
func (t *settleTracker) note() {
	t.mut.Lock()
	t.lastChange = time.Now()
	t.mut.Unlock()
}

// abortAll resolves every current and future waiter with err. Idempotent;
// the first error wins.
func (t *settleTracker) abortAll(err error) {
	t.mut.Lock()
	defer t.mut.Unlock()
	if t.abortErr != nil {
		return
	}
	t.abortErr = err
	close(t.abortC)
}

// wait returns a channel that receives nil once no changes have been
// observed for at least period, or the abort error if the root fails or is
// cancelled first. The channel is buffered; the result is never lost if
// the caller is slow to receive.
func (t *settleTracker) wait(period time.Duration) <-chan error {
	ch := make(chan error, 1)
	go func() {
		for {
			t.mut.Lock()
			last := t.lastChange
			err := t.abortErr
			t.mut.Unlock()

			if err != nil {
				ch <- err
				return
			}
			// A zero lastChange means nothing was ever observed, which is
			// as settled as it gets: time.Since yields a huge idle.
			idle := time.Since(last)
			if idle >= period {
				ch <- nil
				return
			}

			timer := time.NewTimer(period - idle)
			select {
			case <-timer.C:
			case <-t.abortC:
				timer.Stop()
			}
		}
	}()
	return ch
}
