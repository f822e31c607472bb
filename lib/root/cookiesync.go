// Copyright (C) 2026 The Dirwatch Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package root

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dirwatch/dirwatch/lib/sync"
)

// CookieSync implements the "sync to now" protocol: materialize a uniquely
// named marker file inside the watched tree, then wait until the ordinary
// change-event pipeline reports it back. Once the marker is observed, every
// change that happened strictly before the sync call has been drained into
// the view.
//
// A sync doubles as a liveness probe: if the pipeline is wedged anywhere
// between the OS watcher and event intake, the marker is never observed and
// the call times out.
type CookieSync struct {
	dir    string
	prefix string
	serial atomic.Uint64

	mut     sync.Mutex
	pending map[string]chan error
}

func NewCookieSync(dir string) *CookieSync {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return &CookieSync{
		dir:     dir,
		prefix:  fmt.Sprintf(".dirwatch-cookie-%s-%d-", host, os.Getpid()),
		mut:     sync.NewMutex(),
		pending: make(map[string]chan error),
	}
}

// Sync blocks until a fresh cookie is observed by the event pipeline, the
// timeout elapses (ErrSyncTimeout), or ctx is cancelled. Concurrent calls
// are independent: each gets its own marker, never reused within the
// root's lifetime, and no marker resolves another caller's wait.
func (c *CookieSync) Sync(ctx context.Context, timeout time.Duration) error {
	name := fmt.Sprintf("%s%d", c.prefix, c.serial.Add(1))
	path := filepath.Join(c.dir, name)

	ch := make(chan error, 1)
	c.mut.Lock()
	c.pending[name] = ch
	c.mut.Unlock()

	defer func() {
		c.mut.Lock()
		delete(c.pending, name)
		c.mut.Unlock()
		// Best-effort cleanup of the marker artifact.
		_ = os.Remove(path)
	}()

	if err := os.WriteFile(path, nil, 0o666); err != nil {
		return fmt.Errorf("creating cookie %s: %w", path, err)
	}
	l.Debugln("Created cookie", path)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-ch:
		return err
	case <-timer.C:
		l.Debugf("Sync timed out after %v waiting for %s", timeout, name)
		return ErrSyncTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsCookie reports whether the given root-relative event name is one of our
// markers.
func (c *CookieSync) IsCookie(name string) bool {
	return strings.HasPrefix(filepath.Base(name), ".dirwatch-cookie-")
}

// Notify resolves the waiter registered for the given marker, if any.
// Called from event intake when a cookie file is observed.
func (c *CookieSync) Notify(name string) bool {
	base := filepath.Base(name)
	c.mut.Lock()
	ch, ok := c.pending[base]
	if ok {
		delete(c.pending, base)
	}
	c.mut.Unlock()
	if !ok {
		// Either a stale marker from a previous run or an already
		// timed-out waiter.
		return false
	}
	ch <- nil
	l.Debugln("Cookie observed:", base)
	return true
}

// AbortAll resolves every outstanding waiter with the given error. Used
// when the watch fails or the root is cancelled so no caller is left
// pending indefinitely.
func (c *CookieSync) AbortAll(err error) {
	c.mut.Lock()
	pending := c.pending
	c.pending = make(map[string]chan error)
	c.mut.Unlock()

	for name, ch := range pending {
		l.Debugln("Aborting cookie waiter:", name, err)
		ch <- err
	}
}

// Outstanding lists the markers currently awaited, for diagnostics.
func (c *CookieSync) Outstanding() []string {
	c.mut.Lock()
	defer c.mut.Unlock()
	names := make([]string, 0, len(c.pending))
	for name := range c.pending {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
