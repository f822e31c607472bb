// Copyright (C) 2026 The Dirwatch Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package root

import (
	"fmt"
	"time"

	"github.com/dirwatch/dirwatch/lib/sync"
)

// RecrawlInfo is a point-in-time copy of the recrawl bookkeeping, for
// diagnostics.
type RecrawlInfo struct {
	// Count is how many times a recrawl has been scheduled for this root.
	// Monotonically non-decreasing.
	Count uint64
	// ShouldRecrawl is set between ScheduleRecrawl and the recrawl pass
	// actually starting. A schedule arriving while a pass is in flight
	// sets it again, so that pass is followed by another.
	ShouldRecrawl bool
	// Warning is the human-readable reason for the most recent recrawl.
	Warning     string
	CrawlStart  time.Time
	CrawlFinish time.Time
}

// recrawlTracker records why and how often the root has been recrawled.
// Scheduling may happen from any thread; Triggered and Completed are called
// by the serve loop only.
type recrawlTracker struct {
	mut  sync.Mutex
	info RecrawlInfo
}

func newRecrawlTracker() *recrawlTracker {
	return &recrawlTracker{mut: sync.NewMutex()}
}

// Schedule requests a recrawl for the given reason. It returns false, and
// changes nothing further, if a recrawl is already pending.
func (t *recrawlTracker) Schedule(reason string) bool {
	t.mut.Lock()
	defer t.mut.Unlock()
	if t.info.ShouldRecrawl {
		return false
	}
	t.info.ShouldRecrawl = true
	t.info.Count++
	t.info.Warning = fmt.Sprintf("Recrawled this root %d times, most recently because: %s", t.info.Count, reason)
	return true
}

// Triggered marks the start of the actual recrawl pass and clears the prior
// warning context. Clearing ShouldRecrawl here, rather than on completion,
// lets a schedule arriving mid-pass register a fresh recrawl.
func (t *recrawlTracker) Triggered(reason string) {
	t.mut.Lock()
	defer t.mut.Unlock()
	t.info.CrawlStart = time.Now()
	t.info.ShouldRecrawl = false
	t.info.Warning = fmt.Sprintf("Recrawling because: %s", reason)
}

// Completed marks the end of a crawl pass.
func (t *recrawlTracker) Completed() {
	t.mut.Lock()
	defer t.mut.Unlock()
	t.info.CrawlFinish = time.Now()
}

// Info returns a copy of the current bookkeeping.
func (t *recrawlTracker) Info() RecrawlInfo {
	t.mut.Lock()
	defer t.mut.Unlock()
	return t.info
}
