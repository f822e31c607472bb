// Copyright (C) 2026 The Dirwatch Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package root

import (
	"context"
	"path/filepath"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/dirwatch/dirwatch/lib/events"
	"github.com/dirwatch/dirwatch/lib/fs"
)

// reapCheckInterval is how often the serve loop re-evaluates the idle
// reaper. Coarse on purpose; reap ages are minutes to hours.
const reapCheckInterval = time.Minute

// Serve is the crawl-driving loop: the one goroutine per root that owns
// crawl/recrawl/reap bookkeeping and advances the age-out clock. It
// implements suture.Service and exits on context cancellation, root
// cancellation, watch failure or idle reap. Cancellation and failure are
// terminal: the supervisor must not restart a root that exited for either
// reason, hence suture.ErrDoNotRestart on those paths.
func (r *Root) Serve(ctx context.Context) error {
	if r.Cancelled() {
		return suture.ErrDoNotRestart
	}
	l.Debugln(r, "starting")
	defer l.Debugln(r, "exiting")
	defer r.stopOnce.Do(func() { close(r.stopped) })

	var eventChan <-chan fs.Event
	var watchErrChan <-chan error
	if r.source != nil {
		var err error
		eventChan, watchErrChan, err = r.source(ctx)
		if err != nil {
			r.fail(err)
			return suture.ErrDoNotRestart
		}
	}

	// Initial crawl establishes the view's baseline.
	r.recrawl.Triggered("initial crawl")
	r.publisher.Log(events.CrawlStarted, map[string]interface{}{"root": r.path})
	if err := r.view.Crawl(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.fail(err)
		return suture.ErrDoNotRestart
	}
	r.crawlCompleted("initial")

	ageOutTimer := time.NewTimer(r.ageOutDelay())
	defer ageOutTimer.Stop()
	reapTimer := time.NewTimer(reapCheckInterval)
	defer reapTimer.Stop()

	// Changed paths accumulated since the last settle, for trigger
	// evaluation.
	var pending []string
	settleTimer := time.NewTimer(0)
	if !settleTimer.Stop() {
		<-settleTimer.C
	}
	defer settleTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-r.cancelledC:
			return suture.ErrDoNotRestart

		case reason := <-r.recrawlRequest:
			r.recrawlTriggered(ctx, reason)
			if r.Cancelled() {
				return suture.ErrDoNotRestart
			}

		case ev := <-eventChan:
			if ev.Name == "." {
				// The backend overflowed and changes were lost.
				r.ScheduleRecrawl("watcher event overflow")
				continue
			}
			if r.observe(ev) {
				pending = append(pending, ev.Name)
				settleTimer.Reset(r.cfg.SettleDelay())
			}

		case <-settleTimer.C:
			r.settled(pending)
			pending = nil

		case err := <-watchErrChan:
			r.fail(err)
			return suture.ErrDoNotRestart

		case <-ageOutTimer.C:
			r.ConsiderAgeOut()
			ageOutTimer.Reset(r.ageOutDelay())

		case <-reapTimer.C:
			if r.ConsiderReap() {
				l.Infof("Reaping %s: no client commands for %v", r.path, r.cfg.IdleReapAge())
				r.StopWatch()
				return suture.ErrDoNotRestart
			}
			reapTimer.Reset(reapCheckInterval)
		}
	}
}

// observe routes one change event: cookies resolve their waiters and stay
// out of the view, the settle clock and the trigger batch; everything else
// advances the tick and feeds the view. Reports whether the event was a
// real change.
func (r *Root) observe(ev fs.Event) bool {
	if r.cookies.IsCookie(filepath.Base(ev.Name)) {
		r.cookies.Notify(ev.Name)
		return false
	}
	r.tick.Add(1)
	r.settle.note()
	r.view.Observe([]fs.Event{ev})
	return true
}

// recrawlTriggered drives a scheduled recrawl on the serve loop. The
// done-initial flag drops for the duration so status readers see the root
// as crawling.
func (r *Root) recrawlTriggered(ctx context.Context, reason string) {
	r.recrawl.Triggered(reason)
	r.updateSnapshot(func(s *StateSnapshot) {
		s.DoneInitial = false
	})
	r.publisher.Log(events.CrawlStarted, map[string]interface{}{
		"root":   r.path,
		"reason": reason,
	})
	l.Infof("Recrawling %s: %s", r.path, reason)

	if err := r.view.Recrawl(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		r.fail(err)
		return
	}
	r.crawlCompleted("recrawl")
}

func (r *Root) crawlCompleted(kind string) {
	r.recrawl.Completed()
	r.updateSnapshot(func(s *StateSnapshot) {
		s.DoneInitial = true
	})
	metricCrawls.WithLabelValues(r.path, kind).Inc()
	r.publisher.Log(events.CrawlFinished, map[string]interface{}{
		"root": r.path,
		"kind": kind,
	})
}

// settled fires once the root has been quiet for the settle delay after a
// burst of changes: one broadcast and one trigger evaluation per burst, no
// matter how many events it contained.
func (r *Root) settled(changed []string) {
	if len(changed) == 0 {
		return
	}
	r.publisher.Log(events.Settled, map[string]interface{}{
		"root":    r.path,
		"changes": len(changed),
	})

	for name, hits := range r.triggers.matching(changed) {
		t, ok := r.triggers.Get(name)
		if !ok {
			continue
		}
		r.publisher.Log(events.TriggerFired, map[string]interface{}{
			"root":    r.path,
			"trigger": name,
			"command": t.Command,
			"paths":   hits,
		})
	}
}

// ageOutDelay is how long the serve loop sleeps between age-out
// considerations. With GC disabled the timer still ticks, cheaply, and
// ConsiderAgeOut declines every time.
func (r *Root) ageOutDelay() time.Duration {
	if interval := r.ageOut.Interval; interval > 0 {
		return interval
	}
	return time.Hour
}
