// Copyright (C) 2026 The Dirwatch Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package root

import (
	"time"
)

// AgeOutPolicy decides when tracked deleted-entry history should be pruned
// from the view. With the defaults, entries deleted roughly 12-36 hours ago
// are pruned, at most once a day.
type AgeOutPolicy struct {
	// Interval is the minimum pause between passes. Zero or negative
	// disables automatic age-out entirely.
	Interval time.Duration
	// Age is the minimum age of deleted entries a pass prunes.
	Age time.Duration
}

// Due reports whether a pass should run now, given the time of the last
// pass. A zero lastPass means no pass has run yet.
func (p AgeOutPolicy) Due(now, lastPass time.Time) bool {
	if p.Interval <= 0 {
		return false
	}
	return now.Sub(lastPass) >= p.Interval
}

// ConsiderAgeOut runs an age-out pass when one is due. Called periodically
// by the serve loop only.
func (r *Root) ConsiderAgeOut() {
	if !r.ageOut.Due(time.Now(), r.lastAgeOut) {
		return
	}
	r.PerformAgeOut(r.ageOut.Age)
}

// PerformAgeOut prunes deleted entries older than minAge from the view.
// Failures are logged and skipped; the next cycle retries normally. Called
// by the serve loop only.
func (r *Root) PerformAgeOut(minAge time.Duration) {
	r.lastAgeOut = time.Now()

	sample := NewPerfSample("ageout")
	defer sample.Finish()
	r.AddPerfSampleMetadata(sample)

	pruned, err := r.view.AgeOut(minAge)
	if err != nil {
		l.Infof("Age-out of %s failed (skipped until next cycle): %v", r.path, err)
		return
	}
	sample.Add("pruned", pruned)
	metricAgeOutPruned.WithLabelValues(r.path).Add(float64(pruned))
	l.Debugf("Aged out %d deleted entries older than %v from %s", pruned, minAge, r.path)
}
