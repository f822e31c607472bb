// Copyright (C) 2026 The Dirwatch Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package root

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// PerfSample collects structured metadata about one operation and logs it
// with the elapsed time when finished. The sink is the debug log; samples
// cost close to nothing when the facility is quiet.
type PerfSample struct {
	name  string
	start time.Time
	meta  map[string]interface{}
}

func NewPerfSample(name string) *PerfSample {
	return &PerfSample{
		name:  name,
		start: time.Now(),
		meta:  make(map[string]interface{}),
	}
}

// Add annotates the sample. Later values for the same key win.
func (s *PerfSample) Add(key string, value interface{}) {
	s.meta[key] = value
}

// Finish logs the sample.
func (s *PerfSample) Finish() {
	keys := make([]string, 0, len(s.meta))
	for k := range s.meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, s.meta[k])
	}
	l.Debugf("perf: %s took %v%s", s.name, time.Since(s.start), b.String())
}

// AddPerfSampleMetadata annotates the sample with the root's standard
// identification and crawl facts.
func (r *Root) AddPerfSampleMetadata(s *PerfSample) {
	snap := r.snapshot()
	info := r.recrawl.Info()
	s.Add("root", r.path)
	s.Add("fstype", r.fsType)
	s.Add("case_insensitive", r.caseInsensitive)
	s.Add("recrawl_count", info.Count)
	s.Add("done_initial", snap.DoneInitial)
	s.Add("cancelled", snap.Cancelled)
}
