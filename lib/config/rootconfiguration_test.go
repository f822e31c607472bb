// Copyright (C) 2026 The Dirwatch Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package config

import (
	"testing"
	"time"

	"github.com/d4l3k/messagediff"
)

func TestNewRootConfigurationDefaults(t *testing.T) {
	cfg := NewRootConfiguration("/some/path/")

	expected := RootConfiguration{
		Path:          "/some/path",
		GCIntervalS:   DefaultGCIntervalS,
		GCAgeS:        DefaultGCAgeS,
		SettleDelayMs: DefaultSettleDelayMs,
		SyncTimeoutS:  DefaultSyncTimeoutS,
	}
	if diff, equal := messagediff.PrettyDiff(expected, cfg); !equal {
		t.Errorf("Defaults not applied:\n%s", diff)
	}
}

func TestGCIntervalDisable(t *testing.T) {
	// Zero selects the default, negative disables.
	cfg := RootConfiguration{Path: "/p", GCIntervalS: 0}
	cfg.prepare()
	if cfg.GCInterval() != DefaultGCIntervalS*time.Second {
		t.Error("Zero GC interval should select the default, got", cfg.GCInterval())
	}

	cfg = RootConfiguration{Path: "/p", GCIntervalS: -1}
	cfg.prepare()
	if cfg.GCInterval() != 0 {
		t.Error("Negative GC interval should disable GC, got", cfg.GCInterval())
	}

	// Overrides applied after prepare, as the command line does, must not
	// leak negatives through the accessors.
	cfg = NewRootConfiguration("/p")
	cfg.GCIntervalS = -1
	cfg.GCAgeS = -1
	cfg.IdleReapAgeS = -1
	if cfg.GCInterval() != 0 {
		t.Error("Post-prepare negative GC interval should disable GC, got", cfg.GCInterval())
	}
	if cfg.GCAge() != DefaultGCAgeS*time.Second {
		t.Error("Post-prepare negative GC age should select the default, got", cfg.GCAge())
	}
	if cfg.IdleReapAge() != 0 {
		t.Error("Post-prepare negative reap age should disable reaping, got", cfg.IdleReapAge())
	}
}

func TestDurationAccessors(t *testing.T) {
	cfg := RootConfiguration{
		Path:          "/p",
		GCIntervalS:   10,
		GCAgeS:        20,
		IdleReapAgeS:  30,
		SettleDelayMs: 40,
		SyncTimeoutS:  50,
	}
	cfg.prepare()

	cases := []struct {
		got, want time.Duration
	}{
		{cfg.GCInterval(), 10 * time.Second},
		{cfg.GCAge(), 20 * time.Second},
		{cfg.IdleReapAge(), 30 * time.Second},
		{cfg.SettleDelay(), 40 * time.Millisecond},
		{cfg.SyncTimeout(), 50 * time.Second},
	}
	for i, tc := range cases {
		if tc.got != tc.want {
			t.Errorf("Case %d: got %v, expected %v", i, tc.got, tc.want)
		}
	}
}

func TestDescription(t *testing.T) {
	cfg := NewRootConfiguration("/some/path")
	if cfg.Description() != "/some/path" {
		t.Error("Unexpected description:", cfg.Description())
	}
	cfg.FilesystemType = "btrfs"
	if cfg.Description() != "/some/path (btrfs)" {
		t.Error("Unexpected description:", cfg.Description())
	}
}
