// Copyright (C) 2026 The Dirwatch Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package config defines the typed configuration for watched roots, with
// defaults applied when values are unset.
package config

import (
	"fmt"
	"path/filepath"
	"time"
)

const (
	// Prune out deleted entries that the view last saw roughly 12-36 hours
	// ago: age out entries older than half a day, at most once a day.
	DefaultGCIntervalS = 86400
	DefaultGCAgeS      = 86400 / 2

	// Debounce window between the last observed change and trigger
	// evaluation.
	DefaultSettleDelayMs = 20

	// Upper bound on how long SyncToNow may wait for cookie observation
	// when the caller does not say otherwise.
	DefaultSyncTimeoutS = 60
)

// RootConfiguration describes one watched root. The zero value is not
// usable; call prepare (via Configuration.Prepare or NewRootConfiguration)
// to fill in defaults.
type RootConfiguration struct {
	Path            string `json:"path"`
	FilesystemType  string `json:"filesystemType"`
	CaseInsensitive bool   `json:"caseInsensitive"`
	GCIntervalS     int    `json:"gcIntervalS"`
	GCAgeS          int    `json:"gcAgeS"`
	IdleReapAgeS    int    `json:"idleReapAgeS"`
	SettleDelayMs   int    `json:"settleDelayMs"`
	SyncTimeoutS    int    `json:"syncTimeoutS"`
	RecrawlOnStart  bool   `json:"recrawlOnStart"`
}

func NewRootConfiguration(path string) RootConfiguration {
	c := RootConfiguration{Path: path}
	c.prepare()
	return c
}

func (c RootConfiguration) Copy() RootConfiguration {
	return c
}

func (c *RootConfiguration) prepare() {
	if c.Path != "" {
		c.Path = filepath.Clean(c.Path)
	}
	if c.GCIntervalS < 0 {
		c.GCIntervalS = 0
	} else if c.GCIntervalS == 0 {
		c.GCIntervalS = DefaultGCIntervalS
	}
	if c.GCAgeS <= 0 {
		c.GCAgeS = DefaultGCAgeS
	}
	if c.IdleReapAgeS < 0 {
		c.IdleReapAgeS = 0
	}
	if c.SettleDelayMs <= 0 {
		c.SettleDelayMs = DefaultSettleDelayMs
	}
	if c.SyncTimeoutS <= 0 {
		c.SyncTimeoutS = DefaultSyncTimeoutS
	}
}

// GCInterval returns the minimum pause between age-out passes. Zero means
// automatic age-out is disabled. Note the asymmetry against prepare: a
// configured value below zero disables GC, while zero selects the default.
// Negative values can still be present here when overrides are applied
// after prepare has run, so they are clamped to disabled.
func (c RootConfiguration) GCInterval() time.Duration {
	if c.GCIntervalS <= 0 {
		return 0
	}
	return time.Duration(c.GCIntervalS) * time.Second
}

// GCAge returns the minimum age of deleted entries pruned by an age-out
// pass. Non-positive values select the default, as in prepare.
func (c RootConfiguration) GCAge() time.Duration {
	if c.GCAgeS <= 0 {
		return DefaultGCAgeS * time.Second
	}
	return time.Duration(c.GCAgeS) * time.Second
}

// IdleReapAge returns how long a root may go without client commands before
// it is reaped. Zero or negative means never reap.
func (c RootConfiguration) IdleReapAge() time.Duration {
	if c.IdleReapAgeS <= 0 {
		return 0
	}
	return time.Duration(c.IdleReapAgeS) * time.Second
}

func (c RootConfiguration) SettleDelay() time.Duration {
	return time.Duration(c.SettleDelayMs) * time.Millisecond
}

func (c RootConfiguration) SyncTimeout() time.Duration {
	return time.Duration(c.SyncTimeoutS) * time.Second
}

func (c RootConfiguration) Description() string {
	if c.FilesystemType == "" {
		return c.Path
	}
	return fmt.Sprintf("%s (%s)", c.Path, c.FilesystemType)
}
