// Copyright (C) 2026 The Dirwatch Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package sync provides mutexes that can log when they are held longer
// than a configurable threshold, for debugging lock contention.
package sync

import (
	"fmt"
	"runtime"
	stdsync "sync"
	"time"
)

type Mutex interface {
	Lock()
	Unlock()
}

type RWMutex interface {
	Mutex
	RLock()
	RUnlock()
}

type WaitGroup interface {
	Add(int)
	Done()
	Wait()
}

func NewMutex() Mutex {
	if debug {
		return &loggedMutex{}
	}
	return &stdsync.Mutex{}
}

func NewRWMutex() RWMutex {
	if debug {
		return &loggedRWMutex{}
	}
	return &stdsync.RWMutex{}
}

func NewWaitGroup() WaitGroup {
	return &stdsync.WaitGroup{}
}

type loggedMutex struct {
	stdsync.Mutex
	lockedAt time.Time
	lockedBy string
}

func (m *loggedMutex) Lock() {
	m.Mutex.Lock()
	m.lockedAt = time.Now()
	m.lockedBy = callerInfo()
}

func (m *loggedMutex) Unlock() {
	held := time.Since(m.lockedAt)
	if held >= threshold {
		l.Debugf("Mutex held for %v. Locked at %s, unlocked at %s", held, m.lockedBy, callerInfo())
	}
	m.lockedAt = time.Time{}
	m.lockedBy = ""
	m.Mutex.Unlock()
}

type loggedRWMutex struct {
	stdsync.RWMutex
	lockedAt time.Time
	lockedBy string
}

func (m *loggedRWMutex) Lock() {
	start := time.Now()
	m.RWMutex.Lock()
	if wait := time.Since(start); wait >= threshold {
		l.Debugf("RWMutex took %v to lock at %s", wait, callerInfo())
	}
	m.lockedAt = time.Now()
	m.lockedBy = callerInfo()
}

func (m *loggedRWMutex) Unlock() {
	held := time.Since(m.lockedAt)
	if held >= threshold {
		l.Debugf("RWMutex held for %v. Locked at %s, unlocked at %s", held, m.lockedBy, callerInfo())
	}
	m.lockedAt = time.Time{}
	m.lockedBy = ""
	m.RWMutex.Unlock()
}

func callerInfo() string {
	_, file, line, ok := runtime.Caller(2)
	if !ok {
		return "unknown"
	}
	return fmt.Sprintf("%s:%d", file, line)
}
