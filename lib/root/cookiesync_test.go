// Copyright (C) 2026 The Dirwatch Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package root

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCookieSyncObserved(t *testing.T) {
	dir := t.TempDir()
	c := NewCookieSync(dir)

	done := make(chan error, 1)
	go func() {
		done <- c.Sync(context.Background(), 5*time.Second)
	}()

	// Wait for the marker to be registered and materialized, then play
	// the role of the event pipeline.
	name := waitForOutstanding(t, c)
	if _, err := os.Lstat(filepath.Join(dir, name)); err != nil {
		t.Fatal("Marker file not materialized:", err)
	}
	if !c.Notify(name) {
		t.Fatal("Notify did not find the waiter")
	}

	if err := <-done; err != nil {
		t.Fatal("Sync failed:", err)
	}
	if got := c.Outstanding(); len(got) != 0 {
		t.Error("Pending entry not removed:", got)
	}
}

func TestCookieSyncTimeoutZero(t *testing.T) {
	// An unresponsive pipeline: nobody ever calls Notify. A zero timeout
	// must resolve with ErrSyncTimeout promptly and leave nothing behind.
	dir := t.TempDir()
	c := NewCookieSync(dir)

	err := c.Sync(context.Background(), 0)
	if !errors.Is(err, ErrSyncTimeout) {
		t.Fatal("Expected ErrSyncTimeout, got", err)
	}
	if got := c.Outstanding(); len(got) != 0 {
		t.Error("Pending entry not removed on timeout:", got)
	}
	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(ents) != 0 {
		t.Error("Marker artifact not cleaned up:", ents)
	}
}

func TestCookieSyncConcurrentIndependent(t *testing.T) {
	dir := t.TempDir()
	c := NewCookieSync(dir)

	done1 := make(chan error, 1)
	done2 := make(chan error, 1)
	go func() { done1 <- c.Sync(context.Background(), 5*time.Second) }()
	go func() { done2 <- c.Sync(context.Background(), 5*time.Second) }()

	var names []string
	deadline := time.Now().Add(5 * time.Second)
	for len(names) < 2 {
		if time.Now().After(deadline) {
			t.Fatal("Markers never registered:", names)
		}
		names = c.Outstanding()
		time.Sleep(time.Millisecond)
	}
	if names[0] == names[1] {
		t.Fatal("Concurrent syncs share a marker:", names)
	}

	// Resolve one; only one waiter may finish.
	c.Notify(names[0])
	select {
	case err := <-done1:
		if err != nil {
			t.Fatal("First sync failed:", err)
		}
	case err := <-done2:
		if err != nil {
			t.Fatal("Second sync failed:", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("No sync resolved")
	}
	select {
	case <-done1:
		t.Fatal("Both syncs resolved from one marker")
	case <-done2:
		t.Fatal("Both syncs resolved from one marker")
	case <-time.After(50 * time.Millisecond):
	}

	c.Notify(names[1])
	select {
	case <-done1:
	case <-done2:
	case <-time.After(5 * time.Second):
		t.Fatal("Second sync never resolved")
	}
}

func TestCookieSyncAbortAll(t *testing.T) {
	dir := t.TempDir()
	c := NewCookieSync(dir)

	boom := errors.New("boom")
	done := make(chan error, 1)
	go func() { done <- c.Sync(context.Background(), time.Minute) }()
	waitForOutstanding(t, c)

	c.AbortAll(boom)
	select {
	case err := <-done:
		if !errors.Is(err, boom) {
			t.Fatal("Expected abort error, got", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Waiter not resolved by AbortAll")
	}
}

func TestCookieSerialNeverReused(t *testing.T) {
	c := NewCookieSync(t.TempDir())

	for i := 0; i < 100; i++ {
		err := c.Sync(context.Background(), 0)
		if !errors.Is(err, ErrSyncTimeout) {
			t.Fatal(err)
		}
	}
	// The serial advances even for failed syncs, so no marker identity is
	// ever reused within the root's lifetime.
	if got := c.serial.Load(); got != 100 {
		t.Fatal("Serial not advanced per sync:", got)
	}
}

func TestIsCookie(t *testing.T) {
	c := NewCookieSync(t.TempDir())

	cases := []struct {
		name string
		want bool
	}{
		{".dirwatch-cookie-host-1-1", true},
		{"sub/dir/.dirwatch-cookie-host-1-2", true},
		{"regular-file", false},
		{"sub/.hidden", false},
	}
	for _, tc := range cases {
		if got := c.IsCookie(tc.name); got != tc.want {
			t.Errorf("IsCookie(%q) == %v, expected %v", tc.name, got, tc.want)
		}
	}
}

func waitForOutstanding(t *testing.T, c *CookieSync) string {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		if names := c.Outstanding(); len(names) > 0 {
			return names[0]
		}
		if time.Now().After(deadline) {
			t.Fatal("No outstanding cookie appeared")
		}
		time.Sleep(time.Millisecond)
	}
}
