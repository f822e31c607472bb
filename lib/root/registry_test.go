// Copyright (C) 2026 The Dirwatch Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package root

import (
	"context"
	"errors"
	"strings"
	stdsync "sync"
	"testing"
	"time"

	"github.com/dirwatch/dirwatch/lib/config"
	"github.com/dirwatch/dirwatch/lib/events"
	"github.com/dirwatch/dirwatch/lib/fs"
)

func startTestRegistry(t *testing.T) *Registry {
	t.Helper()
	reg := NewRegistry(events.NewLogger(), func(config.RootConfiguration) View {
		return &fakeView{}
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = reg.Serve(ctx)
	}()
	t.Cleanup(func() {
		reg.CancelAll()
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("Registry supervisor did not exit")
		}
	})
	return reg
}

func TestRegistryWatchAndGet(t *testing.T) {
	reg := startTestRegistry(t)
	dir := t.TempDir()

	r, err := reg.Watch(config.NewRootConfiguration(dir))
	if err != nil {
		t.Fatal(err)
	}
	if got := reg.Len(); got != 1 {
		t.Fatalf("Expected one root, got %d", got)
	}

	got, ok := reg.Get(dir)
	if !ok || got != r {
		t.Fatal("Get did not return the watched root")
	}
	if _, ok := reg.Get(dir + "-missing"); ok {
		t.Fatal("Get returned a root for an unwatched path")
	}

	// The serve loop runs under the supervisor.
	waitFor(t, func() bool { return r.DoneInitial() })
}

func TestRegistryWatchAttachesExisting(t *testing.T) {
	reg := startTestRegistry(t)
	cfg := config.NewRootConfiguration(t.TempDir())

	first, err := reg.Watch(cfg)
	if err != nil {
		t.Fatal(err)
	}
	second, err := reg.Watch(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Fatal("Second watch of the same path created a new root")
	}
	if got := reg.Len(); got != 1 {
		t.Fatalf("Expected one root, got %d", got)
	}
}

func TestRegistryWatchConcurrent(t *testing.T) {
	reg := startTestRegistry(t)
	cfg := config.NewRootConfiguration(t.TempDir())

	const n = 16
	roots := make([]*Root, n)
	var wg stdsync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := reg.Watch(cfg)
			if err != nil {
				t.Error(err)
				return
			}
			roots[i] = r
		}(i)
	}
	wg.Wait()

	for _, r := range roots[1:] {
		if r != roots[0] {
			t.Fatal("Concurrent watches produced distinct roots")
		}
	}
	if got := reg.Len(); got != 1 {
		t.Fatalf("Expected one root, got %d", got)
	}
}

func TestRegistryUnwatch(t *testing.T) {
	reg := startTestRegistry(t)
	dir := t.TempDir()

	r, err := reg.Watch(config.NewRootConfiguration(dir))
	if err != nil {
		t.Fatal(err)
	}
	if !reg.Unwatch(dir) {
		t.Fatal("Unwatch of a watched path returned false")
	}
	if !r.Cancelled() {
		t.Fatal("Unwatched root not cancelled")
	}
	if got := reg.Len(); got != 0 {
		t.Fatalf("Expected zero roots, got %d", got)
	}
	if reg.Unwatch(dir) {
		t.Fatal("Second unwatch returned true")
	}
}

func TestRegistryStopWatchDetaches(t *testing.T) {
	reg := startTestRegistry(t)
	dir := t.TempDir()

	r, err := reg.Watch(config.NewRootConfiguration(dir))
	if err != nil {
		t.Fatal(err)
	}
	r.StopWatch()
	if got := reg.Len(); got != 0 {
		t.Fatalf("Root still registered after StopWatch, len %d", got)
	}
	if _, ok := reg.Get(dir); ok {
		t.Fatal("Get still finds the stopped root")
	}
}

func TestRegistryCaseInsensitiveKey(t *testing.T) {
	reg := startTestRegistry(t)
	dir := t.TempDir()

	cfg := config.NewRootConfiguration(dir)
	cfg.CaseInsensitive = true
	r, err := reg.Watch(cfg)
	if err != nil {
		t.Fatal(err)
	}
	got, ok := reg.Get(strings.ToUpper(dir))
	if !ok || got != r {
		t.Fatal("Case-insensitive root not found via differently cased path")
	}
}

func TestRegistryCancelAll(t *testing.T) {
	reg := startTestRegistry(t)

	var roots []*Root
	for i := 0; i < 3; i++ {
		r, err := reg.Watch(config.NewRootConfiguration(t.TempDir()))
		if err != nil {
			t.Fatal(err)
		}
		roots = append(roots, r)
	}

	reg.CancelAll()
	for _, r := range roots {
		if !r.Cancelled() {
			t.Error("Root not cancelled by CancelAll:", r)
		}
	}
	if got := reg.Len(); got != 0 {
		t.Fatalf("Expected zero roots after CancelAll, got %d", got)
	}
}

func TestRegistryStatus(t *testing.T) {
	reg := startTestRegistry(t)
	dirA, dirB := t.TempDir(), t.TempDir()

	if _, err := reg.Watch(config.NewRootConfiguration(dirA)); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.Watch(config.NewRootConfiguration(dirB)); err != nil {
		t.Fatal(err)
	}

	st := reg.Status()
	if len(st) != 2 {
		t.Fatalf("Expected two statuses, got %d", len(st))
	}
	paths := map[string]bool{st[0].Path: true, st[1].Path: true}
	if !paths[dirA] || !paths[dirB] {
		t.Error("Status paths wrong:", paths)
	}
}

func TestRegistryDetachesFailedRoot(t *testing.T) {
	var mut stdsync.Mutex
	var views []*fakeView
	reg := NewRegistry(events.NewLogger(), func(config.RootConfiguration) View {
		v := &fakeView{}
		mut.Lock()
		views = append(views, v)
		mut.Unlock()
		return v
	}, func(string) EventSource {
		return func(context.Context) (<-chan fs.Event, <-chan error, error) {
			errC := make(chan error, 1)
			errC <- errors.New("inotify limit reached")
			return make(chan fs.Event), errC, nil
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = reg.Serve(ctx)
	}()
	defer func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("Registry supervisor did not exit")
		}
	}()

	r, err := reg.Watch(config.NewRootConfiguration(t.TempDir()))
	if err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool { return r.Cancelled() })
	waitFor(t, func() bool { return reg.Len() == 0 })
	select {
	case <-r.Stopped():
	case <-time.After(5 * time.Second):
		t.Fatal("Serve loop did not exit after watch failure")
	}

	// Leave the supervisor a moment to misbehave, then verify the failed
	// root was neither restarted nor re-crawled.
	time.Sleep(100 * time.Millisecond)
	mut.Lock()
	defer mut.Unlock()
	if len(views) != 1 {
		t.Fatalf("Expected one view, got %d", len(views))
	}
	if got := views[0].crawlCount(); got != 1 {
		t.Fatalf("Expected one crawl, got %d", got)
	}
}
