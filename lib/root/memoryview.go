// Copyright (C) 2026 The Dirwatch Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package root

import (
	"context"
	"io/fs"
	"path/filepath"
	"sort"
	"time"

	"github.com/gobwas/glob"
	lru "github.com/hashicorp/golang-lru/v2"

	dwfs "github.com/dirwatch/dirwatch/lib/fs"
	"github.com/dirwatch/dirwatch/lib/sync"
)

// memoryView is the bundled reference View: a flat in-memory path set fed
// by crawls and observed events, with glob-expression queries. It is
// deliberately simple; a production deployment can slot in a richer
// implementation behind the same interface.
type memoryView struct {
	root string

	mut     sync.RWMutex
	files   map[string]struct{}
	deleted map[string]time.Time
	tick    uint64

	patterns *lru.Cache[string, glob.Glob]
}

// NewMemoryView builds a view over the directory tree at rootPath.
func NewMemoryView(rootPath string) View {
	patterns, _ := lru.New[string, glob.Glob](128)
	return &memoryView{
		root:     rootPath,
		mut:      sync.NewRWMutex(),
		files:    make(map[string]struct{}),
		deleted:  make(map[string]time.Time),
		patterns: patterns,
	}
}

func (v *memoryView) Crawl(ctx context.Context) error {
	found := make(map[string]struct{})
	err := filepath.WalkDir(v.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// A path that vanished mid-walk is not a crawl failure.
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rel, err := filepath.Rel(v.root, path)
		if err != nil || rel == "." {
			return nil
		}
		found[rel] = struct{}{}
		return nil
	})
	if err != nil {
		return err
	}

	v.mut.Lock()
	defer v.mut.Unlock()
	now := time.Now()
	for path := range v.files {
		if _, ok := found[path]; !ok {
			v.deleted[path] = now
		}
	}
	v.files = found
	v.tick++
	return nil
}

func (v *memoryView) Recrawl(ctx context.Context) error {
	return v.Crawl(ctx)
}

func (v *memoryView) Observe(batch []dwfs.Event) {
	v.mut.Lock()
	defer v.mut.Unlock()
	now := time.Now()
	for _, ev := range batch {
		v.tick++
		switch ev.Type {
		case dwfs.Remove:
			if _, ok := v.files[ev.Name]; ok {
				delete(v.files, ev.Name)
				v.deleted[ev.Name] = now
			}
		default:
			delete(v.deleted, ev.Name)
			v.files[ev.Name] = struct{}{}
		}
	}
}

func (v *memoryView) AgeOut(minAge time.Duration) (int, error) {
	v.mut.Lock()
	defer v.mut.Unlock()
	cutoff := time.Now().Add(-minAge)
	pruned := 0
	for path, when := range v.deleted {
		if when.Before(cutoff) {
			delete(v.deleted, path)
			pruned++
		}
	}
	return pruned, nil
}

func (v *memoryView) EvaluateQuery(_ context.Context, qc *QueryContext) (*QueryResult, error) {
	matcher, err := v.compile(qc.Expression)
	if err != nil {
		return nil, err
	}

	v.mut.RLock()
	defer v.mut.RUnlock()
	var paths []string
	for path := range v.files {
		if matcher.Match(filepath.ToSlash(path)) {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)
	return &QueryResult{
		Paths:         paths,
		Tick:          v.tick,
		FreshInstance: qc.SinceTick == 0,
	}, nil
}

func (v *memoryView) compile(expr string) (glob.Glob, error) {
	if expr == "" {
		expr = "**"
	}
	if matcher, ok := v.patterns.Get(expr); ok {
		return matcher, nil
	}
	matcher, err := glob.Compile(expr, '/')
	if err != nil {
		return nil, err
	}
	v.patterns.Add(expr, matcher)
	return matcher, nil
}
