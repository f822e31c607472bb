// Copyright (C) 2026 The Dirwatch Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package root

import (
	"context"
	"time"

	"github.com/dirwatch/dirwatch/lib/fs"
)

// View owns the directory-tree model and query evaluation for one root.
// The root drives it from the serve loop: a full crawl to establish the
// baseline, observed change batches to keep it current, periodic age-out,
// and query evaluation on behalf of clients.
type View interface {
	// Crawl performs the initial full traversal.
	Crawl(ctx context.Context) error
	// Recrawl re-establishes the baseline after the event pipeline is
	// suspected to have missed changes.
	Recrawl(ctx context.Context) error
	// Observe merges a batch of change events into the tree model.
	Observe(batch []fs.Event)
	// AgeOut prunes tracked deleted entries older than minAge, returning
	// how many were pruned.
	AgeOut(minAge time.Duration) (int, error)
	// EvaluateQuery evaluates qc.Expression against the current tree
	// state.
	EvaluateQuery(ctx context.Context, qc *QueryContext) (*QueryResult, error)
}

// QueryResult is the outcome of one query evaluation.
type QueryResult struct {
	// Paths are the root-relative matches, sorted.
	Paths []string `json:"paths"`
	// Tick is the view's change counter at evaluation time; clients store
	// it in a cursor for incremental queries.
	Tick uint64 `json:"tick"`
	// FreshInstance is set when the result is from a fresh crawl rather
	// than incremental against the caller's since-tick.
	FreshInstance bool `json:"freshInstance"`
}
