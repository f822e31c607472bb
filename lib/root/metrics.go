// Copyright (C) 2026 The Dirwatch Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package root

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricCrawls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dirwatch",
		Subsystem: "root",
		Name:      "crawls_total",
		Help:      "Total number of crawl passes, per root and kind (initial/recrawl)",
	}, []string{"root", "kind"})

	metricCookieSyncs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dirwatch",
		Subsystem: "root",
		Name:      "cookie_syncs_total",
		Help:      "Total number of sync-to-now attempts, per root and result (ok/timeout/error)",
	}, []string{"root", "result"})

	metricQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dirwatch",
		Subsystem: "root",
		Name:      "queries_total",
		Help:      "Total number of queries evaluated, per root",
	}, []string{"root"})

	metricAgeOutPruned = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dirwatch",
		Subsystem: "root",
		Name:      "ageout_pruned_total",
		Help:      "Total number of deleted entries pruned by age-out passes, per root",
	}, []string{"root"})

	metricAssertedStates = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "dirwatch",
		Subsystem: "root",
		Name:      "asserted_states",
		Help:      "Number of client state names currently queued or held, per root",
	}, []string{"root"})

	metricWatchedRoots = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "dirwatch",
		Subsystem: "root",
		Name:      "watched_roots",
		Help:      "Number of roots currently watched",
	})
)
