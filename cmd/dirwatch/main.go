// Copyright (C) 2026 The Dirwatch Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Command dirwatch watches one or more directory trees and broadcasts
// state promotions, trigger firings and watch health changes for them. The
// wire protocol lives elsewhere; this command prints the broadcast stream
// and optionally serves Prometheus metrics.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/kballard/go-shellquote"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/thejerf/suture/v4"

	"github.com/dirwatch/dirwatch/lib/config"
	"github.com/dirwatch/dirwatch/lib/events"
	"github.com/dirwatch/dirwatch/lib/fs"
	"github.com/dirwatch/dirwatch/lib/fswatcher"
	"github.com/dirwatch/dirwatch/lib/logger"
	"github.com/dirwatch/dirwatch/lib/root"
)

type cli struct {
	Paths         []string `arg:"" help:"Directory trees to watch" type:"existingdir"`
	GCIntervalS   int      `help:"Seconds between age-out passes; negative disables" env:"DIRWATCH_GC_INTERVAL"`
	GCAgeS        int      `help:"Minimum age in seconds of pruned deleted entries" env:"DIRWATCH_GC_AGE"`
	IdleReapAgeS  int      `help:"Reap roots idle for this many seconds; 0 keeps them forever" env:"DIRWATCH_IDLE_REAP_AGE"`
	SettleDelayMs int      `help:"Quiescence window before triggers fire" env:"DIRWATCH_SETTLE_DELAY_MS"`
	Trigger       []string `help:"Trigger definition name:pattern:command, command shell-quoted; repeatable" placeholder:"NAME:PATTERN:CMD"`
	MetricsListen string   `help:"Prometheus metrics listen address, empty to disable" env:"DIRWATCH_METRICS_LISTEN"`
}

type triggerDef struct {
	name    string
	pattern string
	command []string
}

func parseTrigger(s string) (triggerDef, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
		return triggerDef{}, fmt.Errorf("malformed trigger %q, expected name:pattern:command", s)
	}
	command, err := shellquote.Split(parts[2])
	if err != nil || len(command) == 0 {
		return triggerDef{}, fmt.Errorf("malformed trigger command in %q: %v", s, err)
	}
	return triggerDef{name: parts[0], pattern: parts[1], command: command}, nil
}

var l = logger.DefaultLogger.NewFacility("main", "Main")

func main() {
	var params cli
	kong.Parse(&params)

	triggers := make([]triggerDef, 0, len(params.Trigger))
	for _, s := range params.Trigger {
		def, err := parseTrigger(s)
		if err != nil {
			l.Warnf("%v", err)
			os.Exit(2)
		}
		triggers = append(triggers, def)
	}

	publisher := events.NewLogger()
	registry := root.NewRegistry(publisher,
		func(cfg config.RootConfiguration) root.View {
			return root.NewMemoryView(cfg.Path)
		},
		func(path string) root.EventSource {
			return func(ctx context.Context) (<-chan fs.Event, <-chan error, error) {
				return fswatcher.Watch(ctx, path)
			}
		})

	sup := suture.New("main", suture.Spec{PassThroughPanics: true})
	sup.Add(registry)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	errC := sup.ServeBackground(ctx)

	for _, path := range params.Paths {
		cfg := config.NewRootConfiguration(path)
		if params.GCIntervalS != 0 {
			cfg.GCIntervalS = params.GCIntervalS
		}
		if params.GCAgeS != 0 {
			cfg.GCAgeS = params.GCAgeS
		}
		if params.IdleReapAgeS != 0 {
			cfg.IdleReapAgeS = params.IdleReapAgeS
		}
		if params.SettleDelayMs != 0 {
			cfg.SettleDelayMs = params.SettleDelayMs
		}
		r, err := registry.Watch(cfg)
		if err != nil {
			l.Warnf("Cannot watch %s: %v", path, err)
			os.Exit(1)
		}
		for _, def := range triggers {
			if err := r.RegisterTrigger(def.name, def.pattern, def.command); err != nil {
				l.Warnf("Cannot register trigger %s: %v", def.name, err)
				os.Exit(2)
			}
		}
	}

	if params.MetricsListen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			if err := http.ListenAndServe(params.MetricsListen, mux); err != nil {
				l.Warnf("Metrics listener failed: %v", err)
			}
		}()
	}

	// Print the broadcast stream until shutdown. The buffered subscription
	// between the publisher and stdout keeps bursty roots from dropping
	// events while the encoder catches up.
	sub := publisher.Subscribe(events.AllEvents)
	defer publisher.Unsubscribe(sub)
	bufSub := events.NewBufferedSubscription(sub, 10*events.BufferSize)
	evC := make(chan []events.Event)
	go func() {
		var since int
		for {
			evs := bufSub.Since(since, nil)
			since = evs[len(evs)-1].SubscriptionID
			select {
			case evC <- evs:
			case <-ctx.Done():
				return
			}
		}
	}()
	enc := json.NewEncoder(os.Stdout)
	for {
		select {
		case evs := <-evC:
			for _, ev := range evs {
				_ = enc.Encode(ev)
			}
		case <-ctx.Done():
			registry.CancelAll()
			<-errC
			return
		}
	}
}
