// Copyright (C) 2026 The Dirwatch Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package root

import (
	"fmt"
	"sort"

	"github.com/gobwas/glob"

	"github.com/dirwatch/dirwatch/lib/sync"
)

// TriggerCommand is a registered trigger: when paths matching Expression
// change and the root settles, a TriggerFired event carrying Command and
// the matched paths is broadcast. Running the command is the subscriber's
// business, not ours.
type TriggerCommand struct {
	Name       string   `json:"name"`
	Expression string   `json:"expression"`
	Command    []string `json:"command"`

	matcher glob.Glob
}

// Matches reports whether the trigger's expression matches the given
// root-relative path.
func (t *TriggerCommand) Matches(path string) bool {
	return t.matcher.Match(path)
}

type triggerTable struct {
	mut      sync.RWMutex
	triggers map[string]*TriggerCommand
}

func newTriggerTable() *triggerTable {
	return &triggerTable{
		mut:      sync.NewRWMutex(),
		triggers: make(map[string]*TriggerCommand),
	}
}

// Register adds or replaces the named trigger, compiling its expression.
func (tt *triggerTable) Register(name, expression string, command []string) error {
	matcher, err := glob.Compile(expression, '/')
	if err != nil {
		return fmt.Errorf("trigger %q: compiling expression: %w", name, err)
	}
	tt.mut.Lock()
	defer tt.mut.Unlock()
	tt.triggers[name] = &TriggerCommand{
		Name:       name,
		Expression: expression,
		Command:    command,
		matcher:    matcher,
	}
	return nil
}

func (tt *triggerTable) Unregister(name string) bool {
	tt.mut.Lock()
	defer tt.mut.Unlock()
	_, ok := tt.triggers[name]
	delete(tt.triggers, name)
	return ok
}

func (tt *triggerTable) Get(name string) (*TriggerCommand, bool) {
	tt.mut.RLock()
	defer tt.mut.RUnlock()
	t, ok := tt.triggers[name]
	return t, ok
}

// List returns the registered triggers sorted by name.
func (tt *triggerTable) List() []*TriggerCommand {
	tt.mut.RLock()
	defer tt.mut.RUnlock()
	res := make([]*TriggerCommand, 0, len(tt.triggers))
	for _, t := range tt.triggers {
		res = append(res, t)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res
}

// matching returns, per trigger, the subset of changed paths its
// expression matches.
func (tt *triggerTable) matching(changed []string) map[string][]string {
	tt.mut.RLock()
	defer tt.mut.RUnlock()
	var res map[string][]string
	for name, t := range tt.triggers {
		var hits []string
		for _, path := range changed {
			if t.Matches(path) {
				hits = append(hits, path)
			}
		}
		if len(hits) > 0 {
			if res == nil {
				res = make(map[string][]string)
			}
			sort.Strings(hits)
			res[name] = hits
		}
	}
	return res
}
