// Copyright (C) 2026 The Dirwatch Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package fswatcher adapts the OS-level notification backend into the
// change-event stream consumed by the root's serve loop. It deals with
// backend buffer overflow by degrading to a full-rescan event rather than
// losing changes silently.
package fswatcher

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/syncthing/notify"

	"github.com/dirwatch/dirwatch/lib/fs"
)

// Notify does not block on sending to channel, so the channel must be
// buffered. The actual number is magic.
// Not meant to be changed, but must be changeable for tests
var backendBuffer = 500

var errOutsideRoot = errors.New("event path outside watched root")

const rmEventMask = notify.Remove | notify.Rename

// Watch sets up a recursive watch below root and returns the channel change
// events are delivered on, plus a channel reporting a fatal backend error.
// Both channels are serviced until ctx is cancelled.
func Watch(ctx context.Context, root string) (<-chan fs.Event, <-chan error, error) {
	outChan := make(chan fs.Event)
	backendChan := make(chan notify.EventInfo, backendBuffer)

	absShouldIgnore := func(absPath string) bool {
		return !utf8.ValidString(absPath)
	}
	if err := notify.WatchWithFilter(filepath.Join(root, "..."), backendChan, absShouldIgnore, notify.All); err != nil {
		notify.Stop(backendChan)
		return nil, nil, err
	}

	errChan := make(chan error)
	go watchLoop(ctx, root, backendChan, outChan, errChan)

	return outChan, errChan, nil
}

func watchLoop(ctx context.Context, root string, backendChan chan notify.EventInfo, outChan chan<- fs.Event, errChan chan<- error) {
	for {
		// Detect channel overflow
		if len(backendChan) == backendBuffer {
		outer:
			for {
				select {
				case <-backendChan:
				default:
					break outer
				}
			}
			// Events have been lost; the consumer must recrawl the whole
			// root.
			outChan <- fs.Event{Name: ".", Type: fs.NonRemove}
			l.Debugln("Watch: Event overflow, send \".\"", root)
		}

		select {
		case ev := <-backendChan:
			relPath, err := unrooted(ev.Path(), root)
			if err != nil {
				select {
				case errChan <- err:
					l.Debugln("Watch: Sending error", err)
				case <-ctx.Done():
				}
				notify.Stop(backendChan)
				l.Debugln("Watch: Stopped due to", err)
				return
			}

			select {
			case outChan <- fs.Event{Name: relPath, Type: eventType(ev.Event())}:
				l.Debugln("Watch: Sending", relPath)
			case <-ctx.Done():
				notify.Stop(backendChan)
				l.Debugln("Watch: Stopped")
				return
			}
		case <-ctx.Done():
			notify.Stop(backendChan)
			l.Debugln("Watch: Stopped")
			return
		}
	}
}

func eventType(notifyType notify.Event) fs.EventType {
	if notifyType&rmEventMask != 0 {
		return fs.Remove
	}
	return fs.NonRemove
}

func unrooted(absPath, root string) (string, error) {
	rel, err := filepath.Rel(root, absPath)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errOutsideRoot
	}
	return rel, nil
}
