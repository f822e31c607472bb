// Copyright (C) 2026 The Dirwatch Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package fs holds the filesystem-facing leaf types: change events as
// delivered by the watch backend, root path validation and filesystem type
// probing.
package fs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// EventType is a bit mask of the kinds of change observed at a path.
type EventType int

const (
	NonRemove EventType = 1 + (1 << iota)
	Remove
	Mixed // Should probably not be necessary to be used in filesystem interface implementation
)

func (evType EventType) String() string {
	switch {
	case evType == NonRemove:
		return "non-remove"
	case evType == Remove:
		return "remove"
	case evType == Mixed:
		return "mixed"
	default:
		panic("bug: Unknown event type")
	}
}

// Event is one observed change below a watched root, with Name relative to
// that root.
type Event struct {
	Name string
	Type EventType
}

var (
	ErrNotDirectory = errors.New("not a directory")
	ErrNotAbsolute  = errors.New("path is not absolute")
)

// ValidateRoot checks that the given path is fit to become a watched root:
// absolute, existing, and a directory. It returns the cleaned path.
func ValidateRoot(path string) (string, error) {
	if !filepath.IsAbs(path) {
		return "", fmt.Errorf("%q: %w", path, ErrNotAbsolute)
	}
	path = filepath.Clean(path)
	fi, err := os.Lstat(path)
	if err != nil {
		return "", err
	}
	if !fi.IsDir() {
		return "", fmt.Errorf("%q: %w", path, ErrNotDirectory)
	}
	return path, nil
}
