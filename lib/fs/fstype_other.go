// Copyright (C) 2026 The Dirwatch Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

//go:build !linux
// +build !linux

package fs

// TypeName probes the filesystem type of the given path. Only implemented
// on Linux; elsewhere the type is reported as unknown.
func TypeName(_ string) string {
	return "unknown"
}
