// Copyright (C) 2026 The Dirwatch Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package fs

import "golang.org/x/sys/unix"

// Statfs f_type values for the filesystems we care to tell apart. The watch
// backend behaves differently enough on network filesystems that callers
// want the name for diagnostics and recrawl decisions.
const (
	magicBtrfs    = 0x9123683e
	magicExt      = 0xef53
	magicXfs      = 0x58465342
	magicTmpfs    = 0x01021994
	magicNfs      = 0x6969
	magicCifs     = 0xff534d42
	magicFuse     = 0x65735546
	magicOverlay  = 0x794c7630
	magicZfs      = 0x2fc12fc1
	magicSquashfs = 0x73717368
)

// TypeName probes the filesystem type of the given path.
func TypeName(path string) string {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return "unknown"
	}
	switch uint32(st.Type) {
	case magicBtrfs:
		return "btrfs"
	case magicExt:
		return "ext"
	case magicXfs:
		return "xfs"
	case magicTmpfs:
		return "tmpfs"
	case magicNfs:
		return "nfs"
	case magicCifs:
		return "cifs"
	case magicFuse:
		return "fuse"
	case magicOverlay:
		return "overlay"
	case magicZfs:
		return "zfs"
	case magicSquashfs:
		return "squashfs"
	default:
		return "unknown"
	}
}
