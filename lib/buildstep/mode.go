// Copyright 2026 The Vessel Authors
// SPDX-License-Identifier: Apache-2.0

package buildstep

import "io/fs"

// DefaultUmask is applied when a Copy step does not configure one.
const DefaultUmask fs.FileMode = 0o002

const (
	dirMode      fs.FileMode = 0o777
	fileMode     fs.FileMode = 0o666
	exeFileMode  fs.FileMode = 0o777
	exeCheckMask fs.FileMode = 0o100
)

// ComputeMode decides the permission bits to apply when replicating a
// node. Returns false for symlinks — a symlink never gets a mode.
//
// With preservePermissions the node's existing bits (including
// setuid/setgid/sticky) pass through unchanged and the umask is
// ignored. Otherwise permission noise from the source filesystem is
// normalized away: directories get 0777, files get 0777 or 0666
// depending only on whether any owner-execute bit was set, and the
// umask clears the rest. Executability is the single bit that matters
// operationally, so it is the only one preserved.
func ComputeMode(info fs.FileInfo, preservePermissions bool, umask fs.FileMode) (fs.FileMode, bool) {
	mode := info.Mode()
	if mode.Type() == fs.ModeSymlink {
		return 0, false
	}
	if preservePermissions {
		return mode.Perm() | mode&(fs.ModeSetuid|fs.ModeSetgid|fs.ModeSticky), true
	}

	base := fileMode
	switch {
	case mode.IsDir():
		base = dirMode
	case mode.Perm()&exeCheckMask != 0:
		base = exeFileMode
	}
	return base &^ umask, true
}

// isExecutable reports whether a regular file's owner-execute bit is
// set. This is the only permission information that participates in
// Depends fingerprints.
func isExecutable(info fs.FileInfo) bool {
	return info.Mode().Perm()&exeCheckMask != 0
}
