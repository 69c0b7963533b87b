// Copyright 2026 The Vessel Authors
// SPDX-License-Identifier: Apache-2.0

// Package fsutil provides the shallow node replication primitive used
// to materialize build steps. A shallow copy replicates exactly one
// filesystem node (directory, regular file, or symlink) without
// recursing; directory trees are materialized by replicating each node
// of a sorted enumeration in turn.
package fsutil

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// ReplicationError wraps an I/O failure with both ends of the copy so
// diagnostics can name the node that failed, not just the errno.
type ReplicationError struct {
	Source string
	Dest   string
	Err    error
}

func (e *ReplicationError) Error() string {
	return fmt.Sprintf("replicating %s to %s: %v", e.Source, e.Dest, e.Err)
}

func (e *ReplicationError) Unwrap() error { return e.Err }

// ShallowCopy replicates the single node at src to dest.
//
// info must be symlink-aware metadata for src (from os.Lstat or an
// equivalent). Ownership is taken from info unless overridden:
// uidOverride and gidOverride replace the source owner when >= 0.
// mode, when non-nil, is applied to the destination; symlinks never
// receive a mode regardless.
//
//   - Directories are created (an existing destination directory is
//     reused) and get mode and ownership applied.
//   - Regular files are copied byte-for-byte, then get mode and
//     ownership applied.
//   - Symlinks are recreated with the identical target, replacing any
//     existing destination node, and get ownership applied to the
//     link itself.
//
// Any other node type is an error. All failures are returned as a
// *ReplicationError.
func ShallowCopy(src string, info fs.FileInfo, dest string, uidOverride, gidOverride int, mode *fs.FileMode) error {
	if err := shallowCopy(src, info, dest, uidOverride, gidOverride, mode); err != nil {
		return &ReplicationError{Source: src, Dest: dest, Err: err}
	}
	return nil
}

func shallowCopy(src string, info fs.FileInfo, dest string, uidOverride, gidOverride int, mode *fs.FileMode) error {
	uid, gid := ownerOf(info)
	if uidOverride >= 0 {
		uid = uidOverride
	}
	if gidOverride >= 0 {
		gid = gidOverride
	}

	switch info.Mode().Type() {
	case fs.ModeDir:
		createMode := fs.FileMode(0o755)
		if mode != nil {
			createMode = *mode
		}
		if err := os.Mkdir(dest, createMode); err != nil && !errors.Is(err, fs.ErrExist) {
			return err
		}
		if mode != nil {
			// Mkdir's mode is filtered by the process umask; apply
			// the exact bits explicitly.
			if err := os.Chmod(dest, *mode); err != nil {
				return err
			}
		}
		return unix.Lchown(dest, uid, gid)

	case 0: // regular file
		if err := copyFileContent(src, dest); err != nil {
			return err
		}
		if mode != nil {
			if err := os.Chmod(dest, *mode); err != nil {
				return err
			}
		}
		return unix.Lchown(dest, uid, gid)

	case fs.ModeSymlink:
		target, err := os.Readlink(src)
		if err != nil {
			return err
		}
		if err := os.Remove(dest); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		if err := os.Symlink(target, dest); err != nil {
			return err
		}
		return unix.Lchown(dest, uid, gid)

	default:
		return fmt.Errorf("unsupported file type %v", info.Mode().Type())
	}
}

func copyFileContent(src, dest string) error {
	source, err := os.Open(src)
	if err != nil {
		return err
	}
	defer source.Close()

	destination, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	if _, err := io.Copy(destination, source); err != nil {
		destination.Close()
		return err
	}
	return destination.Close()
}

// Owner extracts the owning uid/gid from symlink-aware stat data.
// Build steps use it when hashing ownership fields; ShallowCopy uses
// it as the fallback when no override is given.
func Owner(info fs.FileInfo) (uid, gid int) {
	return ownerOf(info)
}

// ownerOf extracts the owning uid/gid from symlink-aware stat data.
func ownerOf(info fs.FileInfo) (uid, gid int) {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		// Non-POSIX FileInfo (synthetic fs.FS entries in tests);
		// fall back to the current process identity.
		return os.Getuid(), os.Getgid()
	}
	return int(stat.Uid), int(stat.Gid)
}
