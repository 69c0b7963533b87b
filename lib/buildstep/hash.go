// Copyright 2026 The Vessel Authors
// SPDX-License-Identifier: Apache-2.0

package buildstep

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/vessel-build/vessel/lib/pathfilter"
	"github.com/vessel-build/vessel/lib/stepdigest"
)

// entryHashFunc feeds the fields of one filesystem entry into the
// digest. The set and order of fields is fixed per step kind — it is
// never derived from the metadata itself, so unrelated stat changes
// cannot silently alter fingerprints.
type entryHashFunc func(d *stepdigest.Digest, path string, info fs.FileInfo) error

// hashTree hashes the node at root and, when it is a directory, every
// filtered descendant in sorted ancestor-inclusive order. A missing
// root yields ErrNoPreviousVersion.
func hashTree(d *stepdigest.Digest, root string, filter *pathfilter.Filter, hashEntry entryHashFunc) error {
	info, err := os.Lstat(root)
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNoPreviousVersion
	}
	if err != nil {
		return &VersionError{Path: root, Err: err}
	}

	if !info.IsDir() {
		return hashEntry(d, root, info)
	}

	if err := hashEntry(d, root, info); err != nil {
		return err
	}
	relPaths, err := pathfilter.SortedRelPaths(root, filter)
	if err != nil {
		return err
	}
	for _, rel := range relPaths {
		path := filepath.Join(root, rel)
		// Entries can disappear between the walk and this stat; that
		// is a hard error, not a fresh signal — the root existed.
		entryInfo, err := os.Lstat(path)
		if err != nil {
			return &VersionError{Path: path, Err: err}
		}
		if err := hashEntry(d, path, entryInfo); err != nil {
			return err
		}
	}
	return nil
}

// hashContent feeds the entry's content: file bytes for regular
// files, the link target for symlinks, nothing for any other type.
func hashContent(d *stepdigest.Digest, path string, info fs.FileInfo) error {
	switch info.Mode().Type() {
	case 0: // regular file
		file, err := os.Open(path)
		if err != nil {
			return &VersionError{Path: path, Err: err}
		}
		defer file.Close()
		if err := d.File(path, file); err != nil {
			return &VersionError{Path: path, Err: err}
		}
	case fs.ModeSymlink:
		target, err := os.Readlink(path)
		if err != nil {
			return &VersionError{Path: path, Err: err}
		}
		d.Field("symlink", target)
	}
	return nil
}
