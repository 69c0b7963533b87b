// Copyright 2026 The Vessel Authors
// SPDX-License-Identifier: Apache-2.0

package pathfilter

import (
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/vessel-build/vessel/lib/pathutil"
)

// Entry is one filesystem entry yielded by a walk.
type Entry struct {
	// Path is the entry's path including the walk root.
	Path string

	// Rel is the slash-separated path relative to the walk root.
	Rel string

	// Type holds the entry's type bits (fs.ModeDir, fs.ModeSymlink,
	// zero for regular files), as reported by the directory read
	// without following symlinks.
	Type fs.FileMode
}

// Issue is one traversal failure, tied to the path that caused it.
type Issue struct {
	Path string
	Err  error
}

// WalkError aggregates every traversal I/O failure encountered during
// a walk. The walk continues past unreadable directories so all
// issues can be reported at once.
type WalkError struct {
	Issues []Issue
}

func (e *WalkError) Error() string {
	if len(e.Issues) == 1 {
		return fmt.Sprintf("walking %s: %v", e.Issues[0].Path, e.Issues[0].Err)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d errors walking the tree:", len(e.Issues))
	for _, issue := range e.Issues {
		fmt.Fprintf(&sb, "\n  %s: %v", issue.Path, issue.Err)
	}
	return sb.String()
}

// Walk traverses the tree rooted at root and passes the visitor a
// sequence of entries that pass the filter. The root itself is not
// yielded. Entry order within the sequence is not part of the
// contract; consumers that need determinism sort (see
// [SortedRelPaths]).
//
// Traversal I/O failures do not stop the walk; they are collected and
// returned as a *WalkError, which takes precedence over the visitor's
// own error. A nil return means the tree was fully read and the
// visitor accepted it.
func (f *Filter) Walk(root string, visit func(iter.Seq[Entry]) error) error {
	var issues []Issue

	entries := func(yield func(Entry) bool) {
		f.walkDir(root, "", false, yield, &issues)
	}

	visitErr := visit(entries)
	if len(issues) > 0 {
		return &WalkError{Issues: issues}
	}
	return visitErr
}

// walkDir recursively walks one directory. Returns false when the
// consumer stopped the iteration.
func (f *Filter) walkDir(dir, relPrefix string, ancestorIncluded bool, yield func(Entry) bool, issues *[]Issue) bool {
	children, err := os.ReadDir(dir)
	if err != nil {
		*issues = append(*issues, Issue{Path: dir, Err: err})
		return true
	}

	for _, child := range children {
		rel := child.Name()
		if relPrefix != "" {
			rel = relPrefix + "/" + child.Name()
		}
		isDir := child.IsDir()

		keep, descend := f.decide(rel, isDir, ancestorIncluded)
		if keep {
			entry := Entry{
				Path: filepath.Join(dir, child.Name()),
				Rel:  rel,
				Type: child.Type(),
			}
			if !yield(entry) {
				return false
			}
		}
		if descend {
			// Once a directory is part of the result, its whole
			// subtree is (exclusions still apply).
			childIncluded := ancestorIncluded || (keep && f.hasIncl)
			if !f.walkDir(filepath.Join(dir, child.Name()), rel, childIncluded, yield, issues) {
				return false
			}
		}
	}
	return true
}

// SortedRelPaths runs the filter over the tree at root and returns
// every matching relative path plus all of its ancestor directories,
// ordered by path segment. Two processes filtering the same logical
// tree produce identical sequences regardless of directory-entry
// order on disk.
func SortedRelPaths(root string, f *Filter) ([]string, error) {
	var set pathutil.Set
	err := f.Walk(root, func(entries iter.Seq[Entry]) error {
		for entry := range entries {
			set.InsertWithParents(entry.Rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return set.Sorted(), nil
}
