// Copyright 2026 The Vessel Authors
// SPDX-License-Identifier: Apache-2.0

// Package pathutil provides relative-path helpers used by the filter
// and build-step packages: ancestor enumeration, segment-wise path
// ordering, and an ordered duplicate-free path set.
//
// All functions operate on clean, slash-separated paths relative to
// some root ("a/b/c", never "/a/b/c" or "a//b"). Callers are expected
// to produce such paths via filepath.Rel before handing them over.
package pathutil

import (
	"slices"
	"strings"
)

// SelfAndParents returns the path itself followed by every ancestor,
// innermost first, stopping before the root. For "a/b/c" it returns
// ["a/b/c", "a/b", "a"]. The root itself ("." or "") yields nil.
func SelfAndParents(rel string) []string {
	if rel == "" || rel == "." {
		return nil
	}

	var paths []string
	for current := rel; current != ""; {
		paths = append(paths, current)
		slash := strings.LastIndexByte(current, '/')
		if slash < 0 {
			break
		}
		current = current[:slash]
	}
	return paths
}

// Compare orders two relative paths segment-wise: "a/b" sorts before
// "a+b" even though '+' < '/' byte-wise, because the first segment "a"
// is a strict prefix of "a+b". This matches ordering a path by its
// component list and guarantees that a directory always sorts
// immediately before its contents.
func Compare(a, b string) int {
	for {
		aSeg, aRest, aMore := strings.Cut(a, "/")
		bSeg, bRest, bMore := strings.Cut(b, "/")
		if c := strings.Compare(aSeg, bSeg); c != 0 {
			return c
		}
		switch {
		case !aMore && !bMore:
			return 0
		case !aMore:
			return -1
		case !bMore:
			return 1
		}
		a, b = aRest, bRest
	}
}

// Set is an ordered, duplicate-free collection of relative paths.
// The zero value is ready to use.
type Set struct {
	members map[string]struct{}
}

// Insert adds a path to the set. Returns false if it was already
// present.
func (s *Set) Insert(rel string) bool {
	if s.members == nil {
		s.members = make(map[string]struct{})
	}
	if _, exists := s.members[rel]; exists {
		return false
	}
	s.members[rel] = struct{}{}
	return true
}

// InsertWithParents adds a path and every one of its ancestors.
func (s *Set) InsertWithParents(rel string) {
	for _, p := range SelfAndParents(rel) {
		if !s.Insert(p) {
			// Ancestors of an already-present path are present too.
			return
		}
	}
}

// Contains reports whether the path is in the set.
func (s *Set) Contains(rel string) bool {
	_, exists := s.members[rel]
	return exists
}

// Len returns the number of paths in the set.
func (s *Set) Len() int { return len(s.members) }

// Sorted returns all paths ordered by Compare. The result is a fresh
// slice; mutating it does not affect the set.
func (s *Set) Sorted() []string {
	paths := make([]string, 0, len(s.members))
	for p := range s.members {
		paths = append(paths, p)
	}
	slices.SortFunc(paths, Compare)
	return paths
}
