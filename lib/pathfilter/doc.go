// Copyright 2026 The Vessel Authors
// SPDX-License-Identifier: Apache-2.0

// Package pathfilter decides which entries of a directory tree
// participate in a build step.
//
// A filter is compiled from one of two mutually exclusive rule forms:
//
//   - Glob rules: an ordered list of strings, each either an exclusion
//     ("!pattern", matched gitignore-style) or an anchored inclusion
//     ("/path/pattern"). Relative rules are only allowed for
//     exclusions. Unless suppressed, nine built-in exclusions for VCS
//     directories and editor artifacts are prepended.
//
//   - Regex rules: an ignore expression (defaulted to the built-in
//     ignore pattern when absent) and an optional include expression.
//     Both are matched against the slash-separated path relative to
//     the walk root.
//
// Combining the two forms is a configuration error, reported before
// any filesystem access.
//
// [Filter.Walk] streams matching entries to a visitor. Traversal I/O
// failures (unreadable directories, broken stats) are collected into a
// [*WalkError] so the caller can distinguish "could not read the tree"
// from the visitor's own rejection. Traversal order is not part of the
// contract; consumers needing determinism use [SortedRelPaths], which
// also guarantees that every ancestor directory of a matched path is
// present in the result.
package pathfilter
