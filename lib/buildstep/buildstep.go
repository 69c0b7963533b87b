// Copyright 2026 The Vessel Authors
// SPDX-License-Identifier: Apache-2.0

package buildstep

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/vessel-build/vessel/lib/stepdigest"
)

// Default roots. The build pipeline bind-mounts the version-controlled
// source tree at the workspace root inside the build container; the
// target root is where the image filesystem is assembled.
const (
	DefaultWorkspaceRoot = "/work"
	DefaultTargetRoot    = "/vessel/root"
)

// Config carries the run-wide roots shared by every step of a build.
type Config struct {
	// WorkspaceRoot is the source tree whose content directly affects
	// fingerprints.
	WorkspaceRoot string

	// TargetRoot is the image root that Build materializes into. The
	// process root is switched here for the duration of each
	// materialization.
	TargetRoot string
}

// Guard represents one in-flight materialization run. The pipeline
// creates a single Guard per build and hands it to each step's Build
// in order; steps sharing a destination must never build concurrently.
type Guard struct {
	Config Config
}

// Step is one build-plan entry. Constructed once from validated
// configuration; Hash is called during cache-key computation
// (read-only, any number of times), Build at most once and only when
// the cache lookup missed.
type Step interface {
	// Name is the stable step-kind identifier used in diagnostics
	// and cache-key namespacing.
	Name() string

	// Hash feeds the step's fingerprint fields into the digest.
	// Returns ErrNoPreviousVersion when the hashed path does not
	// exist.
	Hash(cfg *Config, d *stepdigest.Digest) error

	// Build materializes the step's effect into the target root.
	// When shouldBuild is false the cache decided no rebuild is
	// necessary and Build performs no filesystem writes.
	Build(guard *Guard, shouldBuild bool) error

	// DependentOn names another step this one must follow, when any.
	DependentOn() (string, bool)
}

// ErrNoPreviousVersion signals that a hashed path does not exist:
// there is no meaningful previous fingerprint for the pipeline to
// compare against. Distinct from hashing failures.
var ErrNoPreviousVersion = errors.New("no previous version")

// VersionError is an I/O failure during fingerprint computation,
// carrying the path that caused it.
type VersionError struct {
	Path string
	Err  error
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("hashing %s: %v", e.Path, e.Err)
}

func (e *VersionError) Unwrap() error { return e.Err }

// isUnder reports whether path lies at or below root. Both must be
// absolute and clean; a prefix match alone is not enough ("/workload"
// is not under "/work").
func isUnder(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, "../"))
}
