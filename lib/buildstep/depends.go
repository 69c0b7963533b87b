// Copyright 2026 The Vessel Authors
// SPDX-License-Identifier: Apache-2.0

package buildstep

import (
	"io/fs"
	"path/filepath"

	"github.com/vessel-build/vessel/lib/pathfilter"
	"github.com/vessel-build/vessel/lib/stepdigest"
)

// Depends declares files inside the build workspace that affect this
// build's cache key without producing any filesystem change. Its only
// effect is on the fingerprint.
type Depends struct {
	// Path is relative to the workspace root.
	Path string

	// Filter selects which entries under Path participate.
	Filter pathfilter.RuleSet
}

// Name implements Step.
func (s *Depends) Name() string { return "Depends" }

// Hash feeds, per entry in sorted order: the filename, the executable
// bit (plain files only — full mode bits depend on the host umask and
// would make the fingerprint machine-specific), then the content.
func (s *Depends) Hash(cfg *Config, d *stepdigest.Digest) error {
	filter, err := pathfilter.Compile(s.Filter)
	if err != nil {
		return err
	}

	root := filepath.Join(cfg.WorkspaceRoot, s.Path)
	return hashTree(d, root, filter, func(d *stepdigest.Digest, path string, info fs.FileInfo) error {
		d.Field("filename", path)
		if info.Mode().IsRegular() {
			d.Bool("is_executable", isExecutable(info))
		}
		return hashContent(d, path, info)
	})
}

// Build implements Step. Always a no-op: Depends changes nothing.
func (s *Depends) Build(guard *Guard, shouldBuild bool) error {
	return nil
}

// DependentOn implements Step.
func (s *Depends) DependentOn() (string, bool) { return "", false }
