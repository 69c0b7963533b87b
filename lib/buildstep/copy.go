// Copyright 2026 The Vessel Authors
// SPDX-License-Identifier: Apache-2.0

package buildstep

import (
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"

	"github.com/vessel-build/vessel/lib/buildroot"
	"github.com/vessel-build/vessel/lib/fsutil"
	"github.com/vessel-build/vessel/lib/pathfilter"
	"github.com/vessel-build/vessel/lib/pathutil"
	"github.com/vessel-build/vessel/lib/stepdigest"
)

// Copy replicates a source path into the image root at a destination
// path, with ownership and permission overrides.
type Copy struct {
	// Source is the absolute path to copy from. Inside the workspace
	// it is hashed by content; outside it, by parameters only.
	Source string

	// Path is the absolute destination inside the target root.
	Path string

	// OwnerUID and OwnerGID override the replicated nodes' owner.
	// Nil keeps each source node's own uid/gid.
	OwnerUID *int
	OwnerGID *int

	// Umask clears permission bits when permissions are not
	// preserved. Validated to 0o777 or less.
	Umask fs.FileMode

	// PreservePermissions copies source mode bits verbatim instead
	// of normalizing them through the umask.
	PreservePermissions bool

	// Filter selects which entries of a directory source participate
	// in both hashing and replication.
	Filter pathfilter.RuleSet
}

// Name implements Step.
func (s *Copy) Name() string { return "Copy" }

// Hash implements Step.
//
// For a workspace-internal source the filtered tree is hashed: per
// entry, the filename, the computed replication mode (absent for
// symlinks), the effective uid and gid (override or original), and
// the content; then the destination path. Note that original uid/gid
// values are machine-specific — a pipeline that needs fingerprints to
// agree across hosts sets explicit owner overrides.
//
// A source outside the workspace is the output of an earlier,
// already-versioned step: its content is not re-read (that would need
// a materialized image root) — only the step parameters are hashed.
func (s *Copy) Hash(cfg *Config, d *stepdigest.Digest) error {
	if isUnder(cfg.WorkspaceRoot, s.Source) {
		filter, err := pathfilter.Compile(s.Filter)
		if err != nil {
			return err
		}
		err = hashTree(d, s.Source, filter, func(d *stepdigest.Digest, path string, info fs.FileInfo) error {
			d.Field("filename", path)
			mode, hasMode := ComputeMode(info, s.PreservePermissions, s.Umask)
			d.OptUint32("mode", uint32(mode), hasMode)
			uid, gid := s.effectiveOwner(info)
			d.Uint32("uid", uint32(uid))
			d.Uint32("gid", uint32(gid))
			return hashContent(d, path, info)
		})
		if err != nil {
			return err
		}
		d.Field("path", s.Path)
		return nil
	}

	d.Field("source", s.Source)
	d.Field("path", s.Path)
	d.Bool("preserve_permissions", s.PreservePermissions)
	if !s.PreservePermissions {
		d.OptUint32("owner_uid", uint32OrZero(s.OwnerUID), s.OwnerUID != nil)
		d.OptUint32("owner_gid", uint32OrZero(s.OwnerGID), s.OwnerGID != nil)
		d.Uint32("umask", uint32(s.Umask))
	}
	return nil
}

// Build implements Step. With shouldBuild false it performs zero
// filesystem writes. Otherwise it replicates the source into the
// destination inside the target root, with the whole replication
// running under the switched process root.
func (s *Copy) Build(guard *Guard, shouldBuild bool) error {
	if !shouldBuild {
		return nil
	}
	return buildroot.WithRoot(guard.Config.TargetRoot, func() error {
		return s.replicate()
	})
}

// DependentOn implements Step.
func (s *Copy) DependentOn() (string, bool) { return "", false }

// replicate copies the source node and, for directories, every
// filtered descendant from shallowest to deepest. Runs with the
// process root already switched to the target root.
func (s *Copy) replicate() error {
	info, err := os.Lstat(s.Source)
	if err != nil {
		return fmt.Errorf("reading %s: %w", s.Source, err)
	}

	if err := s.replicateNode(s.Source, info, s.Path); err != nil {
		return err
	}
	if !info.IsDir() {
		return nil
	}

	filter, err := pathfilter.Compile(s.Filter)
	if err != nil {
		return err
	}

	// Matched entries share ancestors; the visited set keeps each
	// node replicated once per invocation.
	var visited pathutil.Set
	return filter.Walk(s.Source, func(entries iter.Seq[pathfilter.Entry]) error {
		for entry := range entries {
			var pending []string
			for _, rel := range pathutil.SelfAndParents(entry.Rel) {
				if visited.Contains(rel) {
					break
				}
				pending = append(pending, rel)
			}
			// Shallowest first: a parent directory must exist at the
			// destination before its children are replicated.
			for i := len(pending) - 1; i >= 0; i-- {
				rel := pending[i]
				nodeSrc := filepath.Join(s.Source, rel)
				nodeInfo, err := os.Lstat(nodeSrc)
				if err != nil {
					return fmt.Errorf("reading %s: %w", nodeSrc, err)
				}
				if err := s.replicateNode(nodeSrc, nodeInfo, filepath.Join(s.Path, rel)); err != nil {
					return err
				}
				visited.Insert(rel)
			}
		}
		return nil
	})
}

func (s *Copy) replicateNode(src string, info fs.FileInfo, dest string) error {
	var modePtr *fs.FileMode
	if mode, hasMode := ComputeMode(info, s.PreservePermissions, s.Umask); hasMode {
		modePtr = &mode
	}
	uidOverride, gidOverride := -1, -1
	if s.OwnerUID != nil {
		uidOverride = *s.OwnerUID
	}
	if s.OwnerGID != nil {
		gidOverride = *s.OwnerGID
	}
	return fsutil.ShallowCopy(src, info, dest, uidOverride, gidOverride, modePtr)
}

// effectiveOwner is the uid/gid that replication would apply:
// the configured override, or the node's own owner.
func (s *Copy) effectiveOwner(info fs.FileInfo) (uid, gid int) {
	uid, gid = fsutil.Owner(info)
	if s.OwnerUID != nil {
		uid = *s.OwnerUID
	}
	if s.OwnerGID != nil {
		gid = *s.OwnerGID
	}
	return uid, gid
}

func uint32OrZero(v *int) uint32 {
	if v == nil {
		return 0
	}
	return uint32(*v)
}
