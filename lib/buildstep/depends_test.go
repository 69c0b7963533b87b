// Copyright 2026 The Vessel Authors
// SPDX-License-Identifier: Apache-2.0

package buildstep

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/vessel-build/vessel/lib/pathfilter"
	"github.com/vessel-build/vessel/lib/stepdigest"
)

func hashStep(t *testing.T, s Step, cfg *Config) stepdigest.Fingerprint {
	t.Helper()
	d := stepdigest.New()
	if err := s.Hash(cfg, d); err != nil {
		t.Fatalf("%s.Hash: %v", s.Name(), err)
	}
	return d.Sum()
}

func writeWorkspaceFile(t *testing.T, workspace, rel, content string, mode os.FileMode) {
	t.Helper()
	path := filepath.Join(workspace, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), mode); err != nil {
		t.Fatalf("WriteFile %s: %v", rel, err)
	}
}

func TestDependsHashDeterministic(t *testing.T) {
	workspace := t.TempDir()
	writeWorkspaceFile(t, workspace, "src/a.txt", "alpha", 0o644)
	writeWorkspaceFile(t, workspace, "src/b/c.txt", "gamma", 0o644)

	cfg := &Config{WorkspaceRoot: workspace}
	step := &Depends{Path: "src"}

	if hashStep(t, step, cfg) != hashStep(t, step, cfg) {
		t.Error("two runs over an identical tree produced different fingerprints")
	}
}

func TestDependsHashIgnoresCreationOrder(t *testing.T) {
	cfg := func(workspace string) *Config { return &Config{WorkspaceRoot: workspace} }

	first := t.TempDir()
	writeWorkspaceFile(t, first, "src/a.txt", "alpha", 0o644)
	writeWorkspaceFile(t, first, "src/z.txt", "omega", 0o644)

	second := t.TempDir()
	writeWorkspaceFile(t, second, "src/z.txt", "omega", 0o644)
	writeWorkspaceFile(t, second, "src/a.txt", "alpha", 0o644)

	step := &Depends{Path: "src"}
	if hashStep(t, step, cfg(first)) != hashStep(t, step, cfg(second)) {
		t.Error("physical creation order changed the fingerprint")
	}
}

func TestDependsHashContentSensitive(t *testing.T) {
	workspace := t.TempDir()
	writeWorkspaceFile(t, workspace, "src/a.txt", "alpha", 0o644)
	cfg := &Config{WorkspaceRoot: workspace}
	step := &Depends{Path: "src"}
	before := hashStep(t, step, cfg)

	writeWorkspaceFile(t, workspace, "src/a.txt", "alpha!", 0o644)
	if before == hashStep(t, step, cfg) {
		t.Error("content change did not change the fingerprint")
	}
}

func TestDependsHashExecutableBitOnly(t *testing.T) {
	cfg := func(workspace string) *Config { return &Config{WorkspaceRoot: workspace} }
	step := &Depends{Path: "src"}

	// Identical content, modes differing only in a non-executable bit.
	first := t.TempDir()
	writeWorkspaceFile(t, first, "src/f", "same", 0o644)
	second := t.TempDir()
	writeWorkspaceFile(t, second, "src/f", "same", 0o640)

	if hashStep(t, step, cfg(first)) != hashStep(t, step, cfg(second)) {
		t.Error("group-read bit changed the fingerprint; only the executable bit should matter")
	}

	// Same content, differing executable bit.
	third := t.TempDir()
	writeWorkspaceFile(t, third, "src/f", "same", 0o744)

	if hashStep(t, step, cfg(first)) == hashStep(t, step, cfg(third)) {
		t.Error("executable bit should change the fingerprint")
	}
}

func TestDependsHashSymlinkTarget(t *testing.T) {
	cfg := func(workspace string) *Config { return &Config{WorkspaceRoot: workspace} }
	step := &Depends{Path: "src"}

	first := t.TempDir()
	writeWorkspaceFile(t, first, "src/real.txt", "data", 0o644)
	if err := os.Symlink("real.txt", filepath.Join(first, "src/link")); err != nil {
		t.Fatalf("Symlink: %v", err)
	}

	second := t.TempDir()
	writeWorkspaceFile(t, second, "src/real.txt", "data", 0o644)
	if err := os.Symlink("other.txt", filepath.Join(second, "src/link")); err != nil {
		t.Fatalf("Symlink: %v", err)
	}

	if hashStep(t, step, cfg(first)) == hashStep(t, step, cfg(second)) {
		t.Error("symlink target should affect the fingerprint")
	}
}

func TestDependsHashDefaultIgnores(t *testing.T) {
	workspace := t.TempDir()
	writeWorkspaceFile(t, workspace, "src/keep.txt", "kept", 0o644)
	cfg := &Config{WorkspaceRoot: workspace}
	step := &Depends{Path: "src"}
	before := hashStep(t, step, cfg)

	// VCS metadata and editor artifacts are excluded by default.
	writeWorkspaceFile(t, workspace, "src/.git/HEAD", "ref: main", 0o644)
	writeWorkspaceFile(t, workspace, "src/keep.txt.bak", "junk", 0o644)

	if before != hashStep(t, step, cfg) {
		t.Error("default-ignored files changed the fingerprint")
	}
}

func TestDependsHashMissingPathIsFresh(t *testing.T) {
	cfg := &Config{WorkspaceRoot: t.TempDir()}
	step := &Depends{Path: "does-not-exist"}

	d := stepdigest.New()
	err := step.Hash(cfg, d)
	if !errors.Is(err, ErrNoPreviousVersion) {
		t.Fatalf("Hash = %v, want ErrNoPreviousVersion", err)
	}
}

func TestDependsHashSingleFile(t *testing.T) {
	workspace := t.TempDir()
	writeWorkspaceFile(t, workspace, "vessel.yaml", "steps: []", 0o644)
	cfg := &Config{WorkspaceRoot: workspace}
	step := &Depends{Path: "vessel.yaml"}

	if hashStep(t, step, cfg) != hashStep(t, step, cfg) {
		t.Error("single-file hashing should be deterministic")
	}
}

func TestDependsHashRejectsMixedFilterForms(t *testing.T) {
	cfg := &Config{WorkspaceRoot: t.TempDir()}
	step := &Depends{
		Path: "src",
		Filter: pathfilter.RuleSet{
			Rules:       []string{"!*.bak"},
			IgnoreRegex: `\.git`,
		},
	}

	d := stepdigest.New()
	if err := step.Hash(cfg, d); err == nil {
		t.Fatal("Hash should fail on a contradictory rule set")
	}
}

func TestDependsBuildIsNoOp(t *testing.T) {
	step := &Depends{Path: "src"}
	guard := &Guard{Config: Config{TargetRoot: t.TempDir()}}

	if err := step.Build(guard, true); err != nil {
		t.Errorf("Build(true) = %v, want nil", err)
	}
	if err := step.Build(guard, false); err != nil {
		t.Errorf("Build(false) = %v, want nil", err)
	}
}

func TestDependsNotDependent(t *testing.T) {
	step := &Depends{Path: "src"}
	if name, ok := step.DependentOn(); ok {
		t.Errorf("DependentOn = %q, true; want none", name)
	}
}
