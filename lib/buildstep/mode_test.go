// Copyright 2026 The Vessel Authors
// SPDX-License-Identifier: Apache-2.0

package buildstep

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func lstat(t *testing.T, path string) fs.FileInfo {
	t.Helper()
	info, err := os.Lstat(path)
	if err != nil {
		t.Fatalf("Lstat %s: %v", path, err)
	}
	return info
}

func TestComputeModePlainFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain")
	if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	mode, ok := ComputeMode(lstat(t, path), false, 0o022)
	if !ok {
		t.Fatal("ComputeMode should apply to regular files")
	}
	if mode != 0o644 {
		t.Errorf("mode = %o, want 644", mode)
	}
}

func TestComputeModeExecutableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tool")
	if err := os.WriteFile(path, []byte("#!/bin/sh"), 0o700); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	mode, ok := ComputeMode(lstat(t, path), false, 0o022)
	if !ok {
		t.Fatal("ComputeMode should apply to regular files")
	}
	if mode != 0o755 {
		t.Errorf("mode = %o, want 755", mode)
	}
}

func TestComputeModeDirectory(t *testing.T) {
	mode, ok := ComputeMode(lstat(t, t.TempDir()), false, 0o002)
	if !ok {
		t.Fatal("ComputeMode should apply to directories")
	}
	if mode != 0o775 {
		t.Errorf("mode = %o, want 775", mode)
	}
}

func TestComputeModeSymlink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "link")
	if err := os.Symlink("target", path); err != nil {
		t.Fatalf("Symlink: %v", err)
	}

	if _, ok := ComputeMode(lstat(t, path), false, 0o022); ok {
		t.Error("symlinks must never get a mode")
	}
	if _, ok := ComputeMode(lstat(t, path), true, 0o022); ok {
		t.Error("symlinks must never get a mode, even when preserving")
	}
}

func TestComputeModePreserve(t *testing.T) {
	path := filepath.Join(t.TempDir(), "odd")
	if err := os.WriteFile(path, []byte("x"), 0o531); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	// WriteFile's mode is clipped by the process umask; force the
	// intended bits.
	if err := os.Chmod(path, 0o531); err != nil {
		t.Fatalf("Chmod: %v", err)
	}

	// The umask is irrelevant when preserving.
	mode, ok := ComputeMode(lstat(t, path), true, 0o777)
	if !ok {
		t.Fatal("ComputeMode should apply to regular files")
	}
	if mode != 0o531 {
		t.Errorf("mode = %o, want the original 531", mode)
	}
}
