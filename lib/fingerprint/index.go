// Copyright 2026 The Vessel Authors
// SPDX-License-Identifier: Apache-2.0

// Package fingerprint stores recorded build-step fingerprints on
// disk. The index is the pipeline-side mapping from step name to the
// fingerprint of its last materialized build — the hashing core
// itself stays a pure function and never touches this file.
//
// The index is a single CBOR blob (lib/codec deterministic encoding)
// written via temp-file-plus-rename, so readers never observe a
// partially written index and identical logical content always
// produces identical bytes.
package fingerprint

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/vessel-build/vessel/lib/codec"
	"github.com/vessel-build/vessel/lib/stepdigest"
)

// Record is one step's recorded fingerprint.
type Record struct {
	Fingerprint stepdigest.Fingerprint `cbor:"fingerprint"`
	RecordedAt  time.Time              `cbor:"recorded_at"`
}

// Index maps step names to their recorded fingerprints. Not safe for
// concurrent use; the pipeline serializes builds per target anyway.
type Index struct {
	path    string
	entries map[string]Record
}

// Load opens the index at path. A missing file yields an empty index:
// every step then reads as changed, which is the correct cold-start
// behavior.
func Load(path string) (*Index, error) {
	index := &Index{
		path:    path,
		entries: make(map[string]Record),
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return index, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading fingerprint index %s: %w", path, err)
	}
	if err := codec.Unmarshal(data, &index.entries); err != nil {
		return nil, fmt.Errorf("decoding fingerprint index %s: %w", path, err)
	}
	return index, nil
}

// Get returns the recorded fingerprint for a step name.
func (x *Index) Get(step string) (Record, bool) {
	record, exists := x.entries[step]
	return record, exists
}

// Changed reports whether the given fingerprint differs from the
// recorded one. An unrecorded step is always changed.
func (x *Index) Changed(step string, fp stepdigest.Fingerprint) bool {
	record, exists := x.entries[step]
	return !exists || record.Fingerprint != fp
}

// Record stores a fingerprint for a step name, stamped with now.
// The change is in-memory until Save.
func (x *Index) Record(step string, fp stepdigest.Fingerprint, now time.Time) {
	x.entries[step] = Record{Fingerprint: fp, RecordedAt: now}
}

// Save writes the index atomically: encode, write to a temp file in
// the same directory, fsync, rename over the target.
func (x *Index) Save() error {
	data, err := codec.Marshal(x.entries)
	if err != nil {
		return fmt.Errorf("encoding fingerprint index: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(x.path), 0o755); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(x.path), ".index-*")
	if err != nil {
		return fmt.Errorf("creating temp index file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, x.path); err != nil {
		return fmt.Errorf("renaming index into place: %w", err)
	}
	return nil
}
