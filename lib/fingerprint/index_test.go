// Copyright 2026 The Vessel Authors
// SPDX-License-Identifier: Apache-2.0

package fingerprint

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vessel-build/vessel/lib/stepdigest"
)

func fingerprintOf(t *testing.T, field string) stepdigest.Fingerprint {
	t.Helper()
	d := stepdigest.New()
	d.Field("filename", field)
	return d.Sum()
}

func TestLoadMissingIsEmpty(t *testing.T) {
	index, err := Load(filepath.Join(t.TempDir(), "absent.cbor"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, exists := index.Get("any"); exists {
		t.Error("empty index should have no records")
	}
	if !index.Changed("any", fingerprintOf(t, "x")) {
		t.Error("unrecorded step should read as changed")
	}
}

func TestRecordSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.cbor")
	stamp := time.Date(2026, 2, 13, 8, 0, 0, 0, time.UTC)
	fp := fingerprintOf(t, "src/main.go")

	index, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	index.Record("copy-sources", fp, stamp)
	if err := index.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	record, exists := reloaded.Get("copy-sources")
	if !exists {
		t.Fatal("record missing after reload")
	}
	if record.Fingerprint != fp {
		t.Errorf("fingerprint = %x, want %x", record.Fingerprint, fp)
	}
	if !record.RecordedAt.Equal(stamp) {
		t.Errorf("recorded at = %v, want %v", record.RecordedAt, stamp)
	}
	if reloaded.Changed("copy-sources", fp) {
		t.Error("matching fingerprint should read as unchanged")
	}
	if !reloaded.Changed("copy-sources", fingerprintOf(t, "other")) {
		t.Error("different fingerprint should read as changed")
	}
}

func TestSaveDeterministicBytes(t *testing.T) {
	stamp := time.Date(2026, 2, 13, 8, 0, 0, 0, time.UTC)
	write := func(path string) []byte {
		index, err := Load(path)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		index.Record("b-step", fingerprintOf(t, "b"), stamp)
		index.Record("a-step", fingerprintOf(t, "a"), stamp)
		if err := index.Save(); err != nil {
			t.Fatalf("Save: %v", err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("ReadFile: %v", err)
		}
		return data
	}

	first := write(filepath.Join(t.TempDir(), "one.cbor"))
	second := write(filepath.Join(t.TempDir(), "two.cbor"))
	if string(first) != string(second) {
		t.Error("identical logical indexes produced different bytes")
	}
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.cbor")

	index, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	index.Record("s", fingerprintOf(t, "s"), time.Now())
	if err := index.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "index.cbor" {
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Name()
		}
		t.Errorf("directory contents = %v, want only index.cbor", names)
	}
}
