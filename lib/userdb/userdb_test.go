// Copyright 2026 The Vessel Authors
// SPDX-License-Identifier: Apache-2.0

package userdb

import (
	"os"
	"testing"
)

func TestLookupCurrentUser(t *testing.T) {
	name, ok := LookupUser(os.Getuid())
	if !ok {
		t.Skip("current uid has no passwd entry (minimal container)")
	}
	if name == "" {
		t.Error("LookupUser returned ok with an empty name")
	}
}

func TestLookupUnknownUser(t *testing.T) {
	// Uid far outside any sane allocation range.
	if name, ok := LookupUser(1<<31 - 7); ok {
		t.Errorf("LookupUser(unknown) = %q, true; want false", name)
	}
}
