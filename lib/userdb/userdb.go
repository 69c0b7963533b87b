// Copyright 2026 The Vessel Authors
// SPDX-License-Identifier: Apache-2.0

// Package userdb is the narrow user-database capability used for
// diagnostics. Build-step hashing and replication work on raw numeric
// uids/gids; the only consumer of names is CLI output, which is why
// the lookup is best-effort and never an error.
package userdb

import (
	"os/user"
	"strconv"
)

// LookupUser resolves a numeric uid to a username. Returns false when
// the uid has no entry in the user database — common inside build
// containers, and never a failure condition for the caller.
func LookupUser(uid int) (string, bool) {
	entry, err := user.LookupId(strconv.Itoa(uid))
	if err != nil {
		return "", false
	}
	return entry.Username, true
}

// LookupGroup resolves a numeric gid to a group name, with the same
// best-effort contract as LookupUser.
func LookupGroup(gid int) (string, bool) {
	entry, err := user.LookupGroupId(strconv.Itoa(gid))
	if err != nil {
		return "", false
	}
	return entry.Name, true
}
