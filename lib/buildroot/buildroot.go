// Copyright 2026 The Vessel Authors
// SPDX-License-Identifier: Apache-2.0

// Package buildroot temporarily switches the process's filesystem
// root while a closure runs. Build-step materialization uses this so
// destination paths in step configuration ("/usr/src/app") resolve
// inside the image root being assembled rather than on the host.
//
// The switch is process-global state. [WithRoot] is therefore an
// exclusive, non-nestable critical section: concurrent calls
// serialize on a package-level mutex, and calling WithRoot from
// inside the closure deadlocks. The previous root is restored on
// every exit path, including panics in the closure.
package buildroot

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// mu serializes all root switches in the process. Held for the whole
// closure, so no other filesystem operation in this process should
// assume the host root while a WithRoot call is in flight.
var mu sync.Mutex

// WithRoot runs fn with the process root switched to path, then
// restores the previous root. Requires CAP_SYS_CHROOT (the build
// pipeline runs materialization inside a user namespace where it
// holds it).
//
// The closure's error is returned as-is. A failure to restore the
// previous root is joined with it — a process with a leaked root is
// not safe to continue, and callers are expected to treat any error
// from WithRoot as fatal to the step.
func WithRoot(path string, fn func() error) error {
	mu.Lock()
	defer mu.Unlock()

	previousRoot, err := os.Open("/")
	if err != nil {
		return fmt.Errorf("opening current root: %w", err)
	}
	defer previousRoot.Close()

	if err := unix.Chroot(path); err != nil {
		return fmt.Errorf("entering root %s: %w", path, err)
	}

	restored := false
	restore := func() error {
		if restored {
			return nil
		}
		restored = true
		if err := unix.Fchdir(int(previousRoot.Fd())); err != nil {
			return fmt.Errorf("returning to previous root: %w", err)
		}
		if err := unix.Chroot("."); err != nil {
			return fmt.Errorf("restoring previous root: %w", err)
		}
		return nil
	}
	// Restore on panic; the deferred call is a no-op when the normal
	// path already ran it.
	defer restore()

	if err := os.Chdir("/"); err != nil {
		return errors.Join(fmt.Errorf("entering root %s: %w", path, err), restore())
	}

	fnErr := fn()
	if restoreErr := restore(); restoreErr != nil {
		return errors.Join(fnErr, restoreErr)
	}
	return fnErr
}
