// Copyright 2026 The Vessel Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts wall-clock time for testability. Production
// code injects [Real]; tests inject [Fake] and control time
// explicitly. Vessel uses the clock for step timing and for the
// recorded-at stamps in the fingerprint index — never for hashing,
// which must stay a pure function of tree and configuration.
package clock

import (
	"sync"
	"time"
)

// Clock provides the current time. Production functions that need
// time.Now accept a Clock (or sit on a struct with a Clock field)
// instead of calling the time package directly.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
}

// Real returns a Clock backed by the standard time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Fake returns a FakeClock initialized to the given time. Time stands
// still until Advance is called. Safe for concurrent use.
func Fake(initial time.Time) *FakeClock {
	return &FakeClock{current: initial}
}

// FakeClock is a deterministic Clock for testing.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Advance moves the fake time forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
}
