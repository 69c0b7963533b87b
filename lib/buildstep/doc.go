// Copyright 2026 The Vessel Authors
// SPDX-License-Identifier: Apache-2.0

// Package buildstep implements Vessel's build-step variants: the
// fingerprint computation that drives cache decisions and the
// filesystem materialization that runs on a cache miss.
//
// A [Step] has two independent operations. Hash feeds a fixed,
// step-kind-specific sequence of fields into a [stepdigest.Digest]
// over a sorted traversal of the filtered source tree — it never
// mutates anything. Build replicates files into the image root being
// assembled — it never computes a hash. The two passes over the
// filesystem are deliberately separate.
//
// Two step kinds are implemented:
//
//   - [Depends] declares workspace files that affect the cache key
//     without producing any filesystem change. Only content and the
//     executable bit are hashed, never full mode bits, because full
//     mode varies with the host umask and would break fingerprint
//     reproducibility across machines.
//
//   - [Copy] replicates a source path into the image root. Sources
//     inside the build workspace are hashed by content; sources
//     outside it (outputs of earlier, already-versioned steps) are
//     hashed by parameters only, since their content would require a
//     materialized image root to read and is already covered by the
//     producing step's fingerprint.
//
// Hashing a path that does not exist yields [ErrNoPreviousVersion]
// rather than an I/O error: it tells the pipeline "there is no prior
// fingerprint to compare against", which is a cache decision, not a
// failure.
package buildstep
