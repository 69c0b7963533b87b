// Copyright 2026 The Vessel Authors
// SPDX-License-Identifier: Apache-2.0

// Package stepdigest computes deterministic build-step fingerprints.
//
// A [Digest] is a streaming BLAKE3 sink exposing typed field
// operations. Each build-step kind feeds a fixed set of fields in a
// fixed order for every entry of a sorted tree traversal, so two runs
// over identical trees and identical configuration always produce
// identical fingerprints regardless of directory-entry order on disk.
//
// Fields are framed on the wire: the field name and value are each
// length-prefixed and the value carries a type tag. Shifting bytes
// between a name and a value, or between adjacent fields, therefore
// always changes the fingerprint — the encoding is injective, not
// merely a concatenation of raw bytes.
//
// Hashing uses BLAKE3 keyed mode with a fixed step domain key, so
// step fingerprints can never collide with content hashes computed
// elsewhere with plain BLAKE3.
package stepdigest

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/zeebo/blake3"
)

// Fingerprint is a 32-byte BLAKE3 digest of one build step.
type Fingerprint [32]byte

// stepDomainKey is the BLAKE3 key for step fingerprints. A fixed
// constant — changing it invalidates every recorded fingerprint. The
// bytes are the ASCII domain name zero-padded to 32 bytes, keeping
// the key readable in hex dumps.
var stepDomainKey = [32]byte{
	'v', 'e', 's', 's', 'e', 'l', '.', 's', 't', 'e', 'p', '.',
	'f', 'i', 'n', 'g', 'e', 'r', 'p', 'r', 'i', 'n', 't', 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// Value type tags. Part of the wire framing; never reorder or reuse.
const (
	tagString byte = 1
	tagBool   byte = 2
	tagUint32 byte = 3
	tagFile   byte = 4
	tagAbsent byte = 5
)

// Digest accumulates one build-step fingerprint. Create with [New],
// feed fields in the step's fixed order, then call [Digest.Sum]. Not
// safe for concurrent use; a Digest lives for exactly one hash
// computation.
type Digest struct {
	hasher  *blake3.Hasher
	scratch [binary.MaxVarintLen64]byte
}

// New returns an empty Digest.
func New() *Digest {
	hasher, err := blake3.NewKeyed(stepDomainKey[:])
	if err != nil {
		// NewKeyed only fails for wrong key length, which the
		// fixed-size array rules out.
		panic("stepdigest: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	return &Digest{hasher: hasher}
}

// Field feeds a named string field.
func (d *Digest) Field(name, value string) {
	d.writeName(name)
	d.hasher.Write([]byte{tagString})
	d.writeUvarint(uint64(len(value)))
	d.hasher.Write([]byte(value))
}

// Bool feeds a named boolean field.
func (d *Digest) Bool(name string, value bool) {
	d.writeName(name)
	encoded := byte(0)
	if value {
		encoded = 1
	}
	d.hasher.Write([]byte{tagBool, encoded})
}

// Uint32 feeds a named unsigned integer field (uid, gid, mode bits).
func (d *Digest) Uint32(name string, value uint32) {
	d.writeName(name)
	d.hasher.Write([]byte{tagUint32})
	d.writeUvarint(uint64(value))
}

// OptField feeds a named string field, or an explicit absence marker
// when present is false. Absence is encoded (not skipped) so that an
// absent field followed by a present one cannot collide with the
// reverse.
func (d *Digest) OptField(name string, value string, present bool) {
	if !present {
		d.writeAbsent(name)
		return
	}
	d.Field(name, value)
}

// OptUint32 is OptField for unsigned integer values.
func (d *Digest) OptUint32(name string, value uint32, present bool) {
	if !present {
		d.writeAbsent(name)
		return
	}
	d.Uint32(name, value)
}

// File streams the reader's bytes into the digest as a content field.
// The path is used only for error context.
func (d *Digest) File(path string, content io.Reader) error {
	d.writeName("content")
	d.hasher.Write([]byte{tagFile})
	// File content is hashed unframed after the tag: the hash of the
	// whole stream is mixed in instead of a length prefix, so the
	// content does not need to be buffered to learn its size first.
	contentHasher := blake3.New()
	if _, err := io.Copy(contentHasher, content); err != nil {
		return fmt.Errorf("hashing content of %s: %w", path, err)
	}
	d.hasher.Write(contentHasher.Sum(nil))
	return nil
}

// Sum returns the accumulated fingerprint. The Digest must not be fed
// further fields afterwards.
func (d *Digest) Sum() Fingerprint {
	var fp Fingerprint
	copy(fp[:], d.hasher.Sum(nil))
	return fp
}

func (d *Digest) writeName(name string) {
	d.writeUvarint(uint64(len(name)))
	d.hasher.Write([]byte(name))
}

func (d *Digest) writeAbsent(name string) {
	d.writeName(name)
	d.hasher.Write([]byte{tagAbsent})
}

func (d *Digest) writeUvarint(v uint64) {
	n := binary.PutUvarint(d.scratch[:], v)
	d.hasher.Write(d.scratch[:n])
}

// Format returns the canonical lowercase hex form of a fingerprint,
// used in index files, logs, and CLI output.
func Format(fp Fingerprint) string {
	return hex.EncodeToString(fp[:])
}

// Parse parses a 64-character hex string into a Fingerprint.
func Parse(hexString string) (Fingerprint, error) {
	var fp Fingerprint
	decoded, err := hex.DecodeString(hexString)
	if err != nil {
		return fp, fmt.Errorf("parsing fingerprint: %w", err)
	}
	if len(decoded) != 32 {
		return fp, fmt.Errorf("fingerprint is %d bytes, want 32", len(decoded))
	}
	copy(fp[:], decoded)
	return fp, nil
}
