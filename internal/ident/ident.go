// Package ident generates collision-resistant 48-bit identifiers for
// records and focus tasks.
//
// Identifiers are drawn from a cryptographically strong source and are
// neither sequential nor derivable from creation order. Uniqueness is
// enforced by the database; on a UNIQUE violation the caller regenerates
// and retries up to MaxInsertRetries before surfacing a hard failure.
package ident

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"time"
)

const (
	// BitLength is the fixed bit-length of every identifier.
	BitLength = 48

	// minID and maxID bound the valid range [2^47, 2^48).
	minID = int64(1) << (BitLength - 1)
	maxID = int64(1) << BitLength

	// MaxInsertRetries bounds the regenerate-and-retry loop callers run
	// on a uniqueness violation. The 47-bit address space makes more
	// than one collision in a row astronomically unlikely.
	MaxInsertRetries = 3
)

// Allocate returns a random identifier in [2^47, 2^48).
// The top bit is always set, so every identifier has exactly 48 bits.
func Allocate() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand failure means the process has no usable entropy
		// source; there is nothing sensible to fall back to.
		panic(fmt.Sprintf("ident: crypto/rand unavailable: %v", err))
	}
	v := int64(binary.BigEndian.Uint64(buf[:]) & uint64(minID-1)) // 47 random bits
	return minID | v
}

// AllocateMigrationSafe returns an identifier mixing a millisecond
// timestamp prefix with random low bits. It exists only for bulk data
// migration, where monotonicity against pre-existing sequential IDs
// matters more than unpredictability. Never use it in the hot path.
func AllocateMigrationSafe() int64 {
	prefix := (time.Now().UnixMilli() % (1 << 32)) << 16
	var buf [2]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic(fmt.Sprintf("ident: crypto/rand unavailable: %v", err))
	}
	v := prefix | int64(binary.BigEndian.Uint16(buf[:]))
	if v < minID {
		v += minID
	}
	return v
}

// IsValidFormat reports whether v has the exact 48-bit shape produced by
// Allocate. Used for defense-in-depth validation of externally supplied
// identifiers.
func IsValidFormat(v int64) bool {
	return v >= minID && v < maxID
}
