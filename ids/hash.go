// Package ids defines the identifier and digest types used throughout the
// caskade storage engine: content digests, anchor GUIDs, and cask file
// identifiers.
package ids

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/minio/sha256-simd"
)

// HashSize is the length in bytes of a HashKey.
const HashSize = 32

// HashKey is the 32-byte cryptographic digest that addresses a blob's
// content. Equality and ordering are defined over the raw bytes.
type HashKey [HashSize]byte

// NullHash is the all-zero sentinel used where spec.md calls for a NULL
// digest (e.g. the bootstrap cask's prev_checkpoint_id).
var NullHash HashKey

// Of returns the digest of b.
func Of(b []byte) HashKey {
	return sha256.Sum256(b)
}

// Hasher is a streaming digest producer. Update never fails.
type Hasher struct {
	h interface {
		Write(p []byte) (int, error)
		Sum(b []byte) []byte
		Reset()
	}
}

// NewHasher returns a fresh streaming hasher over the same digest family as
// Of.
func NewHasher() *Hasher {
	return &Hasher{h: sha256.New()}
}

// Update feeds more bytes into the running digest.
func (h *Hasher) Update(p []byte) {
	h.h.Write(p)
}

// Digest returns the digest of everything written so far. It does not reset
// the hasher.
func (h *Hasher) Digest() HashKey {
	var out HashKey
	copy(out[:], h.h.Sum(nil))
	return out
}

// Reset clears the hasher back to its initial state.
func (h *Hasher) Reset() {
	h.h.Reset()
}

// Bytes returns the digest's raw bytes.
func (k HashKey) Bytes() []byte {
	return k[:]
}

// IsZero reports whether k is the all-zero NULL sentinel.
func (k HashKey) IsZero() bool {
	return k == NullHash
}

// Compare returns -1, 0, or 1 as k is lexicographically less than, equal to,
// or greater than other.
func (k HashKey) Compare(other HashKey) int {
	return bytes.Compare(k[:], other[:])
}

// String returns the lowercase hex encoding of the digest, used for display.
func (k HashKey) String() string {
	return hex.EncodeToString(k[:])
}

// HashKeyFromBytes copies b into a HashKey. b must be exactly HashSize bytes.
func HashKeyFromBytes(b []byte) (HashKey, error) {
	var out HashKey
	if len(b) != HashSize {
		return out, fmt.Errorf("ids: hash key must be %d bytes, got %d", HashSize, len(b))
	}
	copy(out[:], b)
	return out, nil
}
