// Package signer implements the optional checkpoint-signing capability
// spec.md §1 names as an external collaborator: "an opaque
// (sign(bytes)->bytes, validate(bytes, sig)->bool, signature_size)
// capability", modeled as a small interface with one concrete
// implementation.
package signer

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"

	"github.com/rpcpool/caskade/ids"
)

// Kind names a signer implementation, as persisted in CaskadeConfig.
type Kind string

// KindHasher is the one signer kind spec.md §6 defines: a symmetric scheme
// that signs by hashing the message concatenated with a secret, and
// validates the same way.
const KindHasher Kind = "HASHER"

// Signer is the capability a Caskade uses to protect checkpoint records.
type Signer interface {
	Sign(msg []byte) []byte
	Validate(msg, sig []byte) bool
	SignatureSize() int
}

// SecretSize is the length in bytes of a HASHER signer's secret.
const SecretSize = 32

// HasherSigner signs by computing HashKey.Of(msg ‖ secret) and validates by
// recomputing the same digest. Losing the secret makes every checkpoint this
// signer ever produced unverifiable again; there is no recovery path, by
// design (spec.md §9).
type HasherSigner struct {
	secret [SecretSize]byte
}

// NewHasherSigner builds a HasherSigner from an existing secret, typically
// loaded from .hs_etc/key.bin.
func NewHasherSigner(secret []byte) (*HasherSigner, error) {
	if len(secret) != SecretSize {
		return nil, fmt.Errorf("signer: secret must be %d bytes, got %d", SecretSize, len(secret))
	}
	s := &HasherSigner{}
	copy(s.secret[:], secret)
	return s, nil
}

// GenerateSecret returns a fresh cryptographically random secret suitable
// for NewHasherSigner, sized for .hs_etc/key.bin.
func GenerateSecret() ([]byte, error) {
	secret := make([]byte, SecretSize)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("signer: generating secret: %w", err)
	}
	return secret, nil
}

// Sign returns HashKey.Of(msg ‖ secret).
func (s *HasherSigner) Sign(msg []byte) []byte {
	buf := make([]byte, 0, len(msg)+SecretSize)
	buf = append(buf, msg...)
	buf = append(buf, s.secret[:]...)
	sum := ids.Of(buf)
	return sum.Bytes()
}

// Validate recomputes Sign(msg) and compares it to sig in constant time.
func (s *HasherSigner) Validate(msg, sig []byte) bool {
	want := s.Sign(msg)
	return subtle.ConstantTimeCompare(want, sig) == 1
}

// SignatureSize returns the fixed size of a HASHER signature: one HashKey.
func (s *HasherSigner) SignatureSize() int {
	return ids.HashSize
}
