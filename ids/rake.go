package ids

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// RakeSize is the length in bytes of a Rake.
const RakeSize = 16

// typeTagMask isolates the low 6 bits of a Rake's last byte.
const typeTagMask = 0x3f

// RakeType is the 6-bit type tag carried in the low bits of a Rake's last
// byte. Valid values are 0..63.
type RakeType uint8

const (
	// RakeTypeCaskade tags a Rake that names a caskade itself.
	RakeTypeCaskade RakeType = 0
	// RakeTypeJournal tags a Rake used as a mutable link anchor.
	RakeTypeJournal RakeType = 1
	// RakeTypeMax is the largest RakeType the 6-bit tag can represent.
	RakeTypeMax RakeType = 63
)

// Rake is a 16-byte opaque identifier carrying a 6-bit type tag in the low
// bits of its last byte. It is used both to name a caskade and to name
// mutable link anchors.
type Rake [RakeSize]byte

// NullCaskadeRake is the reserved all-zero Rake of type RakeTypeCaskade.
var NullCaskadeRake = Rake{}

// NewRake generates a fresh Rake of the given type using cryptographically
// random bytes for everything but the type tag.
func NewRake(t RakeType) (Rake, error) {
	if t > RakeTypeMax {
		return Rake{}, fmt.Errorf("ids: rake type %d out of range [0,%d]", t, RakeTypeMax)
	}
	id, err := uuid.NewRandom()
	if err != nil {
		return Rake{}, fmt.Errorf("ids: generating rake: %w", err)
	}
	var r Rake
	copy(r[:], id[:])
	r[RakeSize-1] = (r[RakeSize-1] &^ typeTagMask) | (byte(t) & typeTagMask)
	return r, nil
}

// Type returns the Rake's 6-bit type tag.
func (r Rake) Type() RakeType {
	return RakeType(r[RakeSize-1] & typeTagMask)
}

// Bytes returns the Rake's raw bytes.
func (r Rake) Bytes() []byte {
	return r[:]
}

// String returns the lowercase hex encoding of the Rake, used for display.
func (r Rake) String() string {
	return hex.EncodeToString(r[:])
}

// Compare returns -1, 0, or 1 as r is lexicographically less than, equal to,
// or greater than other.
func (r Rake) Compare(other Rake) int {
	for i := range r {
		if r[i] != other[i] {
			if r[i] < other[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// MarshalJSON encodes the Rake as a hex string, for use in persisted
// descriptors like CaskadeConfig.
func (r Rake) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON decodes a Rake from a hex string.
func (r *Rake) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("ids: decoding rake: %w", err)
	}
	parsed, err := RakeFromBytes(decoded)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// RakeFromBytes copies b into a Rake. b must be exactly RakeSize bytes.
func RakeFromBytes(b []byte) (Rake, error) {
	var out Rake
	if len(b) != RakeSize {
		return out, fmt.Errorf("ids: rake must be %d bytes, got %d", RakeSize, len(b))
	}
	copy(out[:], b)
	return out, nil
}
