package ids

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"strings"
)

// CaskIdRawSize is the length in bytes of a CaskId's raw encoding:
// caskade_id(16) ‖ idx(8, little-endian).
const CaskIdRawSize = RakeSize + 8

// base62Alphabet is used for CaskId's display encoding. Digits first, then
// uppercase, then lowercase, matching the conventional base-62 ordering.
const base62Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// CaskId names a single cask file: the caskade it belongs to, and its
// sequence index within that caskade. idx=0 is always the bootstrap cask;
// idx=n+1 is the cask that n rolls over into.
type CaskId struct {
	CaskadeId Rake
	Idx       uint64
}

// Bytes returns the CaskId's raw encoding: caskade_id ‖ idx (little-endian
// u64).
func (c CaskId) Bytes() []byte {
	out := make([]byte, CaskIdRawSize)
	copy(out, c.CaskadeId[:])
	binary.LittleEndian.PutUint64(out[RakeSize:], c.Idx)
	return out
}

// Next returns the CaskId of the cask that this one rolls over into.
func (c CaskId) Next() CaskId {
	return CaskId{CaskadeId: c.CaskadeId, Idx: c.Idx + 1}
}

// Filename returns the lowercase base-36 file name stem for this CaskId,
// without extension.
func (c CaskId) Filename() string {
	n := new(big.Int).SetBytes(c.Bytes())
	return strings.ToLower(n.Text(36))
}

// String returns a base-62 display encoding of the CaskId, distinct from its
// filename stem.
func (c CaskId) String() string {
	n := new(big.Int).SetBytes(c.Bytes())
	return encodeBaseN(n, base62Alphabet)
}

func encodeBaseN(n *big.Int, alphabet string) string {
	if n.Sign() == 0 {
		return string(alphabet[0])
	}
	base := big.NewInt(int64(len(alphabet)))
	zero := big.NewInt(0)
	mod := new(big.Int)
	n = new(big.Int).Set(n)
	var sb strings.Builder
	for n.Cmp(zero) > 0 {
		n.DivMod(n, base, mod)
		sb.WriteByte(alphabet[mod.Int64()])
	}
	// Digits were produced least-significant first.
	s := []byte(sb.String())
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
	return string(s)
}

// CaskIdFromFilename decodes a base-36 filename stem back into a CaskId.
func CaskIdFromFilename(stem string) (CaskId, error) {
	n, ok := new(big.Int).SetString(stem, 36)
	if !ok {
		return CaskId{}, fmt.Errorf("ids: invalid base-36 cask filename %q", stem)
	}
	raw := n.Bytes()
	if len(raw) > CaskIdRawSize {
		return CaskId{}, fmt.Errorf("ids: cask filename %q decodes to %d bytes, want at most %d", stem, len(raw), CaskIdRawSize)
	}
	padded := make([]byte, CaskIdRawSize)
	copy(padded[CaskIdRawSize-len(raw):], raw)
	var c CaskId
	copy(c.CaskadeId[:], padded[:RakeSize])
	c.Idx = binary.LittleEndian.Uint64(padded[RakeSize:])
	return c, nil
}
