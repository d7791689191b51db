package wire

import (
	"fmt"

	"github.com/rpcpool/caskade/errs"
)

// Adjsize is the variable-length size-prefix encoding of spec.md §4.3: a
// base-128 little-endian encoding where every byte but the last carries 7
// bits of value with its high bit clear, and the terminating byte has its
// high bit set. This is the mirror image of the conventional LEB128
// continuation convention (there, continuation bytes set the high bit and
// the terminator clears it); spec.md is explicit that the terminator is the
// one with the bit set, so that convention is followed exactly rather than
// reusing a stock varint decoder.
//
// Two widths are used: a 3-byte capacity (values up to 2^21-1) for small
// lengths, and a 4-byte capacity (values up to 2^28-1) for payload sizes.

// Adjsize3Max is the largest value a 3-byte adjsize can encode.
const Adjsize3Max = 1<<21 - 1

// Adjsize4Max is the largest value a 4-byte adjsize can encode.
const Adjsize4Max = 1<<28 - 1

// PutAdjsize3 appends a 3-byte-capacity adjsize varint.
func PutAdjsize3(buf []byte, v uint32) ([]byte, error) {
	if v > Adjsize3Max {
		return nil, fmt.Errorf("wire: adjsize value %d exceeds 3-byte capacity %d", v, Adjsize3Max)
	}
	return putAdjsize(buf, v), nil
}

// PutAdjsize4 appends a 4-byte-capacity adjsize varint.
func PutAdjsize4(buf []byte, v uint32) ([]byte, error) {
	if v > Adjsize4Max {
		return nil, fmt.Errorf("wire: adjsize value %d exceeds 4-byte capacity %d", v, Adjsize4Max)
	}
	return putAdjsize(buf, v), nil
}

func putAdjsize(buf []byte, v uint32) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			buf = append(buf, b|0x80)
			return buf
		}
		buf = append(buf, b)
	}
}

// GetAdjsize decodes an adjsize varint from the front of buf, returning the
// value and the remaining bytes. If buf ends before a terminal (high-bit-set)
// byte is found, it returns errs.ErrNeedMoreBytes — the recoverable
// end-of-buffer condition used during crash recovery.
func GetAdjsize(buf []byte) (uint32, []byte, error) {
	var v uint32
	for i := 0; i < len(buf); i++ {
		b := buf[i]
		v |= uint32(b&0x7f) << (7 * uint(i))
		if b&0x80 != 0 {
			return v, buf[i+1:], nil
		}
	}
	return 0, nil, errs.ErrNeedMoreBytes
}
