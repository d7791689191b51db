// Package wire implements the bespoke binary packing contract of spec.md
// §4.3-4.4: fixed-width integers, the adjsize variable-length size prefix,
// strings, and the universal entry Stamp. It stands in for the "binary
// packer library" spec.md §1 names as an external collaborator — no
// registered varint format matches the adjsize contract's terminal-high-bit
// convention, so it is implemented directly against encoding/binary rather
// than adopting a general-purpose varint package (see DESIGN.md).
package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/rpcpool/caskade/errs"
)

// PutU8 appends a single byte.
func PutU8(buf []byte, v uint8) []byte {
	return append(buf, v)
}

// GetU8 reads a single byte from the front of buf.
func GetU8(buf []byte) (uint8, []byte, error) {
	if len(buf) < 1 {
		return 0, nil, errs.ErrNeedMoreBytes
	}
	return buf[0], buf[1:], nil
}

// PutU16 appends a little-endian u16.
func PutU16(buf []byte, v uint16) []byte {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	return append(buf, tmp[:]...)
}

// GetU16 reads a little-endian u16 from the front of buf.
func GetU16(buf []byte) (uint16, []byte, error) {
	if len(buf) < 2 {
		return 0, nil, errs.ErrNeedMoreBytes
	}
	return binary.LittleEndian.Uint16(buf), buf[2:], nil
}

// PutU32 appends a little-endian u32.
func PutU32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

// GetU32 reads a little-endian u32 from the front of buf.
func GetU32(buf []byte) (uint32, []byte, error) {
	if len(buf) < 4 {
		return 0, nil, errs.ErrNeedMoreBytes
	}
	return binary.LittleEndian.Uint32(buf), buf[4:], nil
}

// PutU64 appends a little-endian u64.
func PutU64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

// GetU64 reads a little-endian u64 from the front of buf.
func GetU64(buf []byte) (uint64, []byte, error) {
	if len(buf) < 8 {
		return 0, nil, errs.ErrNeedMoreBytes
	}
	return binary.LittleEndian.Uint64(buf), buf[8:], nil
}

// PutNanotime appends a big-endian u64 timestamp (spec.md §4.3: "nanotime =
// u64 big-endian" is the one field that deviates from the little-endian
// default).
func PutNanotime(buf []byte, ns uint64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], ns)
	return append(buf, tmp[:]...)
}

// GetNanotime reads a big-endian u64 timestamp from the front of buf.
func GetNanotime(buf []byte) (uint64, []byte, error) {
	if len(buf) < 8 {
		return 0, nil, errs.ErrNeedMoreBytes
	}
	return binary.BigEndian.Uint64(buf), buf[8:], nil
}

// PutFixed appends an exact-length fixed field, e.g. a HashKey or Rake's raw
// bytes. It panics if b is not exactly n bytes — fixed-size packers reject
// wrong-length inputs per spec.md §4.3.
func PutFixed(buf []byte, b []byte, n int) []byte {
	if len(b) != n {
		panic(fmt.Sprintf("wire: fixed field must be %d bytes, got %d", n, len(b)))
	}
	return append(buf, b...)
}

// GetFixed reads an exact-length fixed field from the front of buf.
func GetFixed(buf []byte, n int) ([]byte, []byte, error) {
	if len(buf) < n {
		return nil, nil, errs.ErrNeedMoreBytes
	}
	return buf[:n], buf[n:], nil
}
