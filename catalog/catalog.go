// Package catalog implements the entry catalog of spec.md §4.2: the set of
// typed, versionable record kinds ("jot types") a cask knows how to parse,
// plus the merge rule that admits unknown codes as skippable surrogates, so
// a future reader can still skip over record kinds it was never built to
// understand.
package catalog

import (
	"fmt"

	"github.com/rpcpool/caskade/errs"
	"github.com/rpcpool/caskade/wire"
)

// Entry type codes for the five built-in jot types: the four base types
// spec.md §3 requires every caskade to carry, plus NEXT_CASK.
const (
	CaskHeader uint8 = 0
	Data       uint8 = 1
	Link       uint8 = 2
	CheckPoint uint8 = 3
	NextCask   uint8 = 4
)

// JotType describes one entry kind: its code, name, fixed header size, and
// whether it carries a variable-size payload.
type JotType struct {
	Code       uint8
	Name       string
	HeaderSize uint16
	HasPayload bool
	// Surrogate is true for entries admitted during a catalog merge whose
	// code this reader did not know ahead of time. Surrogate entries are
	// parsed structurally (skip HeaderSize bytes, then a length-prefixed
	// payload if HasPayload) but never handed to callers as decoded values.
	Surrogate bool
}

// Builtin returns the catalog of the five built-in jot types every cask must
// support, in code order.
func Builtin() Catalog {
	return Catalog{
		{Code: CaskHeader, Name: "CASK_HEADER", HeaderSize: 16 + 32 + 33 + 33, HasPayload: true},
		{Code: Data, Name: "DATA", HeaderSize: 32, HasPayload: true},
		{Code: Link, Name: "LINK", HeaderSize: 16 + 1 + 33, HasPayload: false},
		{Code: CheckPoint, Name: "CHECK_POINT", HeaderSize: 32 + 4 + 4 + 1, HasPayload: true},
		{Code: NextCask, Name: "NEXT_CASK", HeaderSize: 33, HasPayload: false},
	}
}

// Catalog is an ordered list of JotTypes, as carried in a CASK_HEADER's
// payload.
type Catalog []JotType

// Lookup returns the JotType registered for code, and whether it was found.
func (c Catalog) Lookup(code uint8) (JotType, bool) {
	for _, jt := range c {
		if jt.Code == code {
			return jt, true
		}
	}
	return JotType{}, false
}

// Encode serializes the catalog as adjsize3(count) followed by, per entry,
// code(u8) ‖ name(string) ‖ header_size(u16) ‖ has_payload(u8).
func (c Catalog) Encode() ([]byte, error) {
	buf, err := wire.PutAdjsize3(nil, uint32(len(c)))
	if err != nil {
		return nil, err
	}
	for _, jt := range c {
		buf = wire.PutU8(buf, jt.Code)
		buf, err = wire.PutString(buf, jt.Name)
		if err != nil {
			return nil, err
		}
		buf = wire.PutU16(buf, jt.HeaderSize)
		var hasPayload uint8
		if jt.HasPayload {
			hasPayload = 1
		}
		buf = wire.PutU8(buf, hasPayload)
	}
	return buf, nil
}

// Decode parses a catalog previously produced by Encode. Entries decoded
// this way are not marked Surrogate; callers merge the result against their
// own known catalog via Merge to determine which codes are unknown.
func Decode(buf []byte) (Catalog, error) {
	n, rest, err := wire.GetAdjsize(buf)
	if err != nil {
		return nil, err
	}
	out := make(Catalog, 0, n)
	for i := uint32(0); i < n; i++ {
		var jt JotType
		jt.Code, rest, err = wire.GetU8(rest)
		if err != nil {
			return nil, err
		}
		jt.Name, rest, err = wire.GetString(rest)
		if err != nil {
			return nil, err
		}
		jt.HeaderSize, rest, err = wire.GetU16(rest)
		if err != nil {
			return nil, err
		}
		var hasPayload uint8
		hasPayload, rest, err = wire.GetU8(rest)
		if err != nil {
			return nil, err
		}
		jt.HasPayload = hasPayload != 0
		out = append(out, jt)
	}
	return out, nil
}

// Merge reconciles a cask's on-disk catalog against the reader's own known
// catalog (typically Builtin() plus any registered extensions). Known codes
// whose shape disagrees with diskCatalog are a fatal format error (I2/I3
// forward-compatibility depends on shape agreement); codes the reader does
// not know are admitted as surrogates so replay can still skip over them.
func Merge(known Catalog, diskCatalog Catalog) (Catalog, error) {
	out := make(Catalog, 0, len(diskCatalog))
	for _, onDisk := range diskCatalog {
		knownJt, ok := known.Lookup(onDisk.Code)
		if !ok {
			surrogate := onDisk
			surrogate.Surrogate = true
			out = append(out, surrogate)
			continue
		}
		if knownJt.Name != onDisk.Name || knownJt.HeaderSize != onDisk.HeaderSize || knownJt.HasPayload != onDisk.HasPayload {
			return nil, &errs.FormatError{Reason: fmt.Sprintf("catalog: code %d disagrees with known type %q: disk has (name=%q header=%d payload=%v), known has (name=%q header=%d payload=%v)",
				onDisk.Code, knownJt.Name, onDisk.Name, onDisk.HeaderSize, onDisk.HasPayload, knownJt.Name, knownJt.HeaderSize, knownJt.HasPayload)}
		}
		out = append(out, knownJt)
	}
	return out, nil
}
