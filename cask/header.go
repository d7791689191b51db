// Package cask implements a single append-only cask file: spec.md §4.6's
// CaskFile. It packs and unpacks entries against the wire layout of §4.4,
// orchestrates checkpoint/rollover decisions via the segment package, and
// performs sequential replay for both normal open and crash recovery.
package cask

import (
	"fmt"

	"github.com/rpcpool/caskade/catalog"
	"github.com/rpcpool/caskade/ids"
	"github.com/rpcpool/caskade/wire"
)

// caskHeaderFields is CASK_HEADER's fixed header fields (spec.md §4.4):
// caskade_id(Rake,16) ‖ prev_checkpoint_id(HashKey,32) ‖ prev_cask_id(Cake,33)
// ‖ catalog_id(Cake,33).
type caskHeaderFields struct {
	CaskadeId        ids.Rake
	PrevCheckpointId ids.HashKey
	PrevCaskId       ids.Cake
	CatalogId        ids.Cake
}

func encodeCaskHeaderFields(f caskHeaderFields) []byte {
	buf := make([]byte, 0, ids.RakeSize+ids.HashSize+ids.CakeSize*2)
	buf = wire.PutFixed(buf, f.CaskadeId.Bytes(), ids.RakeSize)
	buf = wire.PutFixed(buf, f.PrevCheckpointId.Bytes(), ids.HashSize)
	buf = wire.PutFixed(buf, f.PrevCaskId.Bytes(), ids.CakeSize)
	buf = wire.PutFixed(buf, f.CatalogId.Bytes(), ids.CakeSize)
	return buf
}

func decodeCaskHeaderFields(buf []byte) (caskHeaderFields, error) {
	var f caskHeaderFields
	raw, rest, err := wire.GetFixed(buf, ids.RakeSize)
	if err != nil {
		return f, err
	}
	f.CaskadeId, err = ids.RakeFromBytes(raw)
	if err != nil {
		return f, err
	}
	raw, rest, err = wire.GetFixed(rest, ids.HashSize)
	if err != nil {
		return f, err
	}
	f.PrevCheckpointId, err = ids.HashKeyFromBytes(raw)
	if err != nil {
		return f, err
	}
	raw, rest, err = wire.GetFixed(rest, ids.CakeSize)
	if err != nil {
		return f, err
	}
	f.PrevCaskId, err = ids.CakeFromBytes(raw)
	if err != nil {
		return f, err
	}
	raw, _, err = wire.GetFixed(rest, ids.CakeSize)
	if err != nil {
		return f, err
	}
	f.CatalogId, err = ids.CakeFromBytes(raw)
	if err != nil {
		return f, err
	}
	return f, nil
}

// encodeLinkFields packs LINK's fixed header: from_id(Rake,16) ‖ purpose(u8)
// ‖ to_id(Cake,33).
func encodeLinkFields(from ids.Rake, purpose uint8, to ids.HashKey) []byte {
	buf := make([]byte, 0, ids.RakeSize+1+ids.CakeSize)
	buf = wire.PutFixed(buf, from.Bytes(), ids.RakeSize)
	buf = wire.PutU8(buf, purpose)
	buf = wire.PutFixed(buf, ids.Cake{Hash: to, Purpose: ids.CakePurposeCaskRef}.Bytes(), ids.CakeSize)
	return buf
}

func decodeLinkFields(buf []byte) (from ids.Rake, purpose uint8, to ids.HashKey, err error) {
	raw, rest, err := wire.GetFixed(buf, ids.RakeSize)
	if err != nil {
		return
	}
	from, err = ids.RakeFromBytes(raw)
	if err != nil {
		return
	}
	purpose, rest, err = wire.GetU8(rest)
	if err != nil {
		return
	}
	raw, _, err = wire.GetFixed(rest, ids.CakeSize)
	if err != nil {
		return
	}
	toCake, err := ids.CakeFromBytes(raw)
	if err != nil {
		return
	}
	to = toCake.Hash
	return
}

// encodeCheckpointFields packs CHECK_POINT's fixed header:
// checkpoint_id(HashKey,32) ‖ start(u32) ‖ end(u32) ‖ type(u8).
func encodeCheckpointFields(id ids.HashKey, start, end uint32, typ catalog.CheckpointType) []byte {
	buf := make([]byte, 0, ids.HashSize+4+4+1)
	buf = wire.PutFixed(buf, id.Bytes(), ids.HashSize)
	buf = wire.PutU32(buf, start)
	buf = wire.PutU32(buf, end)
	buf = wire.PutU8(buf, uint8(typ))
	return buf
}

func decodeCheckpointFields(buf []byte) (id ids.HashKey, start, end uint32, typ catalog.CheckpointType, err error) {
	raw, rest, err := wire.GetFixed(buf, ids.HashSize)
	if err != nil {
		return
	}
	id, err = ids.HashKeyFromBytes(raw)
	if err != nil {
		return
	}
	start, rest, err = wire.GetU32(rest)
	if err != nil {
		return
	}
	end, rest, err = wire.GetU32(rest)
	if err != nil {
		return
	}
	var t uint8
	t, _, err = wire.GetU8(rest)
	if err != nil {
		return
	}
	typ = catalog.CheckpointType(t)
	return
}

// encodeNextCaskFields packs NEXT_CASK's fixed header: next_cask_id(Cake,33).
func encodeNextCaskFields(next ids.Cake) []byte {
	return wire.PutFixed(nil, next.Bytes(), ids.CakeSize)
}

func decodeNextCaskFields(buf []byte) (ids.Cake, error) {
	raw, _, err := wire.GetFixed(buf, ids.CakeSize)
	if err != nil {
		return ids.Cake{}, err
	}
	return ids.CakeFromBytes(raw)
}

// checkpointRecordSize returns the exact on-disk size of a CHECK_POINT
// record carrying a signature of sigSize bytes.
func checkpointRecordSize(sigSize int) (uint32, error) {
	header := encodeCheckpointFields(ids.HashKey{}, 0, 0, 0)
	prefix, err := wire.PutAdjsize4(nil, uint32(sigSize))
	if err != nil {
		return 0, fmt.Errorf("cask: signature too large: %w", err)
	}
	return uint32(wire.StampSize + len(header) + len(prefix) + sigSize), nil
}

// nextCaskRecordSize returns the exact on-disk size of a NEXT_CASK record.
func nextCaskRecordSize() uint32 {
	return uint32(wire.StampSize + ids.CakeSize)
}

// ReservedTailSize returns the byte size of the terminal
// NEXT_CASK+CHECK_POINT sequence a rollover or close must still be able to
// write, given a signature of sigSize bytes. Callers reserve this much
// headroom before max_cask_size to uphold P7.
func ReservedTailSize(sigSize int) (uint32, error) {
	cpSize, err := checkpointRecordSize(sigSize)
	if err != nil {
		return 0, err
	}
	return nextCaskRecordSize() + cpSize, nil
}
