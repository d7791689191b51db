package cask

import (
	"fmt"
	"time"

	"github.com/rpcpool/caskade/catalog"
	"github.com/rpcpool/caskade/errs"
	"github.com/rpcpool/caskade/ids"
	"github.com/rpcpool/caskade/segment"
	"github.com/rpcpool/caskade/signer"
	"github.com/rpcpool/caskade/wire"
)

// DataLocation names where a DATA payload landed: which cask, and the byte
// range of the payload itself (not the whole record).
type DataLocation struct {
	CaskId ids.CaskId
	Offset uint32
	Size   uint32
}

// ValidationOptions gates the expensive checks read_file/replay can perform,
// per spec.md §4.6: all off is the fast open path, all on is the recovery
// path, and the two compose independently of ValidateSignatures.
type ValidationOptions struct {
	ValidateData        bool
	ValidateCheckpoints bool
	ValidateSignatures  bool
}

// Recovering returns the all-on ValidationOptions used by Caskade.recover.
func Recovering() ValidationOptions {
	return ValidationOptions{ValidateData: true, ValidateCheckpoints: true, ValidateSignatures: true}
}

// Collector receives the decoded entries of a replay, in file order. Any
// field left nil is simply not invoked for that entry kind.
type Collector struct {
	OnData       func(hash ids.HashKey, loc DataLocation) error
	OnLink       func(from ids.Rake, purpose uint8, to ids.HashKey) error
	OnCheckpoint func(cp catalog.Checkpoint) error
}

// ReplayResult is what a completed (or recovery-truncated) replay of one
// cask file produced.
type ReplayResult struct {
	Catalog        catalog.Catalog
	Consumed       uint32
	LastCheckpoint catalog.Checkpoint
	HasCheckpoint  bool
}

// ReadFile sequentially decodes data (the full contents of one cask file)
// against known (the reader's own catalog, typically catalog.Builtin()),
// dispatching each entry to collector, per spec.md §4.6's read_file.
//
// If data ends mid-record, ReadFile returns a ReplayResult reflecting
// everything decoded up to that point together with errs.ErrNeedMoreBytes;
// only Caskade.recover is expected to treat that as tolerable.
func ReadFile(data []byte, caskId ids.CaskId, known catalog.Catalog, sgnr signer.Signer, opts ValidationOptions, collector Collector) (ReplayResult, error) {
	var result ReplayResult

	stamp, rest, err := wire.GetStamp(data)
	if err != nil {
		return result, err
	}
	if stamp.Code != catalog.CaskHeader {
		return result, &errs.FormatError{Reason: fmt.Sprintf("cask %s: first entry has code %d, want CASK_HEADER", caskId, stamp.Code)}
	}
	caskHeaderJt, ok := known.Lookup(catalog.CaskHeader)
	if !ok {
		return result, &errs.FormatError{Reason: "cask: reader catalog is missing CASK_HEADER"}
	}
	headerBytes, rest, err := wire.GetFixed(rest, int(caskHeaderJt.HeaderSize))
	if err != nil {
		return result, err
	}
	fields, err := decodeCaskHeaderFields(headerBytes)
	if err != nil {
		return result, err
	}
	n, rest, err := wire.GetAdjsize(rest)
	if err != nil {
		return result, err
	}
	catalogBytes, rest, err := wire.GetFixed(rest, int(n))
	if err != nil {
		return result, err
	}
	if got := ids.CakeForCatalog(catalogBytes); got != fields.CatalogId {
		return result, &errs.DataValidationError{Want: fields.CatalogId.Hash.String(), Got: got.Hash.String(), Context: "cask header catalog digest"}
	}
	diskCatalog, err := catalog.Decode(catalogBytes)
	if err != nil {
		return result, err
	}
	merged, err := catalog.Merge(known, diskCatalog)
	if err != nil {
		return result, err
	}
	result.Catalog = merged

	consumed := uint32(len(data) - len(rest))
	result.Consumed = consumed
	headerCheckpoint := catalog.Checkpoint{CaskId: caskId, Start: 0, End: consumed, Type: catalog.OnCaskHeader, Virtual: true}
	if collector.OnCheckpoint != nil {
		if err := collector.OnCheckpoint(headerCheckpoint); err != nil {
			return result, err
		}
	}
	result.LastCheckpoint = headerCheckpoint
	result.HasCheckpoint = true

	tracker := segment.New(consumed)
	tracker.Update(data[:consumed], time.Time{}, true)

	for len(rest) > 0 {
		entryStart := result.Consumed
		stamp, body, err := wire.GetStamp(rest)
		if err != nil {
			// errs.ErrNeedMoreBytes surfaces here verbatim when rest holds an
			// incomplete trailing record; only recover() is expected to
			// treat that as tolerable.
			return result, err
		}
		jt, isKnown := merged.Lookup(stamp.Code)
		if !isKnown {
			return result, &errs.FormatError{Reason: fmt.Sprintf("cask %s: entry code %d absent from merged catalog", caskId, stamp.Code)}
		}
		header, body, err := wire.GetFixed(body, int(jt.HeaderSize))
		if err != nil {
			return result, err
		}
		var payload []byte
		if jt.HasPayload {
			var size uint32
			size, body, err = wire.GetAdjsize(body)
			if err != nil {
				return result, err
			}
			payload, body, err = wire.GetFixed(body, int(size))
			if err != nil {
				return result, err
			}
		}
		record := rest[:len(rest)-len(body)]
		rest = body
		result.Consumed += uint32(len(record))

		if jt.Surrogate {
			tracker.Update(record, time.Time{}, false)
			continue
		}

		switch stamp.Code {
		case catalog.Data:
			hash, err := ids.HashKeyFromBytes(header)
			if err != nil {
				return result, err
			}
			if opts.ValidateData {
				if got := ids.Of(payload); got != hash {
					return result, &errs.DataValidationError{Want: hash.String(), Got: got.String(), Context: "DATA payload"}
				}
			}
			payloadOffset := entryStart + uint32(len(record)-len(payload))
			if collector.OnData != nil {
				if err := collector.OnData(hash, DataLocation{CaskId: caskId, Offset: payloadOffset, Size: uint32(len(payload))}); err != nil {
					return result, err
				}
			}
			tracker.Update(record, time.Time{}, false)

		case catalog.Link:
			from, purpose, to, err := decodeLinkFields(header)
			if err != nil {
				return result, err
			}
			if collector.OnLink != nil {
				if err := collector.OnLink(from, purpose, to); err != nil {
					return result, err
				}
			}
			tracker.Update(record, time.Time{}, false)

		case catalog.CheckPoint:
			cpId, start, end, cpType, err := decodeCheckpointFields(header)
			if err != nil {
				return result, err
			}
			if opts.ValidateSignatures && len(payload) > 0 && sgnr != nil {
				if !sgnr.Validate(header, payload) {
					return result, &errs.SignatureError{CheckpointID: cpId.String()}
				}
			}
			if opts.ValidateCheckpoints && tracker.StartOffset() != tracker.CurrentOffset() {
				snap, _ := tracker.Checkpoint()
				if snap.CheckpointId != cpId {
					return result, &errs.DataValidationError{Want: cpId.String(), Got: snap.CheckpointId.String(), Context: "checkpoint digest"}
				}
			}
			cp := catalog.Checkpoint{CaskId: caskId, CheckpointId: cpId, Start: start, End: end, Type: cpType}
			if collector.OnCheckpoint != nil {
				if err := collector.OnCheckpoint(cp); err != nil {
					return result, err
				}
			}
			result.LastCheckpoint = cp
			result.HasCheckpoint = true
			// The checkpoint's own bytes belong to the segment it opens, not
			// the one it seals, matching writeCheckpointRaw's successor
			// tracker on the write side.
			tracker = segment.New(entryStart)
			tracker.Update(record, time.Time{}, false)

		case catalog.NextCask:
			// Structural only: the caller (Caskade.Open) decides the next
			// file to replay from the directory listing, not from this
			// pointer.
			tracker.Update(record, time.Time{}, false)
		}
	}

	return result, nil
}
