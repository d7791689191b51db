package cask

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rpcpool/caskade/catalog"
	"github.com/rpcpool/caskade/errs"
	"github.com/rpcpool/caskade/ids"
	"github.com/rpcpool/caskade/segment"
	"github.com/rpcpool/caskade/signer"
	"github.com/rpcpool/caskade/wire"
)

// ActivePath returns the writable filename for the cask identified by id.
func ActivePath(dir string, id ids.CaskId) string {
	return filepath.Join(dir, id.Filename()+".active")
}

// SealedPath returns the read-only filename a cask is renamed to once it has
// rolled over or the caskade has closed.
func SealedPath(dir string, id ids.CaskId) string {
	return filepath.Join(dir, id.Filename()+".cask")
}

// RolloverResult is returned by a write when it triggered a rollover: the
// just-sealed file's terminal checkpoint, and the freshly created active
// file writes should continue against.
type RolloverResult struct {
	NewActive        *File
	SealedCheckpoint catalog.Checkpoint
}

// File is a single active (writable) cask: an open file descriptor, the
// running segment tracker for its current, un-checkpointed tail, and the
// catalog and signer it was opened with.
type File struct {
	dir          string
	id           ids.CaskId
	f            *os.File
	w            *bufio.Writer
	tracker      *segment.Tracker
	catalog      catalog.Catalog
	signer       signer.Signer
	thresholds   segment.Thresholds
	onCheckpoint func(catalog.Checkpoint)
	closed       bool
}

// Id returns the CaskId this file was opened under.
func (f *File) Id() ids.CaskId { return f.id }

// Create opens a brand-new active cask at dir, named by id, and writes its
// CASK_HEADER. prevCaskId is nil for the bootstrap cask. onCheckpoint is
// invoked for the virtual ON_CASK_HEADER checkpoint this immediately
// produces, and for every checkpoint this file writes thereafter.
func Create(dir string, id ids.CaskId, prevCaskId *ids.CaskId, prevCheckpointId ids.HashKey, cat catalog.Catalog, sgnr signer.Signer, th segment.Thresholds, onCheckpoint func(catalog.Checkpoint), now time.Time) (*File, error) {
	path := ActivePath(dir, id)
	fh, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR|os.O_APPEND, 0o600)
	if err != nil {
		return nil, &errs.AccessError{Op: "create", Reason: fmt.Sprintf("%s: %v", path, err)}
	}

	catalogBytes, err := cat.Encode()
	if err != nil {
		fh.Close()
		return nil, err
	}
	prevCake := ids.NullCake
	if prevCaskId != nil {
		prevCake = ids.CakeForCask(*prevCaskId)
	}
	fields := caskHeaderFields{
		CaskadeId:        id.CaskadeId,
		PrevCheckpointId: prevCheckpointId,
		PrevCaskId:       prevCake,
		CatalogId:        ids.CakeForCatalog(catalogBytes),
	}
	header := encodeCaskHeaderFields(fields)
	record, _, _, err := buildRecord(catalog.CaskHeader, now, header, catalogBytes, true)
	if err != nil {
		fh.Close()
		return nil, err
	}

	cf := &File{
		dir:          dir,
		id:           id,
		f:            fh,
		w:            bufio.NewWriter(fh),
		tracker:      segment.New(0),
		catalog:      cat,
		signer:       sgnr,
		thresholds:   th,
		onCheckpoint: onCheckpoint,
	}
	if _, err := cf.appendBytes(record); err != nil {
		fh.Close()
		return nil, err
	}
	cf.tracker.Update(record, now, true)
	onCheckpoint(catalog.Checkpoint{
		CaskId:  id,
		Start:   0,
		End:     cf.tracker.CurrentOffset(),
		Type:    catalog.OnCaskHeader,
		Virtual: true,
	})
	return cf, nil
}

// ResumeFile reopens a paused cask's `.active` file for further appends. The
// file's last entry on disk must be a CHECK_POINT(ON_CASKADE_PAUSE); the
// successor tracker is re-seeded by hashing that checkpoint's own record
// bytes, the way a normal in-memory checkpoint seeds its successor, so the
// hash chain survives a process restart unaffected.
func ResumeFile(dir string, id ids.CaskId, cat catalog.Catalog, sgnr signer.Signer, th segment.Thresholds, onCheckpoint func(catalog.Checkpoint), sigSize int, now time.Time) (*File, catalog.Checkpoint, error) {
	path := ActivePath(dir, id)
	fh, err := os.OpenFile(path, os.O_RDWR|os.O_APPEND, 0o600)
	if err != nil {
		return nil, catalog.Checkpoint{}, &errs.AccessError{Op: "resume", Reason: fmt.Sprintf("%s: %v", path, err)}
	}
	fi, err := fh.Stat()
	if err != nil {
		fh.Close()
		return nil, catalog.Checkpoint{}, err
	}
	cpRecSize, err := checkpointRecordSize(sigSize)
	if err != nil {
		fh.Close()
		return nil, catalog.Checkpoint{}, err
	}
	if uint64(fi.Size()) < uint64(cpRecSize) {
		fh.Close()
		return nil, catalog.Checkpoint{}, &errs.FormatError{Reason: fmt.Sprintf("%s is too short to hold a checkpoint", path)}
	}
	pauseStart := uint32(fi.Size()) - cpRecSize
	buf := make([]byte, cpRecSize)
	if _, err := fh.ReadAt(buf, int64(pauseStart)); err != nil {
		fh.Close()
		return nil, catalog.Checkpoint{}, err
	}
	stamp, rest, err := wire.GetStamp(buf)
	if err != nil {
		fh.Close()
		return nil, catalog.Checkpoint{}, err
	}
	if stamp.Code != catalog.CheckPoint {
		fh.Close()
		return nil, catalog.Checkpoint{}, &errs.FormatError{Reason: fmt.Sprintf("%s does not end on a checkpoint", path)}
	}
	_, _, _, typ, err := decodeCheckpointFields(rest)
	if err != nil {
		fh.Close()
		return nil, catalog.Checkpoint{}, err
	}
	if typ != catalog.OnCaskadePause {
		fh.Close()
		return nil, catalog.Checkpoint{}, &errs.AccessError{Op: "resume", Reason: fmt.Sprintf("%s's last checkpoint is not ON_CASKADE_PAUSE", path)}
	}

	tracker := segment.New(pauseStart)
	tracker.Update(buf, now, false)
	fh.Close()

	cf, err := reopenActive(dir, id, cat, sgnr, th, onCheckpoint, tracker, "resume")
	if err != nil {
		return nil, catalog.Checkpoint{}, err
	}
	cp, err := cf.writeCheckpointRaw(catalog.OnCaskadeResume, now)
	if err != nil {
		cf.f.Close()
		return nil, catalog.Checkpoint{}, err
	}
	return cf, cp, nil
}

// reopenActive opens an existing `.active` file for further appends and
// wraps it in a File using tracker as its running segment state. It writes
// nothing; callers decide what, if anything, to append once the File is
// constructed.
func reopenActive(dir string, id ids.CaskId, cat catalog.Catalog, sgnr signer.Signer, th segment.Thresholds, onCheckpoint func(catalog.Checkpoint), tracker *segment.Tracker, op string) (*File, error) {
	path := ActivePath(dir, id)
	fh, err := os.OpenFile(path, os.O_RDWR|os.O_APPEND, 0o600)
	if err != nil {
		return nil, &errs.AccessError{Op: op, Reason: fmt.Sprintf("%s: %v", path, err)}
	}
	return &File{
		dir:          dir,
		id:           id,
		f:            fh,
		w:            bufio.NewWriter(fh),
		tracker:      tracker,
		catalog:      cat,
		signer:       sgnr,
		thresholds:   th,
		onCheckpoint: onCheckpoint,
	}, nil
}

// RecoverFile reopens an active cask truncated by a crash for further
// appends, using tracker (built by the caller from a validated replay of the
// file, per spec.md §4.7's recover) as the running segment state, then
// appends an ON_CASKADE_RECOVER checkpoint sealing the salvaged tail.
func RecoverFile(dir string, id ids.CaskId, cat catalog.Catalog, sgnr signer.Signer, th segment.Thresholds, onCheckpoint func(catalog.Checkpoint), tracker *segment.Tracker, now time.Time) (*File, catalog.Checkpoint, error) {
	cf, err := reopenActive(dir, id, cat, sgnr, th, onCheckpoint, tracker, "recover")
	if err != nil {
		return nil, catalog.Checkpoint{}, err
	}
	if err := cf.f.Truncate(int64(tracker.CurrentOffset())); err != nil {
		cf.f.Close()
		return nil, catalog.Checkpoint{}, err
	}
	if _, err := cf.f.Seek(0, io.SeekEnd); err != nil {
		cf.f.Close()
		return nil, catalog.Checkpoint{}, err
	}
	cp, err := cf.writeCheckpointRaw(catalog.OnCaskadeRecover, now)
	if err != nil {
		cf.f.Close()
		return nil, catalog.Checkpoint{}, err
	}
	return cf, cp, nil
}

func buildRecord(code uint8, now time.Time, header []byte, payload []byte, hasPayload bool) (record []byte, payloadOffset uint32, payloadSize uint32, err error) {
	record = wire.Stamp{Code: code, Timestamp: uint64(now.UnixNano())}.Put(nil)
	record = append(record, header...)
	if hasPayload {
		record, err = wire.PutAdjsize4(record, uint32(len(payload)))
		if err != nil {
			return nil, 0, 0, err
		}
		payloadOffset = uint32(len(record))
		record = append(record, payload...)
		payloadSize = uint32(len(payload))
	}
	return record, payloadOffset, payloadSize, nil
}

// appendBytes writes record at the tracker's current offset and flushes it
// to disk, without advancing the tracker itself (callers decide how this
// record counts toward the running digest).
func (f *File) appendBytes(record []byte) (uint32, error) {
	offset := f.tracker.CurrentOffset()
	if _, err := f.w.Write(record); err != nil {
		return 0, err
	}
	if err := f.w.Flush(); err != nil {
		return 0, err
	}
	return offset, nil
}

// writeCheckpointRaw snapshots the tracker, appends a CHECK_POINT record of
// the given type, and installs the successor tracker the snapshot produced.
func (f *File) writeCheckpointRaw(cpType catalog.CheckpointType, now time.Time) (catalog.Checkpoint, error) {
	snap, nextTracker := f.tracker.Checkpoint()
	header := encodeCheckpointFields(snap.CheckpointId, snap.Start, snap.End, cpType)
	var sig []byte
	if f.signer != nil {
		sig = f.signer.Sign(header)
	}
	record, _, _, err := buildRecord(catalog.CheckPoint, now, header, sig, true)
	if err != nil {
		return catalog.Checkpoint{}, err
	}
	if _, err := f.appendBytes(record); err != nil {
		return catalog.Checkpoint{}, err
	}
	// The checkpoint's own bytes belong to the segment it opens, not the one
	// it seals.
	nextTracker.Update(record, now, false)
	f.tracker = nextTracker

	cp := catalog.Checkpoint{
		CaskId:       f.id,
		CheckpointId: snap.CheckpointId,
		Start:        snap.Start,
		End:          snap.End,
		Type:         cpType,
	}
	f.onCheckpoint(cp)
	return cp, nil
}

// WriteCheckpoint appends a manually requested checkpoint.
func (f *File) WriteCheckpoint(now time.Time) (catalog.Checkpoint, error) {
	return f.writeCheckpointRaw(catalog.OnManual, now)
}

// writeEntry is the common path for every entry a caller appends: it builds
// the record, consults the tracker, and writes a checkpoint or performs a
// rollover first if the tracker says so (spec.md §4.6's write_entry).
func (f *File) writeEntry(code uint8, header []byte, payload []byte, hasPayload bool, now time.Time) (landedIn *File, payloadOffset, payloadSize uint32, rollover *RolloverResult, err error) {
	record, payloadOff, paySize, err := buildRecord(code, now, header, payload, hasPayload)
	if err != nil {
		return nil, 0, 0, nil, err
	}

	switch f.tracker.WillItSpill(f.thresholds, now, uint32(len(record))) {
	case segment.OnSize:
		if _, err := f.writeCheckpointRaw(catalog.OnSize, now); err != nil {
			return nil, 0, 0, nil, err
		}
		return f.writeEntry(code, header, payload, hasPayload, now)
	case segment.OnTime:
		if _, err := f.writeCheckpointRaw(catalog.OnTime, now); err != nil {
			return nil, 0, 0, nil, err
		}
		return f.writeEntry(code, header, payload, hasPayload, now)
	case segment.OnNextCask:
		rr, err := f.rollover(now)
		if err != nil {
			return nil, 0, 0, nil, err
		}
		landedIn, payloadOffset, paySize, _, err := rr.NewActive.writeEntry(code, header, payload, hasPayload, now)
		return landedIn, payloadOffset, paySize, rr, err
	default:
		offset, err := f.appendBytes(record)
		if err != nil {
			return nil, 0, 0, nil, err
		}
		f.tracker.Update(record, now, false)
		return f, offset + payloadOff, paySize, nil, nil
	}
}

// WriteData appends a DATA entry. It returns the cask and byte range the
// payload was actually written to (which may be a freshly rolled-over file),
// and the rollover details if one occurred.
func (f *File) WriteData(hash ids.HashKey, blob []byte, now time.Time) (landedIn *File, offset, size uint32, rollover *RolloverResult, err error) {
	return f.writeEntry(catalog.Data, hash.Bytes(), blob, true, now)
}

// WriteLink appends a LINK entry.
func (f *File) WriteLink(from ids.Rake, purpose uint8, to ids.HashKey, now time.Time) (*RolloverResult, error) {
	header := encodeLinkFields(from, purpose, to)
	_, _, _, rollover, err := f.writeEntry(catalog.Link, header, nil, false, now)
	return rollover, err
}

// rollover allocates the next cask-id, appends NEXT_CASK and a terminal
// ON_NEXT_CASK checkpoint to f, seals f by renaming it to its `.cask` suffix,
// and creates the new active cask, seeded with f's id and terminal
// checkpoint (spec.md §4.6 step (ON_NEXT_CASK), P8).
func (f *File) rollover(now time.Time) (*RolloverResult, error) {
	nextID := f.id.Next()
	header := encodeNextCaskFields(ids.CakeForCask(nextID))
	record, _, _, err := buildRecord(catalog.NextCask, now, header, nil, false)
	if err != nil {
		return nil, err
	}
	if _, err := f.appendBytes(record); err != nil {
		return nil, err
	}
	f.tracker.Update(record, now, false)

	cp, err := f.writeCheckpointRaw(catalog.OnNextCask, now)
	if err != nil {
		return nil, err
	}
	if err := f.finalize(); err != nil {
		return nil, err
	}

	newFile, err := Create(f.dir, nextID, &f.id, cp.CheckpointId, f.catalog, f.signer, f.thresholds, f.onCheckpoint, now)
	if err != nil {
		return nil, err
	}
	return &RolloverResult{NewActive: newFile, SealedCheckpoint: cp}, nil
}

// Close runs the same terminal sequence as rollover (NEXT_CASK, then a
// checkpoint) but with next_cask_id = NULL and type = ON_CASKADE_CLOSE, and
// does not create a successor file.
func (f *File) Close(now time.Time) (catalog.Checkpoint, error) {
	header := encodeNextCaskFields(ids.NullCake)
	record, _, _, err := buildRecord(catalog.NextCask, now, header, nil, false)
	if err != nil {
		return catalog.Checkpoint{}, err
	}
	if _, err := f.appendBytes(record); err != nil {
		return catalog.Checkpoint{}, err
	}
	f.tracker.Update(record, now, false)

	cp, err := f.writeCheckpointRaw(catalog.OnCaskadeClose, now)
	if err != nil {
		return cp, err
	}
	return cp, f.finalize()
}

// Pause writes an ON_CASKADE_PAUSE checkpoint and releases the file
// descriptor without renaming the file: it stays `.active` on disk so Resume
// can reopen it later.
func (f *File) Pause(now time.Time) (catalog.Checkpoint, error) {
	cp, err := f.writeCheckpointRaw(catalog.OnCaskadePause, now)
	if err != nil {
		return cp, err
	}
	if err := f.w.Flush(); err != nil {
		return cp, err
	}
	if err := f.f.Close(); err != nil {
		return cp, err
	}
	f.closed = true
	return cp, nil
}

// finalize flushes, closes, and renames f's file from `.active` to `.cask`.
// After finalize, f is no longer writable.
func (f *File) finalize() error {
	if err := f.w.Flush(); err != nil {
		return err
	}
	if err := f.f.Close(); err != nil {
		return err
	}
	if err := os.Rename(ActivePath(f.dir, f.id), SealedPath(f.dir, f.id)); err != nil {
		return err
	}
	f.closed = true
	return nil
}

// Fragment reads size bytes at offset directly from f's own descriptor,
// bypassing any page cache. It is safe to call while f is still the active,
// appendable cask, since offset+size always refers to bytes a write already
// flushed before returning.
func (f *File) Fragment(offset, size uint32) ([]byte, error) {
	buf := make([]byte, size)
	if _, err := f.f.ReadAt(buf, int64(offset)); err != nil && err != io.EOF {
		return nil, err
	}
	return buf, nil
}
