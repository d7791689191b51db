// Package segment implements the per-active-cask bookkeeping of spec.md
// §4.5: a running digest over the bytes written since the last checkpoint,
// and the decision of when a checkpoint or cask rollover is due, as an
// explicit decision object that accounts for time-based and size-based
// checkpoints as well as rollover.
package segment

import (
	"time"

	"github.com/rpcpool/caskade/ids"
)

// Reason is the outcome of Tracker.WillItSpill.
type Reason int

const (
	// None means the next entry can be appended without a checkpoint or
	// rollover first.
	None Reason = iota
	// OnSize means bytes_since_cp plus the next entry would cross
	// checkpoint_size: write a checkpoint first.
	OnSize
	// OnTime means checkpoint_ttl has elapsed since the segment's first
	// activity: write a checkpoint first.
	OnTime
	// OnNextCask means the next entry would not fit before max_cask_size
	// (minus the reserved tail for the terminal NEXT_CASK+CHECK_POINT
	// sequence): roll over to a new cask.
	OnNextCask
)

// Thresholds carries the subset of CaskadeConfig the spill decision needs.
type Thresholds struct {
	MaxCaskSize    uint32
	CheckpointSize uint32
	// CheckpointTTL is zero when the caskade carries no time-based
	// checkpoint policy.
	CheckpointTTL time.Duration
	// ReservedTail is the byte size of the terminal NEXT_CASK+CHECK_POINT
	// sequence a rollover or close will need to write; P7 is upheld by
	// reserving this much headroom before a file is considered full.
	ReservedTail uint32
}

// Tracker tracks the digest and byte accounting for the segment of a cask
// file since its last checkpoint (or since the cask's CASK_HEADER, for the
// first segment).
type Tracker struct {
	hasher                   *ids.Hasher
	startOffset              uint32
	currentOffset            uint32
	firstActivity            *time.Time
	bytesSinceLastCheckpoint uint32
}

// New returns a Tracker starting at startOffset, with nothing written yet.
func New(startOffset uint32) *Tracker {
	return &Tracker{hasher: ids.NewHasher(), startOffset: startOffset, currentOffset: startOffset}
}

// StartOffset returns the offset this segment began at.
func (t *Tracker) StartOffset() uint32 { return t.startOffset }

// CurrentOffset returns the offset the next entry will be written at.
func (t *Tracker) CurrentOffset() uint32 { return t.currentOffset }

// Update advances the tracker past a record that was just appended. isHeader
// should be true only for the cask's own CASK_HEADER entry, which does not
// count as "activity" for time-based checkpoint purposes.
func (t *Tracker) Update(record []byte, now time.Time, isHeader bool) {
	t.hasher.Update(record)
	t.currentOffset += uint32(len(record))
	if !isHeader {
		if t.firstActivity == nil {
			activity := now
			t.firstActivity = &activity
		}
		t.bytesSinceLastCheckpoint += uint32(len(record))
	}
}

// WillItSpill decides whether the next entry of size nextEntrySize needs a
// checkpoint or rollover written ahead of it, per spec.md §4.5.
func (t *Tracker) WillItSpill(th Thresholds, now time.Time, nextEntrySize uint32) Reason {
	if t.currentOffset+nextEntrySize > th.MaxCaskSize-th.ReservedTail {
		return OnNextCask
	}
	if t.bytesSinceLastCheckpoint > 0 && th.CheckpointTTL > 0 && t.firstActivity != nil {
		if now.Sub(*t.firstActivity) >= th.CheckpointTTL {
			return OnTime
		}
	}
	if t.bytesSinceLastCheckpoint+nextEntrySize > th.CheckpointSize {
		return OnSize
	}
	return None
}

// CheckpointSnapshot is the tuple Tracker.Checkpoint produces: the digest
// over exactly the bytes [start, end), and the range itself.
type CheckpointSnapshot struct {
	CheckpointId ids.HashKey
	Start        uint32
	End          uint32
}

// Checkpoint snapshots the tracker's current digest and range, and returns a
// fresh successor tracker starting where this one left off.
func (t *Tracker) Checkpoint() (CheckpointSnapshot, *Tracker) {
	snap := CheckpointSnapshot{
		CheckpointId: t.hasher.Digest(),
		Start:        t.startOffset,
		End:          t.currentOffset,
	}
	return snap, New(t.currentOffset)
}
