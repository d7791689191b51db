package catalog

import "github.com/rpcpool/caskade/ids"

// CheckpointType records why a checkpoint was written.
type CheckpointType uint8

const (
	// OnSize marks a checkpoint triggered by crossing checkpoint_size bytes
	// written since the previous checkpoint.
	OnSize CheckpointType = iota
	// OnTime marks a checkpoint triggered by checkpoint_ttl elapsing since
	// the segment's first activity.
	OnTime
	// OnNextCask marks the terminal checkpoint written immediately before a
	// cask rolls over to a new file.
	OnNextCask
	// OnCaskadeClose marks the terminal checkpoint written when a caskade is
	// closed.
	OnCaskadeClose
	// OnCaskadePause marks the checkpoint written when a caskade is paused.
	OnCaskadePause
	// OnCaskadeResume marks the checkpoint written when a paused caskade is
	// resumed.
	OnCaskadeResume
	// OnCaskadeRecover marks the checkpoint appended after a crash recovery
	// completes.
	OnCaskadeRecover
	// OnManual marks a checkpoint requested explicitly via Caskade.Checkpoint.
	OnManual
	// OnCaskHeader marks the virtual, not-on-disk checkpoint CaskFile pushes
	// immediately after writing a CASK_HEADER, so the checkpoint list's last
	// entry always identifies the currently writable file (spec.md §4.6).
	OnCaskHeader
)

// String names a CheckpointType for logging and metric labels.
func (t CheckpointType) String() string {
	switch t {
	case OnSize:
		return "ON_SIZE"
	case OnTime:
		return "ON_TIME"
	case OnNextCask:
		return "ON_NEXT_CASK"
	case OnCaskadeClose:
		return "ON_CASKADE_CLOSE"
	case OnCaskadePause:
		return "ON_CASKADE_PAUSE"
	case OnCaskadeResume:
		return "ON_CASKADE_RESUME"
	case OnCaskadeRecover:
		return "ON_CASKADE_RECOVER"
	case OnManual:
		return "ON_MANUAL"
	case OnCaskHeader:
		return "ON_CASK_HEADER"
	default:
		return "UNKNOWN"
	}
}

// IsTerminal reports whether t marks the last checkpoint of a cask file
// (I4): the cask is never appended to again after such a checkpoint.
func (t CheckpointType) IsTerminal() bool {
	return t == OnNextCask || t == OnCaskadeClose
}

// Checkpoint is the in-memory record of a checkpoint: either parsed from an
// on-disk CHECK_POINT entry, or the virtual entry CaskFile pushes after a
// CASK_HEADER.
type Checkpoint struct {
	CaskId       ids.CaskId
	CheckpointId ids.HashKey
	Start        uint32
	End          uint32
	Type         CheckpointType
	// Virtual is true for the CaskFile-pushed ON_CASK_HEADER entry, which
	// exists only in memory and is never written to disk.
	Virtual bool
}
