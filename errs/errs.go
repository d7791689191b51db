// Package errs defines the typed error kinds the caskade engine surfaces to
// callers, per spec.md §7. Kinds are never collapsed into a generic error so
// that callers can use errors.As/errors.Is to branch on them.
package errs

import "fmt"

// stringError is a named-string error.
type stringError string

func (e stringError) Error() string { return string(e) }

// AccessError indicates a write or state transition was attempted on a
// non-writable caskade (closed, paused where resume is required, or
// pre-recover after an unclean shutdown).
type AccessError struct {
	Op     string
	Reason string
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("caskade: %s: not writable: %s", e.Op, e.Reason)
}

// DataValidationError indicates a digest mismatch on a DATA payload, a
// checkpoint, or a CASK_HEADER's catalog. Caskade.ReadBytes also returns it
// for a hash with no known location.
type DataValidationError struct {
	Want, Got string
	Context   string
}

func (e *DataValidationError) Error() string {
	return fmt.Sprintf("caskade: validation failed (%s): want %s, got %s", e.Context, e.Want, e.Got)
}

// NotQuietError indicates recovery's quiet period observed new bytes
// appended to the active cask; the caller must retry.
type NotQuietError struct {
	Before, After int64
}

func (e *NotQuietError) Error() string {
	return fmt.Sprintf("caskade: recover: active cask grew from %d to %d bytes during quiet period", e.Before, e.After)
}

// SignatureError indicates a checkpoint carried a signature that did not
// validate.
type SignatureError struct {
	CheckpointID string
}

func (e *SignatureError) Error() string {
	return fmt.Sprintf("caskade: checkpoint %s: signature did not validate", e.CheckpointID)
}

// FormatError indicates a catalog disagreement on a known type, an
// impossible offset, an unterminated varint, or unexpected EOF at a required
// field.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("caskade: format error: %s", e.Reason)
}

// ErrNeedMoreBytes is returned by decoders, internal to the wire/cask
// packages, when a buffer ends before a required field is complete. It is
// recoverable: on the last cask, Open takes it as the mark of an unclean
// shutdown, and Recover stops at it, keeping every entry decoded before the
// incomplete trailing record.
const ErrNeedMoreBytes = stringError("caskade: need more bytes")
