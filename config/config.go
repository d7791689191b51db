// Package config implements the persisted CaskadeConfig descriptor and the
// optional signer secret file, per spec.md §6. It loads its JSON form with
// the stdlib encoder directly (see SPEC_FULL.md §2.3 for why no third-party
// config library was a better fit for this machine-written descriptor).
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rpcpool/caskade/ids"
	"github.com/rpcpool/caskade/signer"
)

// ChunkSize is the unit spec.md §6 expresses every other size default and
// constraint in terms of.
const ChunkSize = 2 * 1024 * 1024 // 2 MiB

const (
	defaultMaxCaskSize     = 2 * 1024 * 1024 * 1024 // 2 GiB
	defaultCheckpointSize  = 128 * ChunkSize
	defaultAutoChunkCutoff = 2 * ChunkSize
)

// EtcDirName is the caskade directory's metadata subdirectory.
const EtcDirName = ".hs_etc"

// ConfigFileName is the config's file name within EtcDirName.
const ConfigFileName = "config.json"

// KeyFileName is the signer secret's file name within EtcDirName.
const KeyFileName = "key.bin"

// SignerSpec is the persisted, tagged description of which signer (if any)
// protects this caskade's checkpoints.
type SignerSpec struct {
	Kind signer.Kind `json:"kind"`
}

// CaskadeConfig is the descriptor persisted at .hs_etc/config.json.
type CaskadeConfig struct {
	// Origin is the Rake identifying this caskade; every cask file in the
	// directory must carry this as its caskade_id.
	Origin ids.Rake `json:"origin"`

	// MaxCaskSize bounds how large a single cask file may grow before a
	// rollover is forced. Constraint: 2*ChunkSize < MaxCaskSize <= 2^31.
	MaxCaskSize uint32 `json:"max_cask_size"`

	// CheckpointSize is the number of bytes written since the last
	// checkpoint that forces a new one. Constraint: > 2*ChunkSize.
	CheckpointSize uint32 `json:"checkpoint_size"`

	// CheckpointTTL is the duration after a segment's first activity that
	// forces a time-based checkpoint. Zero means no time-based checkpoints.
	CheckpointTTL time.Duration `json:"checkpoint_ttl,omitempty"`

	// AutoChunkCutoff is reserved for future streaming-write chunking.
	// Constraint: ChunkSize <= AutoChunkCutoff <= 2*ChunkSize.
	AutoChunkCutoff uint32 `json:"auto_chunk_cutoff"`

	// Signer describes the optional checkpoint signer. Nil means checkpoints
	// are written unsigned.
	Signer *SignerSpec `json:"signer,omitempty"`
}

// Defaults returns a CaskadeConfig with every default from spec.md §6
// applied, for the given origin.
func Defaults(origin ids.Rake) CaskadeConfig {
	return CaskadeConfig{
		Origin:          origin,
		MaxCaskSize:     defaultMaxCaskSize,
		CheckpointSize:  defaultCheckpointSize,
		AutoChunkCutoff: defaultAutoChunkCutoff,
	}
}

// Validate checks the constraints spec.md §6 places on each field.
func (c CaskadeConfig) Validate() error {
	if c.MaxCaskSize <= 2*ChunkSize || uint64(c.MaxCaskSize) > 1<<31 {
		return fmt.Errorf("config: max_cask_size %d must satisfy 2*%d < size <= 2^31", c.MaxCaskSize, ChunkSize)
	}
	if c.CheckpointSize <= 2*ChunkSize {
		return fmt.Errorf("config: checkpoint_size %d must be > 2*%d", c.CheckpointSize, ChunkSize)
	}
	if c.AutoChunkCutoff < ChunkSize || c.AutoChunkCutoff > 2*ChunkSize {
		return fmt.Errorf("config: auto_chunk_cutoff %d must satisfy %d <= cutoff <= %d", c.AutoChunkCutoff, ChunkSize, 2*ChunkSize)
	}
	return nil
}

// EtcDir returns the metadata subdirectory path for a caskade rooted at dir.
func EtcDir(dir string) string {
	return filepath.Join(dir, EtcDirName)
}

// Load reads and validates the config persisted under dir.
func Load(dir string) (CaskadeConfig, error) {
	path := filepath.Join(EtcDir(dir), ConfigFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return CaskadeConfig{}, err
	}
	var c CaskadeConfig
	if err := json.Unmarshal(data, &c); err != nil {
		return CaskadeConfig{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return CaskadeConfig{}, err
	}
	return c, nil
}

// Save persists c under dir, creating .hs_etc if necessary.
func Save(dir string, c CaskadeConfig) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(EtcDir(dir), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(EtcDir(dir), ConfigFileName)
	return os.WriteFile(path, data, 0o600)
}

// LoadKey reads the signer secret persisted under dir, if any.
func LoadKey(dir string) ([]byte, error) {
	return os.ReadFile(filepath.Join(EtcDir(dir), KeyFileName))
}

// SaveKey persists a signer secret under dir with mode 0600, as spec.md §3
// requires.
func SaveKey(dir string, secret []byte) error {
	if err := os.MkdirAll(EtcDir(dir), 0o700); err != nil {
		return err
	}
	path := filepath.Join(EtcDir(dir), KeyFileName)
	return os.WriteFile(path, secret, 0o600)
}
