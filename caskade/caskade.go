// Package caskade implements the directory-level engine of spec.md §4.7: it
// owns the single active cask, the in-memory hash->location and
// link->target indexes built by sequential replay, the ordered checkpoint
// list, and the open/writable/paused/closed/needs-recover lifecycle.
package caskade

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	logging "github.com/ipfs/go-log/v2"

	"github.com/rpcpool/caskade/cask"
	"github.com/rpcpool/caskade/catalog"
	"github.com/rpcpool/caskade/config"
	"github.com/rpcpool/caskade/errs"
	"github.com/rpcpool/caskade/filebytes"
	"github.com/rpcpool/caskade/ids"
	"github.com/rpcpool/caskade/metrics"
	"github.com/rpcpool/caskade/segment"
	"github.com/rpcpool/caskade/signer"
)

var log = logging.Logger("caskade")

// State names where a Caskade sits in its open -> writable <-> paused ->
// closed lifecycle (spec.md §3).
type State int

const (
	// StateWritable accepts write_bytes/set_link/checkpoint/pause/close.
	StateWritable State = iota
	// StatePaused accepts only resume.
	StatePaused
	// StateClosed accepts nothing further; reads still work.
	StateClosed
	// StateNeedsRecover means the active cask's tail was left by an unclean
	// shutdown and only recover() can make the caskade writable again.
	StateNeedsRecover
)

func (s State) String() string {
	switch s {
	case StateWritable:
		return "writable"
	case StatePaused:
		return "paused"
	case StateClosed:
		return "closed"
	case StateNeedsRecover:
		return "needs_recover"
	default:
		return "unknown"
	}
}

// DataEntry pairs a content hash with the location write_bytes recorded it
// at, as yielded by Iterate.
type DataEntry struct {
	Hash ids.HashKey
	Loc  cask.DataLocation
}

// Caskade is a directory of casks: the single active segment, the indexes
// replay built from it, and the checkpoint history. All mutating operations
// are serialized on mu, per spec.md §5's single-writer model.
type Caskade struct {
	mu sync.Mutex

	dir        string
	cfg        config.CaskadeConfig
	catalog    catalog.Catalog
	signer     signer.Signer
	thresholds segment.Thresholds

	state      State
	active     *cask.File
	lastCaskId ids.CaskId

	dataLocations map[ids.HashKey]cask.DataLocation
	datalinks     map[ids.Rake]map[uint8]ids.HashKey
	checkpoints   []catalog.Checkpoint

	fb *filebytes.Cache
}

type caskEntry struct {
	path string
	id   ids.CaskId
}

// Open opens the caskade rooted at dir, bootstrapping a fresh one if dir
// does not exist. extra names any caller-defined jot types beyond the five
// built-in ones (spec.md §4.2's forward-compatible catalog). cfg is
// consulted only when bootstrapping; on reopen, the persisted config wins.
func Open(dir string, extra catalog.Catalog, cfg *config.CaskadeConfig) (*Caskade, error) {
	known := append(catalog.Builtin(), extra...)

	_, err := os.Stat(dir)
	switch {
	case os.IsNotExist(err):
		return bootstrap(dir, known, cfg)
	case err != nil:
		return nil, err
	default:
		return reopen(dir, known)
	}
}

func bootstrap(dir string, known catalog.Catalog, override *config.CaskadeConfig) (*Caskade, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	origin, err := ids.NewRake(ids.RakeTypeCaskade)
	if err != nil {
		return nil, err
	}

	cfg := config.Defaults(origin)
	if override != nil {
		cfg = *override
		cfg.Origin = origin
	}
	if err := config.Save(dir, cfg); err != nil {
		return nil, err
	}

	var sgnr signer.Signer
	if cfg.Signer != nil && cfg.Signer.Kind == signer.KindHasher {
		secret, err := signer.GenerateSecret()
		if err != nil {
			return nil, err
		}
		if err := config.SaveKey(dir, secret); err != nil {
			return nil, err
		}
		sgnr, err = signer.NewHasherSigner(secret)
		if err != nil {
			return nil, err
		}
	}

	th, err := thresholdsFor(cfg, sgnr)
	if err != nil {
		return nil, err
	}

	c := &Caskade{
		dir:           dir,
		cfg:           cfg,
		catalog:       known,
		signer:        sgnr,
		thresholds:    th,
		dataLocations: make(map[ids.HashKey]cask.DataLocation),
		datalinks:     make(map[ids.Rake]map[uint8]ids.HashKey),
		fb:            filebytes.New(0, 0),
	}

	bootstrapID := ids.CaskId{CaskadeId: origin, Idx: 0}
	f, err := cask.Create(dir, bootstrapID, nil, ids.NullHash, known, sgnr, th, c.onCheckpoint, time.Now())
	if err != nil {
		return nil, err
	}
	c.active = f
	c.lastCaskId = bootstrapID
	c.state = StateWritable
	log.Infow("bootstrapped caskade", "dir", dir, "origin", origin.String())
	return c, nil
}

func reopen(dir string, known catalog.Catalog) (*Caskade, error) {
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, err
	}

	var sgnr signer.Signer
	if cfg.Signer != nil && cfg.Signer.Kind == signer.KindHasher {
		secret, err := config.LoadKey(dir)
		if err != nil {
			return nil, err
		}
		sgnr, err = signer.NewHasherSigner(secret)
		if err != nil {
			return nil, err
		}
	}

	th, err := thresholdsFor(cfg, sgnr)
	if err != nil {
		return nil, err
	}

	entries, err := listCaskFiles(dir, cfg.Origin)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, &errs.FormatError{Reason: fmt.Sprintf("%s: no cask files for origin %s", dir, cfg.Origin)}
	}

	c := &Caskade{
		dir:           dir,
		cfg:           cfg,
		catalog:       known,
		signer:        sgnr,
		thresholds:    th,
		dataLocations: make(map[ids.HashKey]cask.DataLocation),
		datalinks:     make(map[ids.Rake]map[uint8]ids.HashKey),
		fb:            filebytes.New(0, 0),
	}

	for i, entry := range entries {
		isLast := i == len(entries)-1
		data, err := os.ReadFile(entry.path)
		if err != nil {
			return nil, err
		}
		result, rerr := cask.ReadFile(data, entry.id, known, sgnr, cask.ValidationOptions{}, c.replayCollector())
		c.lastCaskId = entry.id
		if rerr != nil && (!isLast || !errors.Is(rerr, errs.ErrNeedMoreBytes)) {
			return nil, fmt.Errorf("caskade: replaying %s: %w", entry.path, rerr)
		}
		if !isLast {
			continue
		}
		switch {
		case rerr != nil || !result.HasCheckpoint:
			c.state = StateNeedsRecover
		case result.LastCheckpoint.Type == catalog.OnCaskadeClose:
			c.state = StateClosed
		case result.LastCheckpoint.Type == catalog.OnCaskadePause:
			c.state = StatePaused
		default:
			c.state = StateNeedsRecover
		}
	}

	log.Infow("reopened caskade", "dir", dir, "state", c.state.String(), "cask", c.lastCaskId.String())
	return c, nil
}

func thresholdsFor(cfg config.CaskadeConfig, sgnr signer.Signer) (segment.Thresholds, error) {
	sigSize := 0
	if sgnr != nil {
		sigSize = sgnr.SignatureSize()
	}
	tail, err := cask.ReservedTailSize(sigSize)
	if err != nil {
		return segment.Thresholds{}, err
	}
	return segment.Thresholds{
		MaxCaskSize:    cfg.MaxCaskSize,
		CheckpointSize: cfg.CheckpointSize,
		CheckpointTTL:  cfg.CheckpointTTL,
		ReservedTail:   tail,
	}, nil
}

func listCaskFiles(dir string, origin ids.Rake) ([]caskEntry, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []caskEntry
	for _, e := range dirEntries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		var stem string
		switch {
		case strings.HasSuffix(name, ".active"):
			stem = strings.TrimSuffix(name, ".active")
		case strings.HasSuffix(name, ".cask"):
			stem = strings.TrimSuffix(name, ".cask")
		default:
			continue
		}
		id, err := ids.CaskIdFromFilename(stem)
		if err != nil {
			continue
		}
		if id.CaskadeId != origin {
			continue
		}
		out = append(out, caskEntry{path: filepath.Join(dir, name), id: id})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id.Idx < out[j].id.Idx })
	return out, nil
}

func (c *Caskade) onCheckpoint(cp catalog.Checkpoint) {
	c.checkpoints = append(c.checkpoints, cp)
	metrics.CheckpointsTotal.WithLabelValues(c.originLabel(), cp.Type.String()).Inc()
}

func (c *Caskade) replayCollector() cask.Collector {
	return cask.Collector{
		OnData: func(hash ids.HashKey, loc cask.DataLocation) error {
			c.dataLocations[hash] = loc
			return nil
		},
		OnLink: func(from ids.Rake, purpose uint8, to ids.HashKey) error {
			if c.datalinks[from] == nil {
				c.datalinks[from] = make(map[uint8]ids.HashKey)
			}
			c.datalinks[from][purpose] = to
			return nil
		},
		OnCheckpoint: func(cp catalog.Checkpoint) error {
			c.onCheckpoint(cp)
			return nil
		},
	}
}

func (c *Caskade) originLabel() string { return c.cfg.Origin.String() }

func (c *Caskade) requireWritable(op string) error {
	if c.state != StateWritable || c.active == nil {
		return &errs.AccessError{Op: op, Reason: fmt.Sprintf("caskade is %s", c.state)}
	}
	return nil
}

// Origin returns the Rake identifying this caskade.
func (c *Caskade) Origin() ids.Rake { return c.cfg.Origin }

// Dir returns the directory this caskade is rooted at.
func (c *Caskade) Dir() string { return c.dir }

// State reports where the caskade sits in its lifecycle.
func (c *Caskade) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// WriteBytes appends blob as a DATA entry, unless its hash is already
// present and force is false, in which case the existing hash is returned
// idempotently without writing anything (spec.md §4.7, P1/P2).
func (c *Caskade) WriteBytes(blob []byte, force bool) (ids.HashKey, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	origin := c.originLabel()
	metrics.OutstandingWrites.WithLabelValues(origin).Inc()
	defer metrics.OutstandingWrites.WithLabelValues(origin).Dec()
	if err := c.requireWritable("write_bytes"); err != nil {
		return ids.HashKey{}, err
	}
	hash := ids.Of(blob)
	if !force {
		if _, ok := c.dataLocations[hash]; ok {
			metrics.WritesTotal.WithLabelValues("data", "dedup").Inc()
			return hash, nil
		}
	}

	start := time.Now()
	landed, offset, size, rollover, err := c.active.WriteData(hash, blob, start)
	if err != nil {
		metrics.WritesTotal.WithLabelValues("data", "error").Inc()
		return ids.HashKey{}, err
	}
	c.active = landed
	c.dataLocations[hash] = cask.DataLocation{CaskId: landed.Id(), Offset: offset, Size: size}
	if rollover != nil {
		metrics.RolloversTotal.WithLabelValues(origin).Inc()
	}
	metrics.WritesTotal.WithLabelValues("data", "ok").Inc()
	metrics.BytesWrittenTotal.WithLabelValues(origin).Add(float64(size))
	metrics.ActiveCaskIndex.WithLabelValues(origin).Set(float64(landed.Id().Idx))
	metrics.WriteLatencyHistogram.WithLabelValues(origin, "data").Observe(time.Since(start).Seconds())
	return hash, nil
}

// SetLink binds target as anchor's current value for purpose, unless that
// is already the current binding, in which case it reports false and writes
// nothing (spec.md §4.7, P3). anchor must be a journal-kind Rake.
func (c *Caskade) SetLink(anchor ids.Rake, purpose uint8, target ids.HashKey) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	origin := c.originLabel()
	metrics.OutstandingWrites.WithLabelValues(origin).Inc()
	defer metrics.OutstandingWrites.WithLabelValues(origin).Dec()
	if err := c.requireWritable("set_link"); err != nil {
		return false, err
	}
	if anchor.Type() != ids.RakeTypeJournal {
		return false, &errs.AccessError{Op: "set_link", Reason: "anchor must be a journal-kind rake"}
	}
	if existing, ok := c.datalinks[anchor]; ok {
		if cur, ok := existing[purpose]; ok && cur == target {
			metrics.WritesTotal.WithLabelValues("link", "dedup").Inc()
			return false, nil
		}
	}

	start := time.Now()
	rollover, err := c.active.WriteLink(anchor, purpose, target, start)
	if err != nil {
		metrics.WritesTotal.WithLabelValues("link", "error").Inc()
		return false, err
	}
	if rollover != nil {
		c.active = rollover.NewActive
		metrics.RolloversTotal.WithLabelValues(origin).Inc()
	}
	if c.datalinks[anchor] == nil {
		c.datalinks[anchor] = make(map[uint8]ids.HashKey)
	}
	c.datalinks[anchor][purpose] = target
	metrics.WritesTotal.WithLabelValues("link", "ok").Inc()
	metrics.ActiveCaskIndex.WithLabelValues(origin).Set(float64(c.active.Id().Idx))
	metrics.WriteLatencyHistogram.WithLabelValues(origin, "link").Observe(time.Since(start).Seconds())
	return true, nil
}

// Checkpoint appends a manually requested checkpoint, even if no bytes have
// been written since the previous one (spec.md §4.7's documented policy
// choice for this call).
func (c *Caskade) Checkpoint() (catalog.Checkpoint, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireWritable("checkpoint"); err != nil {
		return catalog.Checkpoint{}, err
	}
	return c.active.WriteCheckpoint(time.Now())
}

// Pause writes an ON_CASKADE_PAUSE checkpoint, releases the active file
// descriptor, and moves the caskade to StatePaused (O3: nothing can follow
// the pause checkpoint until Resume is called).
func (c *Caskade) Pause() (catalog.Checkpoint, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireWritable("pause"); err != nil {
		return catalog.Checkpoint{}, err
	}
	cp, err := c.active.Pause(time.Now())
	if err != nil {
		return cp, err
	}
	c.lastCaskId = c.active.Id()
	c.active = nil
	c.state = StatePaused
	return cp, nil
}

// Resume reopens the paused active cask and writes an ON_CASKADE_RESUME
// checkpoint, returning the caskade to StateWritable.
func (c *Caskade) Resume() (catalog.Checkpoint, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StatePaused {
		return catalog.Checkpoint{}, &errs.AccessError{Op: "resume", Reason: fmt.Sprintf("caskade is %s, not paused", c.state)}
	}
	sigSize := 0
	if c.signer != nil {
		sigSize = c.signer.SignatureSize()
	}
	f, cp, err := cask.ResumeFile(c.dir, c.lastCaskId, c.catalog, c.signer, c.thresholds, c.onCheckpoint, sigSize, time.Now())
	if err != nil {
		return cp, err
	}
	c.active = f
	c.state = StateWritable
	return cp, nil
}

// Recover salvages an active cask left by an unclean shutdown: if quiet is
// positive, it first confirms no other writer is still appending to the
// file, then replays the file with every validation on and appends an
// ON_CASKADE_RECOVER checkpoint sealing the salvaged tail (spec.md §4.7,
// P10).
func (c *Caskade) Recover(quiet time.Duration) (catalog.Checkpoint, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateNeedsRecover {
		return catalog.Checkpoint{}, &errs.AccessError{Op: "recover", Reason: fmt.Sprintf("caskade is %s, not needs_recover", c.state)}
	}
	origin := c.originLabel()
	path := cask.ActivePath(c.dir, c.lastCaskId)

	if quiet > 0 {
		before, err := fileSize(path)
		if err != nil {
			return catalog.Checkpoint{}, err
		}
		time.Sleep(quiet)
		after, err := fileSize(path)
		if err != nil {
			return catalog.Checkpoint{}, err
		}
		if after != before {
			metrics.RecoveryRunsTotal.WithLabelValues(origin, "not_quiet").Inc()
			return catalog.Checkpoint{}, &errs.NotQuietError{Before: before, After: after}
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return catalog.Checkpoint{}, err
	}

	// The lenient pass Open ran over this file recorded checkpoints that the
	// validated replay below supersedes; drop them before appending the
	// fresh set.
	kept := c.checkpoints[:0:0]
	for _, cp := range c.checkpoints {
		if cp.CaskId != c.lastCaskId {
			kept = append(kept, cp)
		}
	}
	c.checkpoints = kept

	result, rerr := cask.ReadFile(data, c.lastCaskId, c.catalog, c.signer, cask.Recovering(), c.replayCollector())
	if rerr != nil && !errors.Is(rerr, errs.ErrNeedMoreBytes) {
		metrics.RecoveryRunsTotal.WithLabelValues(origin, "failed").Inc()
		return catalog.Checkpoint{}, rerr
	}
	if !result.HasCheckpoint {
		metrics.RecoveryRunsTotal.WithLabelValues(origin, "failed").Inc()
		return catalog.Checkpoint{}, &errs.FormatError{Reason: fmt.Sprintf("%s: no checkpoint found during recovery", path)}
	}

	tracker := segment.New(result.LastCheckpoint.End)
	tracker.Update(data[result.LastCheckpoint.End:result.Consumed], time.Now(), false)

	f, cp, err := cask.RecoverFile(c.dir, c.lastCaskId, c.catalog, c.signer, c.thresholds, c.onCheckpoint, tracker, time.Now())
	if err != nil {
		metrics.RecoveryRunsTotal.WithLabelValues(origin, "failed").Inc()
		return catalog.Checkpoint{}, err
	}
	c.active = f
	c.state = StateWritable
	metrics.RecoveryRunsTotal.WithLabelValues(origin, "ok").Inc()
	log.Warnw("recovered caskade after unclean shutdown", "dir", c.dir, "cask", c.lastCaskId.String(), "salvaged_bytes", result.Consumed)
	return cp, nil
}

func fileSize(path string) (int64, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

// Close runs the terminal NEXT_CASK(NULL)+ON_CASKADE_CLOSE sequence on the
// active cask and moves the caskade to StateClosed (O4: no further writes
// are ever accepted, by this instance or a freshly reopened one).
func (c *Caskade) Close() (catalog.Checkpoint, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireWritable("close"); err != nil {
		return catalog.Checkpoint{}, err
	}
	cp, err := c.active.Close(time.Now())
	if err != nil {
		return cp, err
	}
	c.active = nil
	c.state = StateClosed
	if err := c.fb.Close(); err != nil {
		return cp, err
	}
	return cp, nil
}

// ReadBytes returns the blob previously recorded under hash.
func (c *Caskade) ReadBytes(hash ids.HashKey) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	origin := c.originLabel()
	loc, ok := c.dataLocations[hash]
	if !ok {
		metrics.ReadLatencyHistogram.WithLabelValues(origin, "miss").Observe(0)
		return nil, &errs.DataValidationError{Want: hash.String(), Got: "", Context: "read_bytes: hash not found"}
	}
	start := time.Now()
	if c.active != nil && loc.CaskId == c.active.Id() {
		b, err := c.active.Fragment(loc.Offset, loc.Size)
		metrics.ReadLatencyHistogram.WithLabelValues(origin, "active").Observe(time.Since(start).Seconds())
		return b, err
	}
	b, err := c.fb.Read(cask.SealedPath(c.dir, loc.CaskId), loc.Offset, loc.Size)
	metrics.ReadLatencyHistogram.WithLabelValues(origin, "sealed").Observe(time.Since(start).Seconds())
	return b, err
}

// Contains reports whether hash has a known location.
func (c *Caskade) Contains(hash ids.HashKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.dataLocations[hash]
	return ok
}

// LinkTarget returns anchor's current binding for purpose, if any.
func (c *Caskade) LinkTarget(anchor ids.Rake, purpose uint8) (ids.HashKey, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.datalinks[anchor]
	if !ok {
		return ids.HashKey{}, false
	}
	h, ok := m[purpose]
	return h, ok
}

// Checkpoints returns a copy of the ordered checkpoint history.
func (c *Caskade) Checkpoints() []catalog.Checkpoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]catalog.Checkpoint, len(c.checkpoints))
	copy(out, c.checkpoints)
	return out
}

// Iterate calls fn once for every known hash->location pair. Iteration
// order is unspecified.
func (c *Caskade) Iterate(fn func(DataEntry) error) error {
	c.mu.Lock()
	snapshot := make([]DataEntry, 0, len(c.dataLocations))
	for h, loc := range c.dataLocations {
		snapshot = append(snapshot, DataEntry{Hash: h, Loc: loc})
	}
	c.mu.Unlock()
	for _, e := range snapshot {
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

// StorageSize returns the total bytes occupied by cask files on disk.
func (c *Caskade) StorageSize() (uint64, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return 0, err
	}
	var total uint64
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || (!strings.HasSuffix(name, ".active") && !strings.HasSuffix(name, ".cask")) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return 0, err
		}
		total += uint64(info.Size())
	}
	return total, nil
}

// IndexStorageSize estimates the in-memory bytes held by the hash and link
// indexes, for observability.
func (c *Caskade) IndexStorageSize() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	const dataLocEntry = ids.HashSize + ids.RakeSize + 8 + 4 + 4
	const linkEntry = ids.RakeSize + 1 + ids.HashSize
	total := uint64(len(c.dataLocations)) * dataLocEntry
	for _, m := range c.datalinks {
		total += uint64(len(m)) * linkEntry
	}
	return total
}
