package caskade_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rpcpool/caskade/caskade"
	"github.com/rpcpool/caskade/config"
	"github.com/rpcpool/caskade/ids"
	"github.com/stretchr/testify/require"
)

func smallConfig(origin ids.Rake) *config.CaskadeConfig {
	cfg := config.Defaults(origin)
	cfg.MaxCaskSize = 5 << 20
	cfg.CheckpointSize = 8 << 20
	return &cfg
}

func TestOpenBootstrapsFreshDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "caskade")
	c, err := caskade.Open(dir, nil, nil)
	require.NoError(t, err)
	require.Equal(t, caskade.StateWritable, c.State())
	require.NotEmpty(t, c.Origin().String())

	_, err = os.Stat(config.EtcDir(dir))
	require.NoError(t, err)
}

func TestWriteBytesDedupsByHash(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "caskade")
	c, err := caskade.Open(dir, nil, nil)
	require.NoError(t, err)

	blob := []byte("one blob, twice")
	h1, err := c.WriteBytes(blob, false)
	require.NoError(t, err)
	h2, err := c.WriteBytes(blob, false)
	require.NoError(t, err)
	require.Equal(t, h1, h2)

	got, err := c.ReadBytes(h1)
	require.NoError(t, err)
	require.Equal(t, blob, got)
	require.True(t, c.Contains(h1))
}

func TestWriteBytesForceRewrites(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "caskade")
	c, err := caskade.Open(dir, nil, nil)
	require.NoError(t, err)

	blob := []byte("rewrite me")
	_, err = c.WriteBytes(blob, false)
	require.NoError(t, err)
	before := len(c.Checkpoints())

	_, err = c.WriteBytes(blob, true)
	require.NoError(t, err)
	// force bypasses dedup but does not itself force a checkpoint.
	require.Equal(t, before, len(c.Checkpoints()))
}

func TestSetLinkRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "caskade")
	c, err := caskade.Open(dir, nil, nil)
	require.NoError(t, err)

	blob := []byte("link target")
	hash, err := c.WriteBytes(blob, false)
	require.NoError(t, err)

	anchor, err := ids.NewRake(ids.RakeTypeJournal)
	require.NoError(t, err)

	changed, err := c.SetLink(anchor, 3, hash)
	require.NoError(t, err)
	require.True(t, changed)

	got, ok := c.LinkTarget(anchor, 3)
	require.True(t, ok)
	require.Equal(t, hash, got)

	changed, err = c.SetLink(anchor, 3, hash)
	require.NoError(t, err)
	require.False(t, changed, "re-binding the same target should be a no-op")
}

func TestCheckpointPauseResumeCycle(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "caskade")
	c, err := caskade.Open(dir, nil, nil)
	require.NoError(t, err)

	_, err = c.WriteBytes([]byte("before pause"), false)
	require.NoError(t, err)

	cp, err := c.Pause()
	require.NoError(t, err)
	require.Equal(t, "ON_CASKADE_PAUSE", cp.Type.String())
	require.Equal(t, caskade.StatePaused, c.State())

	_, err = c.WriteBytes([]byte("nope"), false)
	require.Error(t, err, "writes must be rejected while paused")

	cp, err = c.Resume()
	require.NoError(t, err)
	require.Equal(t, "ON_CASKADE_RESUME", cp.Type.String())
	require.Equal(t, caskade.StateWritable, c.State())

	_, err = c.WriteBytes([]byte("after resume"), false)
	require.NoError(t, err)
}

func TestCloseRejectsFurtherWrites(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "caskade")
	c, err := caskade.Open(dir, nil, nil)
	require.NoError(t, err)

	_, err = c.WriteBytes([]byte("last write"), false)
	require.NoError(t, err)

	_, err = c.Close()
	require.NoError(t, err)
	require.Equal(t, caskade.StateClosed, c.State())

	_, err = c.WriteBytes([]byte("too late"), false)
	require.Error(t, err)
}

func TestReopenReplaysExistingData(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "caskade")
	c, err := caskade.Open(dir, nil, nil)
	require.NoError(t, err)

	blob := []byte("survives a reopen")
	hash, err := c.WriteBytes(blob, false)
	require.NoError(t, err)

	anchor, err := ids.NewRake(ids.RakeTypeJournal)
	require.NoError(t, err)
	_, err = c.SetLink(anchor, 1, hash)
	require.NoError(t, err)

	_, err = c.Close()
	require.NoError(t, err)

	reopened, err := caskade.Open(dir, nil, nil)
	require.NoError(t, err)
	require.Equal(t, caskade.StateClosed, reopened.State())

	got, err := reopened.ReadBytes(hash)
	require.NoError(t, err)
	require.Equal(t, blob, got)

	target, ok := reopened.LinkTarget(anchor, 1)
	require.True(t, ok)
	require.Equal(t, hash, target)
}

func TestIterateVisitsEveryDataEntry(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "caskade")
	c, err := caskade.Open(dir, nil, nil)
	require.NoError(t, err)

	want := map[ids.HashKey][]byte{}
	for _, s := range []string{"a", "b", "c"} {
		blob := []byte(s)
		hash, err := c.WriteBytes(blob, false)
		require.NoError(t, err)
		want[hash] = blob
	}

	seen := map[ids.HashKey]bool{}
	err = c.Iterate(func(e caskade.DataEntry) error {
		seen[e.Hash] = true
		return nil
	})
	require.NoError(t, err)
	for h := range want {
		require.True(t, seen[h], "expected hash %s to be visited", h)
	}
}

func TestStorageSizeGrowsWithWrites(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "caskade")
	c, err := caskade.Open(dir, nil, nil)
	require.NoError(t, err)

	before, err := c.StorageSize()
	require.NoError(t, err)

	_, err = c.WriteBytes(make([]byte, 4096), false)
	require.NoError(t, err)

	after, err := c.StorageSize()
	require.NoError(t, err)
	require.Greater(t, after, before)
	require.Greater(t, c.IndexStorageSize(), uint64(0))
}

func TestRecoverAfterUncleanShutdownWithMultipleCheckpoints(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "caskade")
	c, err := caskade.Open(dir, nil, nil)
	require.NoError(t, err)

	blob1 := []byte("before first checkpoint")
	hash1, err := c.WriteBytes(blob1, false)
	require.NoError(t, err)
	_, err = c.Checkpoint()
	require.NoError(t, err)

	blob2 := []byte("before second checkpoint")
	hash2, err := c.WriteBytes(blob2, false)
	require.NoError(t, err)
	_, err = c.Checkpoint()
	require.NoError(t, err, "second on-disk checkpoint must validate against a digest that includes the first checkpoint's own bytes")

	blob3 := []byte("never checkpointed, simulates a crash")
	hash3, err := c.WriteBytes(blob3, false)
	require.NoError(t, err)

	// Simulate an unclean shutdown: reopen the directory without closing or
	// pausing first, which leaves the active file exactly as written.
	reopened, err := caskade.Open(dir, nil, nil)
	require.NoError(t, err)
	require.Equal(t, caskade.StateNeedsRecover, reopened.State())

	cp, err := reopened.Recover(0)
	require.NoError(t, err)
	require.Equal(t, "ON_CASKADE_RECOVER", cp.Type.String())
	require.Equal(t, caskade.StateWritable, reopened.State())

	for hash, blob := range map[ids.HashKey][]byte{hash1: blob1, hash2: blob2, hash3: blob3} {
		got, err := reopened.ReadBytes(hash)
		require.NoError(t, err)
		require.Equal(t, blob, got)
	}

	_, err = reopened.WriteBytes([]byte("after recover"), false)
	require.NoError(t, err)
}

func TestRolloverAcrossCaskBoundary(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "caskade")
	origin, err := ids.NewRake(ids.RakeTypeCaskade)
	require.NoError(t, err)

	c, err := caskade.Open(dir, nil, smallConfig(origin))
	require.NoError(t, err)

	// Two 3 MiB blobs cannot share one 5 MiB cask: the second rolls over.
	first := make([]byte, 3<<20)
	second := make([]byte, 3<<20)
	second[0] = 1
	hash1, err := c.WriteBytes(first, false)
	require.NoError(t, err)
	hash2, err := c.WriteBytes(second, false)
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var sealed, active int
	for _, e := range entries {
		switch filepath.Ext(e.Name()) {
		case ".cask":
			sealed++
		case ".active":
			active++
		}
	}
	require.Equal(t, 1, sealed)
	require.Equal(t, 1, active)

	for hash, blob := range map[ids.HashKey][]byte{hash1: first, hash2: second} {
		got, err := c.ReadBytes(hash)
		require.NoError(t, err)
		require.Equal(t, blob, got)
	}
}
