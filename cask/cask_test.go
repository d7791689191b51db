package cask_test

import (
	"os"
	"testing"
	"time"

	"github.com/rpcpool/caskade/catalog"
	"github.com/rpcpool/caskade/cask"
	"github.com/rpcpool/caskade/ids"
	"github.com/rpcpool/caskade/segment"
	"github.com/rpcpool/caskade/signer"
	"github.com/stretchr/testify/require"
)

func newThresholds(t *testing.T, maxCaskSize, checkpointSize uint32) segment.Thresholds {
	t.Helper()
	tail, err := cask.ReservedTailSize(0)
	require.NoError(t, err)
	return segment.Thresholds{MaxCaskSize: maxCaskSize, CheckpointSize: checkpointSize, ReservedTail: tail}
}

func TestCreateWritesHeaderAndVirtualCheckpoint(t *testing.T) {
	dir := t.TempDir()
	caskadeId, err := ids.NewRake(ids.RakeTypeCaskade)
	require.NoError(t, err)
	id := ids.CaskId{CaskadeId: caskadeId, Idx: 0}

	var checkpoints []catalog.Checkpoint
	f, err := cask.Create(dir, id, nil, ids.NullHash, catalog.Builtin(), nil, newThresholds(t, 1<<20, 1<<18),
		func(cp catalog.Checkpoint) { checkpoints = append(checkpoints, cp) }, time.Now())
	require.NoError(t, err)

	require.Len(t, checkpoints, 1)
	require.True(t, checkpoints[0].Virtual)
	require.Equal(t, catalog.OnCaskHeader, checkpoints[0].Type)

	_, err = os.Stat(cask.ActivePath(dir, id))
	require.NoError(t, err)

	_, err = f.WriteCheckpoint(time.Now())
	require.NoError(t, err)
}

func TestWriteDataAndReadBack(t *testing.T) {
	dir := t.TempDir()
	caskadeId, err := ids.NewRake(ids.RakeTypeCaskade)
	require.NoError(t, err)
	id := ids.CaskId{CaskadeId: caskadeId, Idx: 0}

	f, err := cask.Create(dir, id, nil, ids.NullHash, catalog.Builtin(), nil, newThresholds(t, 1<<20, 1<<18), func(catalog.Checkpoint) {}, time.Now())
	require.NoError(t, err)

	blob := []byte("hello caskade")
	hash := ids.Of(blob)
	landed, offset, size, rollover, err := f.WriteData(hash, blob, time.Now())
	require.NoError(t, err)
	require.Nil(t, rollover)
	require.Equal(t, uint32(len(blob)), size)

	got, err := landed.Fragment(offset, size)
	require.NoError(t, err)
	require.Equal(t, blob, got)
}

func TestRolloverProducesLinkedHeader(t *testing.T) {
	dir := t.TempDir()
	caskadeId, err := ids.NewRake(ids.RakeTypeCaskade)
	require.NoError(t, err)
	id := ids.CaskId{CaskadeId: caskadeId, Idx: 0}

	var checkpoints []catalog.Checkpoint
	collect := func(cp catalog.Checkpoint) { checkpoints = append(checkpoints, cp) }

	// A 189-byte header plus the 343-byte first record fits under
	// 1024 minus the 93-byte reserved tail; the 543-byte second record does
	// not, but fits in a fresh cask.
	th := newThresholds(t, 1024, 1<<18)
	f, err := cask.Create(dir, id, nil, ids.NullHash, catalog.Builtin(), nil, th, collect, time.Now())
	require.NoError(t, err)

	first := make([]byte, 300)
	_, _, _, rollover, err := f.WriteData(ids.Of(first), first, time.Now())
	require.NoError(t, err)
	require.Nil(t, rollover)

	blob := make([]byte, 500)
	landed, _, _, rollover, err := f.WriteData(ids.Of(blob), blob, time.Now())
	require.NoError(t, err)
	require.NotNil(t, rollover)
	require.Equal(t, catalog.OnNextCask, rollover.SealedCheckpoint.Type)
	require.Equal(t, ids.CaskId{CaskadeId: caskadeId, Idx: 1}, landed.Id())

	_, err = os.Stat(cask.SealedPath(dir, id))
	require.NoError(t, err)
}

func TestPauseResumeRoundTrip(t *testing.T) {
	dir := t.TempDir()
	caskadeId, err := ids.NewRake(ids.RakeTypeCaskade)
	require.NoError(t, err)
	id := ids.CaskId{CaskadeId: caskadeId, Idx: 0}

	th := newThresholds(t, 1<<20, 1<<18)
	f, err := cask.Create(dir, id, nil, ids.NullHash, catalog.Builtin(), nil, th, func(catalog.Checkpoint) {}, time.Now())
	require.NoError(t, err)

	blob := []byte("before pause")
	_, _, _, _, err = f.WriteData(ids.Of(blob), blob, time.Now())
	require.NoError(t, err)

	_, err = f.Pause(time.Now())
	require.NoError(t, err)

	resumed, cp, err := cask.ResumeFile(dir, id, catalog.Builtin(), nil, th, func(catalog.Checkpoint) {}, 0, time.Now())
	require.NoError(t, err)
	require.Equal(t, catalog.OnCaskadeResume, cp.Type)

	blob2 := []byte("after resume")
	landed, offset, size, _, err := resumed.WriteData(ids.Of(blob2), blob2, time.Now())
	require.NoError(t, err)
	got, err := landed.Fragment(offset, size)
	require.NoError(t, err)
	require.Equal(t, blob2, got)
}

func TestCloseSealsFile(t *testing.T) {
	dir := t.TempDir()
	caskadeId, err := ids.NewRake(ids.RakeTypeCaskade)
	require.NoError(t, err)
	id := ids.CaskId{CaskadeId: caskadeId, Idx: 0}

	th := newThresholds(t, 1<<20, 1<<18)
	f, err := cask.Create(dir, id, nil, ids.NullHash, catalog.Builtin(), nil, th, func(catalog.Checkpoint) {}, time.Now())
	require.NoError(t, err)

	cp, err := f.Close(time.Now())
	require.NoError(t, err)
	require.Equal(t, catalog.OnCaskadeClose, cp.Type)

	_, err = os.Stat(cask.ActivePath(dir, id))
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(cask.SealedPath(dir, id))
	require.NoError(t, err)
}

func TestReadFileReplaysWrittenEntries(t *testing.T) {
	dir := t.TempDir()
	caskadeId, err := ids.NewRake(ids.RakeTypeCaskade)
	require.NoError(t, err)
	id := ids.CaskId{CaskadeId: caskadeId, Idx: 0}

	secret, err := signer.GenerateSecret()
	require.NoError(t, err)
	s, err := signer.NewHasherSigner(secret)
	require.NoError(t, err)

	th, err := cask.ReservedTailSize(s.SignatureSize())
	require.NoError(t, err)
	thresholds := segment.Thresholds{MaxCaskSize: 1 << 20, CheckpointSize: 1 << 18, ReservedTail: th}

	f, err := cask.Create(dir, id, nil, ids.NullHash, catalog.Builtin(), s, thresholds, func(catalog.Checkpoint) {}, time.Now())
	require.NoError(t, err)

	blob := []byte("replay me")
	hash := ids.Of(blob)
	_, _, _, _, err = f.WriteData(hash, blob, time.Now())
	require.NoError(t, err)

	anchor, err := ids.NewRake(ids.RakeTypeJournal)
	require.NoError(t, err)
	_, err = f.WriteLink(anchor, 1, hash, time.Now())
	require.NoError(t, err)

	_, err = f.WriteCheckpoint(time.Now())
	require.NoError(t, err)
	_, err = f.Close(time.Now())
	require.NoError(t, err)

	data, err := os.ReadFile(cask.SealedPath(dir, id))
	require.NoError(t, err)

	var gotData []ids.HashKey
	var gotLink struct {
		from    ids.Rake
		purpose uint8
		to      ids.HashKey
	}
	result, err := cask.ReadFile(data, id, catalog.Builtin(), s, cask.Recovering(), cask.Collector{
		OnData: func(h ids.HashKey, loc cask.DataLocation) error {
			gotData = append(gotData, h)
			return nil
		},
		OnLink: func(from ids.Rake, purpose uint8, to ids.HashKey) error {
			gotLink.from, gotLink.purpose, gotLink.to = from, purpose, to
			return nil
		},
	})
	require.NoError(t, err)
	require.Equal(t, uint32(len(data)), result.Consumed)
	require.Equal(t, []ids.HashKey{hash}, gotData)
	require.Equal(t, anchor, gotLink.from)
	require.Equal(t, uint8(1), gotLink.purpose)
	require.Equal(t, hash, gotLink.to)
	require.Equal(t, catalog.OnCaskadeClose, result.LastCheckpoint.Type)
}
