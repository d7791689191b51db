package segment_test

import (
	"testing"
	"time"

	"github.com/rpcpool/caskade/ids"
	"github.com/rpcpool/caskade/segment"
	"github.com/stretchr/testify/require"
)

func thresholds() segment.Thresholds {
	return segment.Thresholds{
		MaxCaskSize:    1024,
		CheckpointSize: 256,
		ReservedTail:   64,
	}
}

func TestWillItSpillNone(t *testing.T) {
	tr := segment.New(0)
	require.Equal(t, segment.None, tr.WillItSpill(thresholds(), time.Now(), 10))
}

func TestWillItSpillOnSize(t *testing.T) {
	tr := segment.New(0)
	tr.Update(make([]byte, 200), time.Now(), false)
	require.Equal(t, segment.OnSize, tr.WillItSpill(thresholds(), time.Now(), 100))
}

func TestWillItSpillOnNextCask(t *testing.T) {
	tr := segment.New(0)
	tr.Update(make([]byte, 900), time.Now(), false)
	require.Equal(t, segment.OnNextCask, tr.WillItSpill(thresholds(), time.Now(), 100))
}

func TestWillItSpillOnTime(t *testing.T) {
	th := thresholds()
	th.CheckpointTTL = time.Millisecond
	tr := segment.New(0)
	tr.Update([]byte("x"), time.Now(), false)
	time.Sleep(5 * time.Millisecond)
	require.Equal(t, segment.OnTime, tr.WillItSpill(th, time.Now(), 1))
}

func TestHeaderEntryDoesNotCountAsActivity(t *testing.T) {
	th := thresholds()
	th.CheckpointTTL = time.Millisecond
	tr := segment.New(0)
	tr.Update([]byte("header-bytes"), time.Now(), true)
	time.Sleep(5 * time.Millisecond)
	require.Equal(t, segment.None, tr.WillItSpill(th, time.Now(), 1))
}

func TestCheckpointDigestMatchesHashOfWrittenBytes(t *testing.T) {
	tr := segment.New(0)
	a := []byte("hello")
	b := []byte("world")
	tr.Update(a, time.Now(), false)
	tr.Update(b, time.Now(), false)

	snap, next := tr.Checkpoint()
	require.Equal(t, ids.Of(append(append([]byte{}, a...), b...)), snap.CheckpointId)
	require.Equal(t, uint32(0), snap.Start)
	require.Equal(t, uint32(len(a)+len(b)), snap.End)
	require.Equal(t, snap.End, next.StartOffset())
	require.Equal(t, snap.End, next.CurrentOffset())
}
