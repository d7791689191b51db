package wire_test

import (
	"testing"

	"github.com/rpcpool/caskade/errs"
	"github.com/rpcpool/caskade/wire"
	"github.com/stretchr/testify/require"
)

func TestFixedRoundTrip(t *testing.T) {
	var buf []byte
	buf = wire.PutU8(buf, 0xab)
	buf = wire.PutU16(buf, 0x1234)
	buf = wire.PutU32(buf, 0xdeadbeef)
	buf = wire.PutU64(buf, 0x0102030405060708)
	buf = wire.PutNanotime(buf, 0x0102030405060708)

	u8, buf, err := wire.GetU8(buf)
	require.NoError(t, err)
	require.Equal(t, uint8(0xab), u8)

	u16, buf, err := wire.GetU16(buf)
	require.NoError(t, err)
	require.Equal(t, uint16(0x1234), u16)

	u32, buf, err := wire.GetU32(buf)
	require.NoError(t, err)
	require.Equal(t, uint32(0xdeadbeef), u32)

	u64, buf, err := wire.GetU64(buf)
	require.NoError(t, err)
	require.Equal(t, uint64(0x0102030405060708), u64)

	nt, buf, err := wire.GetNanotime(buf)
	require.NoError(t, err)
	require.Equal(t, uint64(0x0102030405060708), nt)
	require.Empty(t, buf)
}

func TestNanotimeIsBigEndian(t *testing.T) {
	buf := wire.PutNanotime(nil, 1)
	require.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 1}, buf)
}

func TestAdjsizeRoundTrip(t *testing.T) {
	for _, v := range []uint32{0, 1, 127, 128, 16383, 16384, wire.Adjsize3Max} {
		buf, err := wire.PutAdjsize3(nil, v)
		require.NoError(t, err)
		got, rest, err := wire.GetAdjsize(buf)
		require.NoError(t, err)
		require.Equal(t, v, got)
		require.Empty(t, rest)
	}
}

func TestAdjsize3RejectsTooLarge(t *testing.T) {
	_, err := wire.PutAdjsize3(nil, wire.Adjsize3Max+1)
	require.Error(t, err)
}

func TestAdjsize4RoundTrip(t *testing.T) {
	buf, err := wire.PutAdjsize4(nil, wire.Adjsize4Max)
	require.NoError(t, err)
	got, _, err := wire.GetAdjsize(buf)
	require.NoError(t, err)
	require.Equal(t, uint32(wire.Adjsize4Max), got)
}

func TestAdjsizeTerminalByteHasHighBitSet(t *testing.T) {
	buf, err := wire.PutAdjsize3(nil, 200) // needs two bytes
	require.NoError(t, err)
	require.Len(t, buf, 2)
	require.Zero(t, buf[0]&0x80)
	require.NotZero(t, buf[1]&0x80)
}

func TestAdjsizeNeedsMoreBytes(t *testing.T) {
	buf, err := wire.PutAdjsize3(nil, 200)
	require.NoError(t, err)
	_, _, err = wire.GetAdjsize(buf[:1])
	require.ErrorIs(t, err, errs.ErrNeedMoreBytes)
}

func TestStringRoundTrip(t *testing.T) {
	buf, err := wire.PutString(nil, "DATA")
	require.NoError(t, err)
	s, rest, err := wire.GetString(buf)
	require.NoError(t, err)
	require.Equal(t, "DATA", s)
	require.Empty(t, rest)
}

func TestStampRoundTrip(t *testing.T) {
	s := wire.Stamp{Code: 1, Timestamp: 1234567890}
	buf := s.Put(nil)
	require.Len(t, buf, wire.StampSize)
	got, rest, err := wire.GetStamp(buf)
	require.NoError(t, err)
	require.Equal(t, s, got)
	require.Empty(t, rest)
}

func TestFixedRejectsWrongLength(t *testing.T) {
	require.Panics(t, func() {
		wire.PutFixed(nil, []byte{1, 2, 3}, 4)
	})
}
