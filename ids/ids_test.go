package ids_test

import (
	"strings"
	"testing"

	"github.com/rpcpool/caskade/ids"
	"github.com/stretchr/testify/require"
)

func TestHashKeyOf(t *testing.T) {
	h := ids.Of([]byte("hello"))
	require.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", h.String())
}

func TestHashKeyStreaming(t *testing.T) {
	h := ids.NewHasher()
	h.Update([]byte("hel"))
	h.Update([]byte("lo"))
	require.Equal(t, ids.Of([]byte("hello")), h.Digest())
}

func TestHashKeyCompare(t *testing.T) {
	a := ids.Of([]byte("a"))
	b := ids.Of([]byte("b"))
	require.NotEqual(t, 0, a.Compare(b))
	require.Equal(t, 0, a.Compare(a))
}

func TestRakeTypeTag(t *testing.T) {
	r, err := ids.NewRake(ids.RakeTypeJournal)
	require.NoError(t, err)
	require.Equal(t, ids.RakeTypeJournal, r.Type())

	_, err = ids.NewRake(ids.RakeType(64))
	require.Error(t, err)
}

func TestNullCaskadeRake(t *testing.T) {
	require.Equal(t, ids.RakeTypeCaskade, ids.NullCaskadeRake.Type())
}

func TestCakeRoundTrip(t *testing.T) {
	id := ids.CaskId{CaskadeId: ids.NullCaskadeRake, Idx: 7}
	c := ids.CakeForCask(id)
	decoded, err := ids.CakeFromBytes(c.Bytes())
	require.NoError(t, err)
	require.Equal(t, c, decoded)
}

func TestCaskIdFilenameRoundTrip(t *testing.T) {
	r, err := ids.NewRake(ids.RakeTypeCaskade)
	require.NoError(t, err)
	id := ids.CaskId{CaskadeId: r, Idx: 42}

	stem := id.Filename()
	require.Equal(t, stem, strings.ToLower(stem))

	decoded, err := ids.CaskIdFromFilename(stem)
	require.NoError(t, err)
	require.Equal(t, id, decoded)
}

func TestCaskIdDisplayDistinctFromFilename(t *testing.T) {
	id := ids.CaskId{CaskadeId: ids.NullCaskadeRake, Idx: 123456}
	require.NotEqual(t, id.Filename(), id.String())
}
