package catalog_test

import (
	"testing"

	"github.com/rpcpool/caskade/catalog"
	"github.com/stretchr/testify/require"
)

func TestBuiltinEncodeDecodeRoundTrip(t *testing.T) {
	known := catalog.Builtin()
	buf, err := known.Encode()
	require.NoError(t, err)

	decoded, err := catalog.Decode(buf)
	require.NoError(t, err)
	require.Equal(t, known, decoded)
}

func TestMergeAdmitsSurrogate(t *testing.T) {
	known := catalog.Builtin()
	onDisk := append(catalog.Catalog{}, known...)
	onDisk = append(onDisk, catalog.JotType{Code: 9, Name: "TAG", HeaderSize: 4, HasPayload: true})

	merged, err := catalog.Merge(known, onDisk)
	require.NoError(t, err)
	require.Len(t, merged, len(known)+1)

	tag, ok := merged.Lookup(9)
	require.True(t, ok)
	require.True(t, tag.Surrogate)
}

func TestMergeRejectsDisagreement(t *testing.T) {
	known := catalog.Builtin()
	onDisk := append(catalog.Catalog{}, known...)
	// Corrupt DATA's header size.
	for i := range onDisk {
		if onDisk[i].Code == catalog.Data {
			onDisk[i].HeaderSize = 99
		}
	}

	_, err := catalog.Merge(known, onDisk)
	require.Error(t, err)
}

func TestCheckpointTypeIsTerminal(t *testing.T) {
	require.True(t, catalog.OnNextCask.IsTerminal())
	require.True(t, catalog.OnCaskadeClose.IsTerminal())
	require.False(t, catalog.OnCaskadePause.IsTerminal())
	require.False(t, catalog.OnManual.IsTerminal())
}
