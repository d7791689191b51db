package filebytes_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rpcpool/caskade/filebytes"
	"github.com/stretchr/testify/require"
)

func writeTestFile(t *testing.T, contents []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.cask")
	require.NoError(t, os.WriteFile(path, contents, 0o600))
	return path
}

func TestReadWithinOnePage(t *testing.T) {
	contents := make([]byte, 64)
	for i := range contents {
		contents[i] = byte(i)
	}
	path := writeTestFile(t, contents)

	c := filebytes.New(16, 4)
	got, err := c.Read(path, 4, 8)
	require.NoError(t, err)
	require.Equal(t, contents[4:12], got)
}

func TestReadSpanningMultiplePages(t *testing.T) {
	contents := make([]byte, 64)
	for i := range contents {
		contents[i] = byte(i)
	}
	path := writeTestFile(t, contents)

	c := filebytes.New(16, 4)
	got, err := c.Read(path, 10, 30)
	require.NoError(t, err)
	require.Equal(t, contents[10:40], got)
}

func TestEvictionUnderCapacity(t *testing.T) {
	contents := make([]byte, 256)
	path := writeTestFile(t, contents)

	c := filebytes.New(16, 2)
	for offset := uint32(0); offset < 256; offset += 16 {
		_, err := c.Read(path, offset, 16)
		require.NoError(t, err)
	}
	_, err := c.Read(path, 0, 16)
	require.NoError(t, err)
}

func TestForgetClosesHandle(t *testing.T) {
	contents := []byte("some bytes")
	path := writeTestFile(t, contents)

	c := filebytes.New(16, 4)
	_, err := c.Read(path, 0, uint32(len(contents)))
	require.NoError(t, err)
	require.NoError(t, c.Forget(path))

	_, err = c.Read(path, 0, uint32(len(contents)))
	require.NoError(t, err)
}
