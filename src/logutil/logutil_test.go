package logutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func TestRotatingWriterShiftsArchives(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	w, err := openRotating(path, 10, 2)
	require.NoError(t, err)
	defer w.Close()

	for _, line := range []string{"aaaaaaaa\n", "bbbbbbbb\n", "cccccccc\n", "dddddddd\n"} {
		_, err := w.Write([]byte(line))
		require.NoError(t, err)
	}

	assert.Equal(t, "dddddddd\n", readFile(t, path))
	assert.Equal(t, "cccccccc\n", readFile(t, path+".1"))
	assert.Equal(t, "bbbbbbbb\n", readFile(t, path+".2"))
	_, err = os.Stat(path + ".3")
	assert.True(t, os.IsNotExist(err))
}

func TestRotatingWriterAppendsUnderLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	require.NoError(t, os.WriteFile(path, []byte("old\n"), 0o644))

	w, err := openRotating(path, 100, 3)
	require.NoError(t, err)
	_, err = w.Write([]byte("new\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.Equal(t, "old\nnew\n", readFile(t, path))
}

func TestOversizedFileIsArchivedOnOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("x", 20)), 0o644))

	w, err := openRotating(path, 10, 3)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.Empty(t, readFile(t, path))
	assert.Len(t, readFile(t, path+".1"), 20)
}
