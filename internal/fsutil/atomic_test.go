package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAtomicWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.txt")

	require.NoError(t, AtomicWrite(path, []byte("hello"), 0o644))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "tmp file should not remain after a successful write")
}

func TestAtomicWrite_Overwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.txt")

	require.NoError(t, AtomicWrite(path, []byte("v1"), 0o644))
	require.NoError(t, AtomicWrite(path, []byte("v2"), 0o644))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(got))
}

func TestAtomicWrite_CreatesParents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "file.json")

	require.NoError(t, AtomicWrite(path, []byte("{}"), 0o644))
	assert.True(t, Exists(path))
}

func TestAtomicWrite_ParentIsFile(t *testing.T) {
	parent := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(parent, []byte("x"), 0o644))

	err := AtomicWrite(filepath.Join(parent, "file.txt"), []byte("data"), 0o644)
	assert.Error(t, err)
}
