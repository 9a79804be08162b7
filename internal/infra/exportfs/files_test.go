package exportfs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "contents.md")

	require.NoError(t, WriteFileAtomic(path, []byte("first")))
	require.NoError(t, WriteFileAtomic(path, []byte("second")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, ent := range entries {
		assert.False(t, strings.HasPrefix(ent.Name(), ".tmp-"), "leftover temp file %s", ent.Name())
	}
}

func TestWriteFileAtomicMissingDir(t *testing.T) {
	err := WriteFileAtomic(filepath.Join(t.TempDir(), "missing", "f"), []byte("x"))
	require.Error(t, err)
}

func TestSanitizeComponent(t *testing.T) {
	assert.Equal(t, "a-b", SanitizeComponent("a/b", "posix"))
	assert.Equal(t, "notes: 2024", SanitizeComponent("notes: 2024", "posix"))
	assert.Equal(t, "notes- 2024", SanitizeComponent("notes: 2024", "windows"))
	assert.Equal(t, "untitled", SanitizeComponent("   ", "posix"))
	assert.Equal(t, "untitled", SanitizeComponent("..", "posix"))
	assert.Equal(t, "CON-file", SanitizeComponent("CON", "windows"))
}

func TestSanitizeComponentTruncates(t *testing.T) {
	long := strings.Repeat("x", 300)
	got := SanitizeComponent(long, "posix")
	assert.Len(t, got, maxComponentLen)
}
