package artifact

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileReference_ExistsAndModTime(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")

	ref := File(path)
	assert.False(t, ref.Exists())
	_, ok := ref.ModTime()
	assert.False(t, ok)

	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))

	assert.True(t, ref.Exists())
	mtime, ok := ref.ModTime()
	require.True(t, ok)
	assert.False(t, mtime.IsZero())
}

func TestFile_CleansPath(t *testing.T) {
	a := File("a/./b")
	b := File("a/b")
	assert.Equal(t, a, b)
	assert.Equal(t, a.String(), b.String())
}
