package utils

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveDataPath(t *testing.T) {
	abs := filepath.Join(t.TempDir(), "cache")
	assert.Equal(t, abs, ResolveDataPath(abs), "绝对路径应原样返回")

	root := t.TempDir()
	t.Setenv("VMRUNNER_HOME", root)
	assert.Equal(t, filepath.Join(root, "data", "badger"), ResolveDataPath("./data/badger"))
}

func TestEnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, EnsureDir(dir))
	assert.DirExists(t, dir)
}
