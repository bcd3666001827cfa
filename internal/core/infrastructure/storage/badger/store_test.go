package badger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	badgerconfig "github.com/weisyn/vmrunner/internal/config/storage/badger"
)

func newTestStore(t *testing.T, path string) *Store {
	t.Helper()
	cfg := badgerconfig.NewFromOptions(&badgerconfig.BadgerOptions{
		Path:             path,
		MemTableSize:     8 << 20,
		ValueLogFileSize: 16 << 20,
		BlockCacheSize:   8 << 20,
		InMemory:         path == "",
	})
	s, err := New(cfg, nil)
	require.NoError(t, err)
	return s
}

func TestStore_PutGetInMemory(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, "")
	defer s.Close()

	_, ok, err := s.Get(ctx, []byte("missing"))
	require.NoError(t, err)
	assert.False(t, ok, "不存在的键应返回未命中而不是错误")

	require.NoError(t, s.Put(ctx, []byte("k"), []byte("v")))
	v, ok, err := s.Get(ctx, []byte("k"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), v)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, s.Delete(ctx, []byte("k")))
	_, ok, _ = s.Get(ctx, []byte("k"))
	assert.False(t, ok)
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s := newTestStore(t, dir)
	require.NoError(t, s.Put(ctx, []byte("artifact"), []byte{1, 2, 3}))
	require.NoError(t, s.Close())

	s = newTestStore(t, dir)
	defer s.Close()
	v, ok, err := s.Get(ctx, []byte("artifact"))
	require.NoError(t, err)
	assert.True(t, ok, "重新打开后应能读到之前写入的产物")
	assert.Equal(t, []byte{1, 2, 3}, v)
}

func TestStore_RejectsWritesAfterClose(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, "")
	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "重复关闭应为空操作")

	assert.Error(t, s.Put(ctx, []byte("k"), []byte("v")))
	_, _, err := s.Get(ctx, []byte("k"))
	assert.Error(t, err)
}
