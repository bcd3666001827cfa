package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	configimpl "github.com/weisyn/vmrunner/internal/config"
	"github.com/weisyn/vmrunner/internal/core/infrastructure/storage/bigcache"
	"github.com/weisyn/vmrunner/internal/core/infrastructure/storage/memory"
	"github.com/weisyn/vmrunner/internal/core/infrastructure/storage/tiered"
	"github.com/weisyn/vmrunner/pkg/types"
)

func newProvider(t *testing.T, backend string) ServiceInput {
	t.Helper()
	provider, err := configimpl.NewProvider(&types.AppConfig{
		Storage: &types.UserStorageConfig{
			Backend:     types.StringPtr(backend),
			DataRoot:    types.StringPtr(t.TempDir()),
			MemoryMaxMB: types.IntPtr(64),
		},
	})
	require.NoError(t, err)
	return ServiceInput{Provider: provider}
}

func TestCreateArtifactStore_Backends(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		backend string
		check   func(t *testing.T, store interface{})
	}{
		{"memory", func(t *testing.T, s interface{}) { assert.IsType(t, &memory.Store{}, s) }},
		{"bigcache", func(t *testing.T, s interface{}) { assert.IsType(t, &bigcache.Store{}, s) }},
		{"badger", func(t *testing.T, s interface{}) { assert.NotNil(t, s) }},
		{"tiered", func(t *testing.T, s interface{}) { assert.IsType(t, &tiered.Store{}, s) }},
	}

	for _, tc := range cases {
		t.Run(tc.backend, func(t *testing.T) {
			store, err := CreateArtifactStore(ctx, newProvider(t, tc.backend))
			require.NoError(t, err)
			tc.check(t, store)

			require.NoError(t, store.Put(ctx, []byte("key"), []byte("value")))
			v, ok, err := store.Get(ctx, []byte("key"))
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, []byte("value"), v)

			assert.NoError(t, store.Close())
		})
	}
}
