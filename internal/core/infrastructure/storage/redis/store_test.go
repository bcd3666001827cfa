package redis

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==================== Mock redisClient ====================

type mockRedisClient struct {
	data   map[string][]byte
	mu     sync.RWMutex
	closed bool
	failOn string
}

func newMockRedisClient() *mockRedisClient {
	return &mockRedisClient{data: make(map[string][]byte)}
}

func (m *mockRedisClient) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed || m.failOn == "get" {
		return nil, false, fmt.Errorf("connection refused")
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *mockRedisClient) Set(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.failOn == "set" {
		return fmt.Errorf("connection refused")
	}
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *mockRedisClient) Ping(ctx context.Context) error {
	if m.closed {
		return fmt.Errorf("client closed")
	}
	return nil
}

func (m *mockRedisClient) Close() error {
	m.closed = true
	return nil
}

// ==================== 测试 ====================

func TestStore_PutGetUsesPrefixedHexKey(t *testing.T) {
	ctx := context.Background()
	client := newMockRedisClient()
	s := newWithClient(client, "vm:", nil)

	_, ok, err := s.Get(ctx, []byte{0xab})
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Put(ctx, []byte{0xab, 0xcd}, []byte("artifact")))
	assert.Contains(t, client.data, "vm:abcd")

	v, ok, err := s.Get(ctx, []byte{0xab, 0xcd})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("artifact"), v)
}

func TestStore_ClientErrorsAreWrapped(t *testing.T) {
	ctx := context.Background()
	client := newMockRedisClient()
	s := newWithClient(client, "vm:", nil)

	client.failOn = "set"
	err := s.Put(ctx, []byte{1}, []byte("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis set")

	client.failOn = "get"
	_, _, err = s.Get(ctx, []byte{1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis get")
}

func TestStore_PingAndClose(t *testing.T) {
	ctx := context.Background()
	s := newWithClient(newMockRedisClient(), "vm:", nil)
	require.NoError(t, s.Ping(ctx))
	require.NoError(t, s.Close())
	assert.Error(t, s.Ping(ctx))
}
