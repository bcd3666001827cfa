// Package redis 提供多节点共享的产物存储（Redis）
//
// 🎯 **使用场景**：同一机房的多个节点共享编译产物，新节点启动即可命中。
//
// 📋 **键格式**：{key_prefix}{hex(cache key)}，值为记录原始字节，不设置过期时间。
package redis

import (
	"context"
	"encoding/hex"
	"fmt"

	redisconfig "github.com/weisyn/vmrunner/internal/config/storage/redis"
	"github.com/weisyn/vmrunner/pkg/interfaces/infrastructure/log"
)

// redisClient Redis 客户端接口（用于依赖注入和测试）
type redisClient interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Ping(ctx context.Context) error
	Close() error
}

// Store Redis 字节键值存储
type Store struct {
	client    redisClient
	keyPrefix string
	logger    log.Logger
}

// New 连接 Redis 并创建存储
func New(ctx context.Context, config *redisconfig.Config, logger log.Logger) (*Store, error) {
	client, err := newGoRedisClient(ctx, config.GetOptions())
	if err != nil {
		return nil, err
	}
	if logger != nil {
		logger.Infof("Redis产物存储已连接: addr=%s prefix=%s", config.GetAddr(), config.GetKeyPrefix())
	}
	return newWithClient(client, config.GetKeyPrefix(), logger), nil
}

func newWithClient(client redisClient, keyPrefix string, logger log.Logger) *Store {
	return &Store{
		client:    client,
		keyPrefix: keyPrefix,
		logger:    logger,
	}
}

func (s *Store) redisKey(key []byte) string {
	return s.keyPrefix + hex.EncodeToString(key)
}

// Get 获取值；不存在时返回 (nil, false, nil)
func (s *Store) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	v, ok, err := s.client.Get(ctx, s.redisKey(key))
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	return v, ok, nil
}

// Put 写入值（SET 对单键原子）
func (s *Store) Put(ctx context.Context, key []byte, value []byte) error {
	if err := s.client.Set(ctx, s.redisKey(key), value); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Ping 健康检查
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

// Close 关闭连接
func (s *Store) Close() error {
	return s.client.Close()
}
