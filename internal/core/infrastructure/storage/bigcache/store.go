// Package bigcache 提供基于BigCache的有界进程内产物存储
package bigcache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/allegro/bigcache/v3"

	memoryconfig "github.com/weisyn/vmrunner/internal/config/storage/memory"
	"github.com/weisyn/vmrunner/pkg/interfaces/infrastructure/log"
)

// Store 基于BigCache的字节键值存储
//
// 容量满时由BigCache按写入顺序淘汰最旧条目，淘汰等价于未命中，
// 条目不按时间过期（CleanWindow=0）。
type Store struct {
	cache  *bigcache.BigCache
	logger log.Logger
	mutex  sync.RWMutex
	closed bool
}

// New 创建BigCache存储实例
func New(config *memoryconfig.Config, logger log.Logger) (*Store, error) {
	// LifeWindow 只在 CleanWindow>0 时生效，这里给一个足够长的值
	cfg := bigcache.DefaultConfig(24 * time.Hour)
	cfg.Shards = config.GetShards()
	cfg.CleanWindow = 0
	cfg.HardMaxCacheSize = config.GetMaxSizeMB()
	cfg.MaxEntrySize = config.GetMaxEntrySize()
	cfg.MaxEntriesInWindow = config.GetMaxEntriesInWindow()
	cfg.Verbose = false

	cache, err := bigcache.New(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("创建BigCache实例失败: %w", err)
	}

	if logger != nil {
		logger.Infof("BigCache产物存储已创建: max=%dMB shards=%d", config.GetMaxSizeMB(), config.GetShards())
	}

	return &Store{
		cache:  cache,
		logger: logger,
	}, nil
}

// Get 获取值；不存在或已被淘汰时返回 (nil, false, nil)
func (s *Store) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if s.closed {
		return nil, false, fmt.Errorf("bigcache store is closed")
	}

	value, err := s.cache.Get(string(key))
	if err != nil {
		if errors.Is(err, bigcache.ErrEntryNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return value, true, nil
}

// Put 写入值
//
// 条目大于单个分片容量时BigCache会拒绝写入，这里按存储故障返回。
func (s *Store) Put(ctx context.Context, key []byte, value []byte) error {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if s.closed {
		return fmt.Errorf("bigcache store is closed")
	}

	if err := s.cache.Set(string(key), value); err != nil {
		if s.logger != nil {
			s.logger.Warnf("BigCache写入失败: size=%d err=%v", len(value), err)
		}
		return err
	}
	return nil
}

// Len 当前条目数
func (s *Store) Len() int {
	return s.cache.Len()
}

// Close 关闭缓存并释放资源
func (s *Store) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return nil
	}
	err := s.cache.Close()
	if err == nil {
		s.closed = true
	}
	return err
}
