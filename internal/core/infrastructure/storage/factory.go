// Package storage 提供编译产物存储的工厂实现
package storage

import (
	"context"
	"fmt"
	"path/filepath"

	storageconfig "github.com/weisyn/vmrunner/internal/config/storage"
	badgerconfig "github.com/weisyn/vmrunner/internal/config/storage/badger"
	memoryconfig "github.com/weisyn/vmrunner/internal/config/storage/memory"
	redisconfig "github.com/weisyn/vmrunner/internal/config/storage/redis"
	"github.com/weisyn/vmrunner/internal/core/infrastructure/storage/badger"
	"github.com/weisyn/vmrunner/internal/core/infrastructure/storage/bigcache"
	"github.com/weisyn/vmrunner/internal/core/infrastructure/storage/memory"
	"github.com/weisyn/vmrunner/internal/core/infrastructure/storage/redis"
	"github.com/weisyn/vmrunner/internal/core/infrastructure/storage/tiered"
	"github.com/weisyn/vmrunner/pkg/interfaces/config"
	"github.com/weisyn/vmrunner/pkg/interfaces/infrastructure/log"
	storageInterface "github.com/weisyn/vmrunner/pkg/interfaces/infrastructure/storage"
)

// ServiceInput 定义存储服务工厂的输入参数
type ServiceInput struct {
	Provider config.Provider // 配置提供者
	Logger   log.Logger      // 日志记录器
}

// CreateArtifactStore 按 storage.backend 创建产物存储
//
// 🏭 **存储工厂**：
// - memory：进程内map
// - bigcache：进程内有界缓存
// - badger：本地持久化（默认）
// - redis：多进程共享
// - tiered：bigcache 前置 + badger 后端
func CreateArtifactStore(ctx context.Context, input ServiceInput) (storageInterface.ArtifactStore, error) {
	provider := input.Provider

	// 🎯 存储模块日志路由到 system 日志
	var storageLogger log.Logger
	if input.Logger != nil {
		storageLogger = input.Logger.With("module", "storage")
	}

	backend := provider.GetStorage().Backend
	switch backend {
	case storageconfig.BackendMemory:
		infof(storageLogger, "✅ 使用进程内产物存储（进程退出后丢弃）")
		return memory.New(), nil

	case storageconfig.BackendBigCache:
		return newBigCache(provider, storageLogger)

	case storageconfig.BackendBadger:
		return newBadger(provider, storageLogger)

	case storageconfig.BackendRedis:
		store, err := redis.New(ctx, redisconfig.NewFromOptions(provider.GetRedis()), storageLogger)
		if err != nil {
			return nil, fmt.Errorf("存储初始化失败：Redis不可用: %w", err)
		}
		infof(storageLogger, "✅ Redis产物存储初始化成功 addr=%s", provider.GetRedis().Addr)
		return store, nil

	case storageconfig.BackendTiered:
		back, err := newBadger(provider, storageLogger)
		if err != nil {
			return nil, err
		}
		front, err := newBigCache(provider, storageLogger)
		if err != nil {
			_ = back.Close()
			return nil, err
		}
		infof(storageLogger, "✅ 两级产物存储已组装（bigcache → badger）")
		return tiered.New(front, back, storageLogger), nil

	default:
		return nil, fmt.Errorf("未知的存储后端: %s", backend)
	}
}

func newBadger(provider config.Provider, logger log.Logger) (*badger.Store, error) {
	options := provider.GetBadger()
	store, err := badger.New(badgerconfig.NewFromOptions(options), logger)
	if err != nil {
		return nil, fmt.Errorf("存储初始化失败：BadgerDB不可用: %w", err)
	}

	// 显示实际使用的数据路径，并转换为绝对路径
	absPath, err := filepath.Abs(options.Path)
	if err != nil {
		absPath = options.Path
	}
	infof(logger, "✅ BadgerDB产物存储初始化成功")
	infof(logger, "📁 数据存储路径: %s", absPath)
	return store, nil
}

func newBigCache(provider config.Provider, logger log.Logger) (*bigcache.Store, error) {
	options := provider.GetMemory()
	store, err := bigcache.New(memoryconfig.NewFromOptions(options), logger)
	if err != nil {
		return nil, fmt.Errorf("存储初始化失败：BigCache不可用: %w", err)
	}
	infof(logger, "✅ 进程内产物缓存初始化成功 max_size_mb=%d", options.MaxSizeMB)
	return store, nil
}

func infof(logger log.Logger, format string, args ...interface{}) {
	if logger != nil {
		logger.Infof(format, args...)
	}
}
