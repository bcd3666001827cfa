// Package config provides configuration provider interfaces.
package config

import (
	apiconfig "github.com/weisyn/vmrunner/internal/config/api"
	logconfig "github.com/weisyn/vmrunner/internal/config/log"
	storageconfig "github.com/weisyn/vmrunner/internal/config/storage"
	badgerconfig "github.com/weisyn/vmrunner/internal/config/storage/badger"
	memoryconfig "github.com/weisyn/vmrunner/internal/config/storage/memory"
	redisconfig "github.com/weisyn/vmrunner/internal/config/storage/redis"
	vmconfig "github.com/weisyn/vmrunner/internal/config/vm"
	"github.com/weisyn/vmrunner/pkg/types"
)

// Provider 配置提供者接口
//
// 每个 Get 方法返回已合并默认值的完整配置，调用方不需要再处理 nil 字段。
type Provider interface {
	// GetLog 获取日志配置
	GetLog() *logconfig.LogOptions

	// GetVM 获取执行层配置
	GetVM() *vmconfig.VMOptions

	// GetStorage 获取存储后端选择
	GetStorage() *storageconfig.StorageOptions

	// GetBadger 获取BadgerDB存储配置
	GetBadger() *badgerconfig.BadgerOptions

	// GetMemory 获取进程内缓存（bigcache）配置
	GetMemory() *memoryconfig.MemoryOptions

	// GetRedis 获取Redis存储配置
	GetRedis() *redisconfig.RedisOptions

	// GetAPI 获取管理HTTP配置
	GetAPI() *apiconfig.APIOptions

	// GetEnvironment 获取运行环境：dev | test | prod，未配置时为 prod
	GetEnvironment() string

	// GetAppConfig 获取原始应用配置
	GetAppConfig() *types.AppConfig
}
