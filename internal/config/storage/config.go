// Package storage 提供编译产物存储后端的选择配置
//
// 各后端自身的参数在 storage/{memory,badger,redis} 子包中。
package storage

import (
	"fmt"
	"strings"

	configtypes "github.com/weisyn/vmrunner/pkg/types"
)

// 支持的存储后端
const (
	BackendMemory   = "memory"   // 进程内map，进程退出即丢弃
	BackendBigCache = "bigcache" // 进程内有界缓存
	BackendBadger   = "badger"   // 本地持久化
	BackendRedis    = "redis"    // 多进程共享
	BackendTiered   = "tiered"   // bigcache 作为 badger 的前置缓存
)

// StorageOptions 存储选择配置
type StorageOptions struct {
	Backend  string `json:"backend"`   // 存储后端
	DataRoot string `json:"data_root"` // 数据根目录
}

// Config 存储配置实现
type Config struct {
	options *StorageOptions
}

// New 创建存储配置实现
func New(userConfig *configtypes.UserStorageConfig) *Config {
	options := &StorageOptions{
		Backend:  defaultBackend,
		DataRoot: defaultDataRoot,
	}
	if userConfig != nil {
		if userConfig.Backend != nil && strings.TrimSpace(*userConfig.Backend) != "" {
			options.Backend = strings.ToLower(strings.TrimSpace(*userConfig.Backend))
		}
		if userConfig.DataRoot != nil && *userConfig.DataRoot != "" {
			options.DataRoot = *userConfig.DataRoot
		}
	}
	return &Config{options: options}
}

// GetOptions 获取完整配置选项
func (c *Config) GetOptions() *StorageOptions {
	return c.options
}

// Validate 校验后端名称
func (o *StorageOptions) Validate() error {
	switch o.Backend {
	case BackendMemory, BackendBigCache, BackendBadger, BackendRedis, BackendTiered:
		return nil
	default:
		return fmt.Errorf("未知的存储后端 %q（可选: memory, bigcache, badger, redis, tiered）", o.Backend)
	}
}
