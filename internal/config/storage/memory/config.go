package memory

import (
	sysmem "github.com/pbnjay/memory"

	configtypes "github.com/weisyn/vmrunner/pkg/types"
)

// MemoryOptions 进程内产物缓存（BigCache）配置选项
type MemoryOptions struct {
	MaxSizeMB          int `json:"max_size_mb"`           // 缓存容量上限（MB）
	Shards             int `json:"shards"`                // 分片数（2的幂）
	MaxEntrySize       int `json:"max_entry_size"`        // 预估单条目大小（字节），只影响预分配
	MaxEntriesInWindow int `json:"max_entries_in_window"` // 预估条目数，只影响预分配
}

// Config 内存存储配置实现
type Config struct {
	options *MemoryOptions
}

// New 创建内存存储配置实现
func New(userConfig interface{}) *Config {
	options := createDefaultMemoryOptions()
	if storageConfig, ok := userConfig.(*configtypes.UserStorageConfig); ok && storageConfig != nil {
		if storageConfig.MemoryMaxMB != nil && *storageConfig.MemoryMaxMB > 0 {
			options.MaxSizeMB = *storageConfig.MemoryMaxMB
		}
	}
	return &Config{options: options}
}

// NewFromOptions 从MemoryOptions创建配置实现
func NewFromOptions(options *MemoryOptions) *Config {
	return &Config{options: options}
}

// createDefaultMemoryOptions 创建默认配置，容量按系统内存推导
func createDefaultMemoryOptions() *MemoryOptions {
	return &MemoryOptions{
		MaxSizeMB:          defaultMaxSizeMB(sysmem.TotalMemory()),
		Shards:             defaultShards,
		MaxEntrySize:       defaultMaxEntrySize,
		MaxEntriesInWindow: defaultMaxEntriesInWindow,
	}
}

// defaultMaxSizeMB 系统内存的 1/64，限制在 [minMaxSizeMB, maxMaxSizeMB]
func defaultMaxSizeMB(totalBytes uint64) int {
	if totalBytes == 0 {
		return minMaxSizeMB
	}
	mb := int(totalBytes / 64 / (1 << 20))
	if mb < minMaxSizeMB {
		return minMaxSizeMB
	}
	if mb > maxMaxSizeMB {
		return maxMaxSizeMB
	}
	return mb
}

// GetOptions 获取完整配置选项
func (c *Config) GetOptions() *MemoryOptions {
	return c.options
}

// GetMaxSizeMB 获取容量上限（MB）
func (c *Config) GetMaxSizeMB() int {
	return c.options.MaxSizeMB
}

// GetShards 获取分片数
func (c *Config) GetShards() int {
	return c.options.Shards
}

// GetMaxEntrySize 获取预估单条目大小
func (c *Config) GetMaxEntrySize() int {
	return c.options.MaxEntrySize
}

// GetMaxEntriesInWindow 获取预估条目数
func (c *Config) GetMaxEntriesInWindow() int {
	return c.options.MaxEntriesInWindow
}
