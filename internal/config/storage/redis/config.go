// Package redis 提供共享产物存储（Redis）的配置
package redis

import (
	"time"

	configtypes "github.com/weisyn/vmrunner/pkg/types"
)

// RedisOptions Redis 配置选项
type RedisOptions struct {
	Addr         string        `json:"addr"`           // 服务器地址（如 "localhost:6379"）
	Password     string        `json:"password"`       // 密码（可选）
	DB           int           `json:"db"`             // 数据库编号
	KeyPrefix    string        `json:"key_prefix"`     // Key 前缀（命名空间隔离）
	PoolSize     int           `json:"pool_size"`      // 连接池大小
	MinIdleConns int           `json:"min_idle_conns"` // 最小空闲连接数
	DialTimeout  time.Duration `json:"dial_timeout"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

// Config Redis 配置实现
type Config struct {
	options *RedisOptions
}

// New 创建 Redis 配置实现
func New(userConfig interface{}) *Config {
	options := &RedisOptions{
		Addr:         defaultAddr,
		KeyPrefix:    defaultKeyPrefix,
		PoolSize:     defaultPoolSize,
		MinIdleConns: defaultMinIdleConns,
		DialTimeout:  defaultDialTimeout,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
	}
	if storageConfig, ok := userConfig.(*configtypes.UserStorageConfig); ok && storageConfig != nil && storageConfig.Redis != nil {
		r := storageConfig.Redis
		if r.Addr != nil {
			options.Addr = *r.Addr
		}
		if r.Password != nil {
			options.Password = *r.Password
		}
		if r.DB != nil {
			options.DB = *r.DB
		}
		if r.KeyPrefix != nil {
			options.KeyPrefix = *r.KeyPrefix
		}
		if r.PoolSize != nil && *r.PoolSize > 0 {
			options.PoolSize = *r.PoolSize
		}
	}
	return &Config{options: options}
}

// NewFromOptions 从RedisOptions创建配置实现
func NewFromOptions(options *RedisOptions) *Config {
	return &Config{options: options}
}

// GetOptions 获取完整配置选项
func (c *Config) GetOptions() *RedisOptions {
	return c.options
}

// GetAddr 获取服务器地址
func (c *Config) GetAddr() string {
	return c.options.Addr
}

// GetKeyPrefix 获取 Key 前缀
func (c *Config) GetKeyPrefix() string {
	return c.options.KeyPrefix
}
