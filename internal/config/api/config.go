// Package api 提供管理HTTP服务（vmrunner serve）的配置
package api

import (
	"time"

	"github.com/weisyn/vmrunner/pkg/types"
)

// APIOptions 管理HTTP配置选项
type APIOptions struct {
	Host         string        `json:"host"`          // 监听地址
	Port         int           `json:"port"`          // 监听端口
	ReadTimeout  time.Duration `json:"read_timeout"`  // 读取超时时间
	WriteTimeout time.Duration `json:"write_timeout"` // 写入超时时间

	// MaxRequestSize /check 接受的最大请求体（字节）
	MaxRequestSize int64 `json:"max_request_size"`

	// CheckRateLimit /check 每个客户端每秒请求数，0 表示不限流
	CheckRateLimit int `json:"check_rate_limit"`
}

// Config API配置实现
type Config struct {
	options *APIOptions
}

// New 创建API配置实现
func New(userConfig *types.UserAPIConfig) *Config {
	options := &APIOptions{
		Host:           defaultHTTPHost,
		Port:           defaultHTTPPort,
		ReadTimeout:    defaultHTTPReadTimeout,
		WriteTimeout:   defaultHTTPWriteTimeout,
		MaxRequestSize: defaultMaxRequestSize,
		CheckRateLimit: defaultCheckRateLimit,
	}
	if userConfig != nil && userConfig.HTTPPort != nil && *userConfig.HTTPPort > 0 {
		options.Port = *userConfig.HTTPPort
	}
	if userConfig != nil && userConfig.CheckRateLimit != nil && *userConfig.CheckRateLimit >= 0 {
		options.CheckRateLimit = *userConfig.CheckRateLimit
	}
	return &Config{options: options}
}

// GetOptions 获取完整配置选项
func (c *Config) GetOptions() *APIOptions {
	return c.options
}
