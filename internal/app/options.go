package app

import (
	"github.com/weisyn/vmrunner/pkg/interfaces/config"
	"github.com/weisyn/vmrunner/pkg/types"
)

// Option 应用程序选项函数类型
type Option func(*options)

// options 应用程序选项
// 实现config.AppOptions接口
type options struct {
	// 配置文件路径，为空时按 VMRUNNER_CONFIG 环境变量、默认路径依次查找
	configFilePath string

	// 直接给定的配置（优先级高于配置文件）
	appConfig *types.AppConfig

	// 管理HTTP开关（默认关闭，serve 命令开启）
	enableAPI bool
}

// 编译时校验options是否实现了config.AppOptions接口
var _ config.AppOptions = (*options)(nil)

// WithConfigFile 设置配置文件路径
func WithConfigFile(configPath string) Option {
	return func(o *options) {
		o.configFilePath = configPath
	}
}

// WithAppConfig 直接使用给定配置，不再读取文件
func WithAppConfig(appConfig *types.AppConfig) Option {
	return func(o *options) {
		o.appConfig = appConfig
	}
}

// WithAPI 启用管理HTTP模块
func WithAPI() Option {
	return func(o *options) {
		o.enableAPI = true
	}
}

// newOptions 创建选项
func newOptions(opts ...Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// GetAppConfig 返回应用程序配置
func (o *options) GetAppConfig() *types.AppConfig {
	return o.appConfig
}
