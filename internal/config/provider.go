package config

import (
	"fmt"
	"strings"

	"github.com/weisyn/vmrunner/internal/config/api"
	"github.com/weisyn/vmrunner/internal/config/log"
	"github.com/weisyn/vmrunner/internal/config/storage"
	"github.com/weisyn/vmrunner/internal/config/storage/badger"
	"github.com/weisyn/vmrunner/internal/config/storage/memory"
	"github.com/weisyn/vmrunner/internal/config/storage/redis"
	"github.com/weisyn/vmrunner/internal/config/vm"
	"github.com/weisyn/vmrunner/pkg/interfaces/config"
	"github.com/weisyn/vmrunner/pkg/types"
)

// Provider 实现配置提供者接口
type Provider struct {
	appConfig *types.AppConfig

	// 执行层与存储选择在构造时校验并缓存，非法配置在启动阶段失败
	vmOptions      *vm.VMOptions
	storageOptions *storage.StorageOptions
}

// 编译时校验
var _ config.Provider = (*Provider)(nil)

// NewProvider 创建配置提供者
func NewProvider(appConfig *types.AppConfig) (config.Provider, error) {
	if appConfig == nil {
		appConfig = &types.AppConfig{}
	}

	vmConfig, err := vm.New(appConfig.VM)
	if err != nil {
		return nil, fmt.Errorf("执行层配置无效: %w", err)
	}

	storageOptions := storage.New(appConfig.Storage).GetOptions()
	if err := storageOptions.Validate(); err != nil {
		return nil, fmt.Errorf("存储配置无效: %w", err)
	}

	return &Provider{
		appConfig:      appConfig,
		vmOptions:      vmConfig.GetOptions(),
		storageOptions: storageOptions,
	}, nil
}

// GetAppConfig 获取原始应用配置
func (p *Provider) GetAppConfig() *types.AppConfig {
	return p.appConfig
}

// GetLog 获取日志配置
func (p *Provider) GetLog() *log.LogOptions {
	var userLogConfig *types.UserLogConfig
	if p.appConfig.Log != nil {
		userLogConfig = p.appConfig.Log
	}

	options := log.New(userLogConfig).GetOptions()

	// 开发环境默认输出调试日志（用户显式配置的级别优先）
	if p.GetEnvironment() == "dev" && (userLogConfig == nil || userLogConfig.Level == nil) {
		options.Level = "debug"
	}
	return options
}

// GetVM 获取执行层配置
func (p *Provider) GetVM() *vm.VMOptions {
	return p.vmOptions
}

// GetStorage 获取存储后端选择
func (p *Provider) GetStorage() *storage.StorageOptions {
	return p.storageOptions
}

// GetBadger 获取BadgerDB存储配置
func (p *Provider) GetBadger() *badger.BadgerOptions {
	return badger.New(p.appConfig.Storage).GetOptions()
}

// GetMemory 获取进程内缓存配置
func (p *Provider) GetMemory() *memory.MemoryOptions {
	return memory.New(p.appConfig.Storage).GetOptions()
}

// GetRedis 获取Redis存储配置
func (p *Provider) GetRedis() *redis.RedisOptions {
	return redis.New(p.appConfig.Storage).GetOptions()
}

// GetAPI 获取管理HTTP配置
func (p *Provider) GetAPI() *api.APIOptions {
	return api.New(p.appConfig.API).GetOptions()
}

// GetEnvironment 获取运行环境
//
// 未配置或取值非法时返回 prod（安全优先）
func (p *Provider) GetEnvironment() string {
	if p.appConfig.Environment == nil {
		return "prod"
	}
	switch env := strings.ToLower(strings.TrimSpace(*p.appConfig.Environment)); env {
	case "dev", "test", "prod":
		return env
	default:
		return "prod"
	}
}
