// Package vm 提供执行层配置
package vm

import (
	"fmt"
	"strings"

	"github.com/weisyn/vmrunner/internal/core/vm/kind"
	configtypes "github.com/weisyn/vmrunner/pkg/types"
)

// 缓存存储故障策略
const (
	// InfraPolicyDegrade 读失败按未命中处理，写失败记录日志后继续
	InfraPolicyDegrade = "degrade"
	// InfraPolicyFail 存储故障直接以 InfrastructureError 结束调用
	InfraPolicyFail = "fail"
)

// VMOptions 执行层配置选项
type VMOptions struct {
	// EnabledEngines 启用的引擎；与编译进二进制的引擎取交集
	EnabledEngines []kind.EngineKind `json:"enabled_engines"`

	// InfraErrorPolicy degrade | fail
	InfraErrorPolicy string `json:"infra_error_policy"`

	// CompilationCacheDir wazero 编译器的磁盘缓存目录，为空表示不启用
	CompilationCacheDir string `json:"compilation_cache_dir"`

	// ModuleCacheEntries 每个引擎在进程内保留的已编译模块上限
	ModuleCacheEntries int `json:"module_cache_entries"`

	// 启动时要求可回放的协议版本区间
	ReplayFromVersion uint32 `json:"replay_from_version"`
	ReplayToVersion   uint32 `json:"replay_to_version"`
}

// Config 执行层配置实现
type Config struct {
	options *VMOptions
}

// New 创建执行层配置；引擎名或策略非法时返回错误
func New(userConfig *configtypes.UserVMConfig) (*Config, error) {
	options := createDefaultVMOptions()
	if userConfig != nil {
		if err := applyUserVMConfig(options, userConfig); err != nil {
			return nil, err
		}
	}
	return &Config{options: options}, nil
}

// NewFromOptions 从VMOptions创建配置实现
func NewFromOptions(options *VMOptions) *Config {
	return &Config{options: options}
}

func createDefaultVMOptions() *VMOptions {
	return &VMOptions{
		EnabledEngines:     kind.All(),
		InfraErrorPolicy:   defaultInfraErrorPolicy,
		ModuleCacheEntries: defaultModuleCacheEntries,
		ReplayFromVersion:  uint32(kind.MinSupportedProtocolVersion),
		ReplayToVersion:    uint32(kind.CurrentProtocolVersion),
	}
}

func applyUserVMConfig(options *VMOptions, user *configtypes.UserVMConfig) error {
	if len(user.EnabledEngines) > 0 {
		engines := make([]kind.EngineKind, 0, len(user.EnabledEngines))
		seen := make(map[kind.EngineKind]bool)
		for _, name := range user.EnabledEngines {
			k, err := kind.ParseEngineKind(name)
			if err != nil {
				return fmt.Errorf("vm.enabled_engines: %w", err)
			}
			if !seen[k] {
				seen[k] = true
				engines = append(engines, k)
			}
		}
		options.EnabledEngines = engines
	}

	if user.InfraErrorPolicy != nil {
		policy := strings.ToLower(strings.TrimSpace(*user.InfraErrorPolicy))
		switch policy {
		case InfraPolicyDegrade, InfraPolicyFail:
			options.InfraErrorPolicy = policy
		default:
			return fmt.Errorf("vm.infra_error_policy: 未知策略 %q（可选: degrade, fail）", *user.InfraErrorPolicy)
		}
	}

	if user.CompilationCacheDir != nil {
		options.CompilationCacheDir = *user.CompilationCacheDir
	}
	if user.ModuleCacheEntries != nil && *user.ModuleCacheEntries > 0 {
		options.ModuleCacheEntries = *user.ModuleCacheEntries
	}
	if user.ReplayFromVersion != nil {
		options.ReplayFromVersion = *user.ReplayFromVersion
	}
	if user.ReplayToVersion != nil {
		options.ReplayToVersion = *user.ReplayToVersion
	}
	return nil
}

// GetOptions 获取完整配置选项
func (c *Config) GetOptions() *VMOptions {
	return c.options
}

// IsFailPolicy 存储故障是否直接失败
func (o *VMOptions) IsFailPolicy() bool {
	return o.InfraErrorPolicy == InfraPolicyFail
}

// IsEnabled 引擎是否在配置列表中
func (o *VMOptions) IsEnabled(k kind.EngineKind) bool {
	for _, e := range o.EnabledEngines {
		if e == k {
			return true
		}
	}
	return false
}
