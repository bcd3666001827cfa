package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/fx"

	"github.com/weisyn/vmrunner/internal/api"
	config "github.com/weisyn/vmrunner/internal/config"
	log "github.com/weisyn/vmrunner/internal/core/infrastructure/log"
	"github.com/weisyn/vmrunner/internal/core/infrastructure/storage"
	"github.com/weisyn/vmrunner/internal/core/vm/runner"
	configiface "github.com/weisyn/vmrunner/pkg/interfaces/config"
	logiface "github.com/weisyn/vmrunner/pkg/interfaces/infrastructure/log"
	"github.com/weisyn/vmrunner/pkg/interfaces/vm"
)

// startTimeout 启动超时（badger 打开大目录时可能较慢）
const startTimeout = 60 * time.Second

// Bootstrap 应用引导程序
type Bootstrap struct {
	opts  *options
	fxApp *fx.App

	// 启动后由 fx.Populate 填充
	orchestrator *runner.Orchestrator
	store        vm.CompiledContractCache
	logger       logiface.Logger
}

// NewBootstrap 创建引导程序
func NewBootstrap(opts *options) *Bootstrap {
	return &Bootstrap{opts: opts}
}

// SetupInfrastructureLayer 配置与日志
func (b *Bootstrap) SetupInfrastructureLayer() []fx.Option {
	return []fx.Option{
		fx.Provide(func() configiface.AppOptions { return b.opts }),
		config.Module(), // 1. 配置(不依赖其他)
		log.Module(),    // 2. 日志(依赖配置)
	}
}

// SetupStorageLayer 编译产物存储
func (b *Bootstrap) SetupStorageLayer() []fx.Option {
	return []fx.Option{
		storage.Module(),
	}
}

// SetupExecutionLayer 引擎与调度
func (b *Bootstrap) SetupExecutionLayer() []fx.Option {
	return []fx.Option{
		runner.Module(),
	}
}

// SetupApplicationLayer 管理HTTP（按需）
func (b *Bootstrap) SetupApplicationLayer() []fx.Option {
	if !b.opts.enableAPI {
		return nil
	}
	return []fx.Option{api.Module()}
}

// SetupModules 按依赖顺序组装所有层
func (b *Bootstrap) SetupModules() []fx.Option {
	var all []fx.Option
	all = append(all, b.SetupInfrastructureLayer()...)
	all = append(all, b.SetupStorageLayer()...)
	all = append(all, b.SetupExecutionLayer()...)
	all = append(all, b.SetupApplicationLayer()...)
	return all
}

// CreateFxApp 创建并配置fx应用
func (b *Bootstrap) CreateFxApp() error {
	b.fxApp = fx.New(
		fx.Options(b.SetupModules()...),
		// 禁用fx内部日志
		fx.NopLogger,
		fx.Populate(&b.orchestrator, &b.store, &b.logger),
	)
	if err := b.fxApp.Err(); err != nil {
		return fmt.Errorf("装配应用失败: %w", err)
	}
	return nil
}

// StartApp 启动应用程序
func (b *Bootstrap) StartApp(ctx context.Context) error {
	if err := b.fxApp.Start(ctx); err != nil {
		return fmt.Errorf("启动应用失败: %w", err)
	}
	return nil
}

// StopApp 停止应用程序
func (b *Bootstrap) StopApp(ctx context.Context) error {
	if err := b.fxApp.Stop(ctx); err != nil {
		return fmt.Errorf("停止应用失败: %w", err)
	}
	return nil
}

// BootstrapApp 执行完整的引导过程并返回应用实例
func BootstrapApp(opts *options) (App, error) {
	bootstrap := NewBootstrap(opts)
	if err := bootstrap.CreateFxApp(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), startTimeout)
	defer cancel()
	if err := bootstrap.StartApp(ctx); err != nil {
		return nil, err
	}
	bootstrap.logger.Infof("vmrunner 已启动: engines=%v", bootstrap.orchestrator.Kinds())
	return &internalApp{bootstrap: bootstrap}, nil
}
