// Package storage 提供存储管理功能
package storage

import (
	"context"

	"go.uber.org/fx"

	"github.com/weisyn/vmrunner/pkg/interfaces/config"
	"github.com/weisyn/vmrunner/pkg/interfaces/infrastructure/log"
	storageInterface "github.com/weisyn/vmrunner/pkg/interfaces/infrastructure/storage"
	"github.com/weisyn/vmrunner/pkg/interfaces/vm"
)

// ModuleParams 定义存储模块的依赖参数
type ModuleParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Provider  config.Provider // 配置提供者
	Logger    log.Logger      // 日志记录器
}

// ModuleOutput 定义存储模块的输出结构
type ModuleOutput struct {
	fx.Out

	ArtifactStore storageInterface.ArtifactStore
	// 执行层只依赖字节键值接口
	CompiledContractCache vm.CompiledContractCache
}

// Module 返回存储模块
func Module() fx.Option {
	return fx.Module("storage",
		fx.Provide(ProvideServices),
	)
}

// ProvideServices 根据配置创建产物存储，并在应用停止时关闭
func ProvideServices(params ModuleParams) (ModuleOutput, error) {
	store, err := CreateArtifactStore(context.Background(), ServiceInput{
		Provider: params.Provider,
		Logger:   params.Logger,
	})
	if err != nil {
		return ModuleOutput{}, err
	}

	logger := params.Logger
	params.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			logger.Info("正在关闭产物存储...")
			if err := store.Close(); err != nil {
				logger.Errorf("关闭产物存储失败: %v", err)
				return err
			}
			logger.Info("产物存储已安全关闭")
			return nil
		},
	})

	return ModuleOutput{
		ArtifactStore:         store,
		CompiledContractCache: store,
	}, nil
}
