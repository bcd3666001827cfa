package runner

import (
	"context"

	"go.uber.org/fx"

	vmconfig "github.com/weisyn/vmrunner/internal/config/vm"
	"github.com/weisyn/vmrunner/pkg/interfaces/infrastructure/log"
)

// ModuleParams 调度模块依赖
type ModuleParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	VMOptions *vmconfig.VMOptions
	Logger    log.Logger `optional:"true"`
}

// Module 返回执行调度模块
func Module() fx.Option {
	return fx.Module("runner",
		fx.Provide(ProvideOrchestrator),
	)
}

// ProvideOrchestrator 创建调度器并在停止时关闭全部引擎
func ProvideOrchestrator(params ModuleParams) (*Orchestrator, error) {
	o, err := NewOrchestrator(context.Background(), params.VMOptions, params.Logger)
	if err != nil {
		return nil, err
	}
	params.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return o.Close(ctx)
		},
	})
	return o, nil
}
