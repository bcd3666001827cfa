package http

import (
	"context"

	"go.uber.org/fx"

	"github.com/weisyn/vmrunner/internal/core/vm/runner"
	"github.com/weisyn/vmrunner/pkg/interfaces/config"
	"github.com/weisyn/vmrunner/pkg/interfaces/infrastructure/log"
)

// ModuleParams HTTP模块依赖
type ModuleParams struct {
	fx.In

	Lifecycle    fx.Lifecycle
	Provider     config.Provider
	Logger       log.Logger
	Orchestrator *runner.Orchestrator
}

// Module 返回HTTP服务模块
func Module() fx.Option {
	return fx.Module("http",
		fx.Provide(ProvideServer),
	)
}

// ProvideServer 创建服务器并挂到生命周期上
func ProvideServer(params ModuleParams) *Server {
	server := NewServer(params.Provider.GetAPI(), params.Logger.With("module", "api"), params.Orchestrator, runner.CompiledIn())
	params.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return server.Start()
		},
		OnStop: func(ctx context.Context) error {
			return server.Stop(ctx)
		},
	})
	return server
}
