// Package api 管理接口
package api

import (
	"go.uber.org/fx"

	"github.com/weisyn/vmrunner/internal/api/http"
)

// Module 返回API模块
func Module() fx.Option {
	return fx.Module("api",
		http.Module(),
		// 显式依赖，确保服务器被创建并启动
		fx.Invoke(func(*http.Server) {}),
	)
}
