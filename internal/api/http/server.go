// Package http 管理HTTP服务（vmrunner serve）
//
// 只提供运维接口：指标、引擎查询、编译检查。默认只监听本地地址。
package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/weisyn/vmrunner/internal/api/http/handlers"
	"github.com/weisyn/vmrunner/internal/api/http/middleware"
	apiconfig "github.com/weisyn/vmrunner/internal/config/api"
	"github.com/weisyn/vmrunner/internal/core/vm/kind"
	"github.com/weisyn/vmrunner/pkg/interfaces/infrastructure/log"
)

// Server 管理HTTP服务器
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	options    *apiconfig.APIOptions
	logger     log.Logger
}

// NewServer 创建服务器并注册路由（不监听端口）
func NewServer(options *apiconfig.APIOptions, logger log.Logger, engines handlers.EngineSet, compiledIn []kind.EngineKind) *Server {
	gin.SetMode(gin.ReleaseMode)
	gin.DefaultWriter = io.Discard

	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID(), middleware.Logger(logger), middleware.Metrics())

	handlers.NewHealthHandler().RegisterRoutes(router)
	handlers.NewEngineHandler(engines, compiledIn, options.MaxRequestSize).
		RegisterRoutes(router, middleware.NewRateLimit(options.CheckRateLimit).Middleware())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return &Server{
		router:  router,
		options: options,
		logger:  logger,
		httpServer: &http.Server{
			Addr:         net.JoinHostPort(options.Host, strconv.Itoa(options.Port)),
			Handler:      router,
			ReadTimeout:  options.ReadTimeout,
			WriteTimeout: options.WriteTimeout,
		},
	}
}

// Handler 路由（测试用）
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr 监听地址
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start 开始监听；端口占用等错误同步返回
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("监听 %s 失败: %w", s.httpServer.Addr, err)
	}
	if s.logger != nil {
		s.logger.Infof("管理HTTP服务已启动: http://%s", ln.Addr())
	}
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) && s.logger != nil {
			s.logger.Errorf("管理HTTP服务异常退出: %v", err)
		}
	}()
	return nil
}

// Stop 优雅关闭
func (s *Server) Stop(ctx context.Context) error {
	if s.logger != nil {
		s.logger.Info("正在关闭管理HTTP服务...")
	}
	return s.httpServer.Shutdown(ctx)
}
