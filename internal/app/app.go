// Package app 应用装配与生命周期
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/weisyn/vmrunner/configs"
	"github.com/weisyn/vmrunner/internal/config"
	"github.com/weisyn/vmrunner/internal/core/vm/runner"
	"github.com/weisyn/vmrunner/pkg/interfaces/infrastructure/log"
	"github.com/weisyn/vmrunner/pkg/interfaces/vm"
	"github.com/weisyn/vmrunner/pkg/types"
)

// EnvConfigPath 配置文件路径环境变量
const EnvConfigPath = "VMRUNNER_CONFIG"

// DefaultConfigPath 默认配置文件路径
const DefaultConfigPath = "configs/vmrunner.json"

// stopTimeout 停止时给存储留出刷盘时间
const stopTimeout = 30 * time.Second

// App vmrunner 应用的对外接口
type App interface {
	// Orchestrator 执行调度器
	Orchestrator() *runner.Orchestrator

	// Store 配置的编译产物存储
	Store() vm.CompiledContractCache

	// Logger 根日志器
	Logger() log.Logger

	// Stop 停止应用
	Stop() error

	// Wait 阻塞直到收到退出信号，然后停止应用
	Wait()
}

// internalApp 应用的内部实现
type internalApp struct {
	bootstrap *Bootstrap
}

func (a *internalApp) Orchestrator() *runner.Orchestrator { return a.bootstrap.orchestrator }
func (a *internalApp) Store() vm.CompiledContractCache    { return a.bootstrap.store }
func (a *internalApp) Logger() log.Logger                 { return a.bootstrap.logger }

// Stop 停止应用
func (a *internalApp) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	return a.bootstrap.StopApp(ctx)
}

// Wait 等待退出信号
func (a *internalApp) Wait() {
	sig := WaitForSignal()
	a.bootstrap.logger.Infof("收到信号 %v，正在优雅退出...", sig)
	if err := a.Stop(); err != nil {
		a.bootstrap.logger.Errorf("停止应用时出错: %v", err)
	}
}

// Start 加载配置并启动应用
func Start(appOptions ...Option) (App, error) {
	opts := newOptions(appOptions...)
	if opts.appConfig == nil {
		appConfig, err := loadConfig(resolveConfigPath(opts.configFilePath))
		if err != nil {
			return nil, err
		}
		opts.appConfig = appConfig
	}
	if err := createDataDirectories(opts.appConfig); err != nil {
		return nil, err
	}
	return BootstrapApp(opts)
}

// resolveConfigPath 显式路径 > 环境变量 > 默认路径
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if envPath := os.Getenv(EnvConfigPath); envPath != "" {
		return envPath
	}
	return DefaultConfigPath
}

// loadConfig 读取配置；默认路径不存在时使用内置配置
func loadConfig(path string) (*types.AppConfig, error) {
	appConfig, err := config.Load(path)
	if err == nil {
		return appConfig, nil
	}
	if errors.Is(err, config.ErrConfigNotFound) && path == DefaultConfigPath {
		return config.Parse(configs.Default())
	}
	return nil, err
}

// createDataDirectories 根据配置创建存储与日志目录
func createDataDirectories(appConfig *types.AppConfig) error {
	var directories []string
	if appConfig.Storage != nil && appConfig.Storage.DataRoot != nil {
		directories = append(directories, *appConfig.Storage.DataRoot)
	}
	if appConfig.Log != nil && appConfig.Log.FilePath != nil {
		directories = append(directories, filepath.Dir(*appConfig.Log.FilePath))
	}
	if appConfig.VM != nil && appConfig.VM.CompilationCacheDir != nil {
		directories = append(directories, *appConfig.VM.CompilationCacheDir)
	}

	for _, dir := range directories {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("创建目录 %s 失败: %w", dir, err)
		}
	}
	return nil
}

// WaitForSignal 等待退出信号
func WaitForSignal() os.Signal {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)
	return <-signals
}
