package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/weisyn/vmrunner/internal/app"
	"github.com/weisyn/vmrunner/internal/app/version"
)

// GlobalFlags 全局标志
type GlobalFlags struct {
	ConfigPath   string // 配置文件路径
	OutputFormat string // 输出格式
}

var globalFlags GlobalFlags

// rootCmd 根命令
var rootCmd = &cobra.Command{
	Use:   "vmrunner",
	Short: "合约执行调度器",
	Long: `vmrunner - 按协议版本调度 WebAssembly 合约执行

同一协议版本下所有节点选择同一种引擎：
  协议版本 < 45  → interpreter（wazero 解释器）
  协议版本 ≥ 45  → compiler（wazero 优化编译器）

编译产物按 (代码哈希, 执行配置, 引擎种类) 缓存在配置的存储后端中。`,
	Version:       version.GetVersion(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute 执行根命令
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		printError(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SetVersionTemplate(version.GetFullVersion() + "\n")

	rootCmd.PersistentFlags().StringVarP(&globalFlags.ConfigPath, "config", "c", "", fmt.Sprintf("配置文件路径 (默认: $%s 或 %s)", app.EnvConfigPath, app.DefaultConfigPath))
	rootCmd.PersistentFlags().StringVarP(&globalFlags.OutputFormat, "output", "o", "auto", "输出格式: auto|json|table")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(precompileCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(enginesCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(serveCmd)
}

// startApp 按全局标志启动应用（配置、日志、存储、调度器）
func startApp(extra ...app.Option) (app.App, error) {
	opts := append([]app.Option{app.WithConfigFile(globalFlags.ConfigPath)}, extra...)
	return app.Start(opts...)
}
