package main

import (
	"github.com/spf13/cobra"

	"github.com/weisyn/vmrunner/internal/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动管理HTTP服务（/metrics, /engines, /resolve, /check）",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := startApp(app.WithAPI())
		if err != nil {
			return err
		}
		printSuccess("vmrunner 已启动，按 Ctrl+C 停止")
		a.Wait()
		return nil
	},
}
