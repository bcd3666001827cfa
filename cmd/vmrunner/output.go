package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"golang.org/x/term"

	infralog "github.com/weisyn/vmrunner/internal/core/infrastructure/log"
)

// useTable auto 模式下仅在标准输出为终端时使用表格
func useTable() bool {
	switch globalFlags.OutputFormat {
	case "table":
		return true
	case "json":
		return false
	default:
		return term.IsTerminal(int(os.Stdout.Fd()))
	}
}

// printResult 表格模式打印 rows（首行为表头），否则打印 v 的 JSON
func printResult(v interface{}, rows [][]string) error {
	if useTable() {
		return pterm.DefaultTable.WithHasHeader().WithHeaderRowSeparator("-").WithData(rows).Render()
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printSuccess(format string, args ...interface{}) {
	if useTable() {
		pterm.Success.Printfln(format, args...)
	}
}

// printError 终端上用 pterm 提示；否则写入全局日志（应用启动前后都可用）
func printError(err error) {
	if term.IsTerminal(int(os.Stderr.Fd())) {
		pterm.Error.WithWriter(os.Stderr).Println(err.Error())
		return
	}
	if l := infralog.GetLogger(); l != nil {
		l.Errorf("命令执行失败: %v", err)
		_ = l.Sync()
		return
	}
	fmt.Fprintf(os.Stderr, "错误: %v\n", err)
}
