package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/weisyn/vmrunner/internal/core/vm/kind"
	"github.com/weisyn/vmrunner/pkg/types"
)

var checkVersion uint32

var checkCmd = &cobra.Command{
	Use:   "check <contract.wasm>...",
	Short: "检查合约能否编译（不写缓存）",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := startApp()
		if err != nil {
			return err
		}
		defer func() { _ = a.Stop() }()

		pv := types.ProtocolVersion(checkVersion)
		rows := [][]string{{"文件", "代码哈希", "引擎", "结果"}}
		var results []compileResult
		var failed int
		for _, path := range args {
			code, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("读取合约失败: %w", err)
			}
			res := compileResult{
				File:     path,
				CodeHash: types.HashBytes(code).String(),
				Engine:   kind.ForProtocolVersion(pv).String(),
				OK:       a.Orchestrator().CheckCompile(code, pv),
			}
			if !res.OK {
				failed++
			}
			results = append(results, res)
			rows = append(rows, res.row())
		}
		if err := printResult(results, rows); err != nil {
			return err
		}
		if failed > 0 {
			return fmt.Errorf("%d 个合约无法编译", failed)
		}
		return nil
	},
}

func init() {
	checkCmd.Flags().Uint32VarP(&checkVersion, "protocol-version", "p", uint32(kind.CurrentProtocolVersion), "协议版本")
}
