package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/weisyn/vmrunner/internal/core/vm/kind"
	"github.com/weisyn/vmrunner/internal/core/vm/vmerr"
	"github.com/weisyn/vmrunner/pkg/types"
)

type runFlags struct {
	method          string
	input           string
	protocolVersion uint32
	prepaidGas      uint64
	account         string
	signer          string
	balance         uint64
	deposit         uint64
	blockIndex      uint64
	blockTimestamp  uint64
	view            bool
	statePath       string
	testConfig      bool
}

var runOpts runFlags

var runCmd = &cobra.Command{
	Use:   "run <contract.wasm>",
	Short: "执行合约方法",
	Long: `按协议版本选择引擎执行合约方法，打印执行结果。

合约存储从 --state 指定的JSON快照读取，执行成功后写回。`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		code, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("读取合约失败: %w", err)
		}
		ext, err := loadState(runOpts.statePath)
		if err != nil {
			return err
		}

		a, err := startApp()
		if err != nil {
			return err
		}
		defer func() { _ = a.Stop() }()

		signer := runOpts.signer
		if signer == "" {
			signer = runOpts.account
		}
		vmCtx := types.ExecutionContext{
			CurrentAccountID:     runOpts.account,
			SignerAccountID:      signer,
			PredecessorAccountID: signer,
			Input:                []byte(runOpts.input),
			BlockIndex:           runOpts.blockIndex,
			BlockTimestamp:       runOpts.blockTimestamp,
			AccountBalance:       runOpts.balance,
			StorageUsage:         ext.usage(),
			AttachedDeposit:      runOpts.deposit,
			PrepaidGas:           runOpts.prepaidGas,
			IsView:               runOpts.view,
		}
		cfg, fees := types.DefaultVMConfig(), types.DefaultRuntimeFeesConfig()
		if runOpts.testConfig {
			cfg, fees = types.TestVMConfig(), types.TestRuntimeFeesConfig()
		}
		pv := types.ProtocolVersion(runOpts.protocolVersion)

		outcome, verr := a.Orchestrator().Run(context.Background(), types.NewContractCode(code), runOpts.method,
			ext, vmCtx, cfg, fees, nil, pv, a.Store())

		if outcome != nil {
			if perr := printOutcome(pv, outcome, verr); perr != nil {
				return perr
			}
		}
		if verr != nil {
			return verr
		}
		if err := ext.save(); err != nil {
			return fmt.Errorf("写回状态文件失败: %w", err)
		}
		printSuccess("执行成功: engine=%s burnt=%d", kind.ForProtocolVersion(pv), outcome.BurntGas)
		return nil
	},
}

// runResult run 的 JSON 输出
type runResult struct {
	Engine  string           `json:"engine"`
	Outcome *types.VMOutcome `json:"outcome"`
	Error   *runError        `json:"error,omitempty"`
}

type runError struct {
	Kind    string `json:"kind"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func printOutcome(pv types.ProtocolVersion, outcome *types.VMOutcome, verr *vmerr.VMError) error {
	res := runResult{Engine: kind.ForProtocolVersion(pv).String(), Outcome: outcome}
	if verr != nil {
		res.Error = &runError{Kind: verr.Kind.String(), Code: string(verr.Code), Message: verr.Message}
	}

	rows := [][]string{
		{"字段", "值"},
		{"engine", res.Engine},
		{"return", formatReturn(outcome.ReturnData)},
		{"burnt_gas", strconv.FormatUint(outcome.BurntGas, 10)},
		{"used_gas", strconv.FormatUint(outcome.UsedGas, 10)},
		{"balance", strconv.FormatUint(outcome.Balance, 10)},
		{"storage_usage", strconv.FormatUint(outcome.StorageUsage, 10)},
		{"receipts", strconv.Itoa(len(outcome.ActionReceipts))},
	}
	for i, l := range outcome.Logs {
		rows = append(rows, []string{fmt.Sprintf("log[%d]", i), l})
	}
	if verr != nil {
		rows = append(rows, []string{"error", verr.Error()})
	}
	return printResult(res, rows)
}

func formatReturn(r types.ReturnData) string {
	switch r.Kind {
	case types.ReturnDataValue:
		return strconv.Quote(string(r.Value))
	case types.ReturnDataReceiptIndex:
		return fmt.Sprintf("receipt #%d", r.ReceiptIndex)
	default:
		return "-"
	}
}

func init() {
	f := runCmd.Flags()
	f.StringVarP(&runOpts.method, "method", "m", "main", "导出的方法名")
	f.StringVarP(&runOpts.input, "input", "i", "", "调用参数（原样作为输入字节）")
	f.Uint32VarP(&runOpts.protocolVersion, "protocol-version", "p", uint32(kind.CurrentProtocolVersion), "协议版本")
	f.Uint64Var(&runOpts.prepaidGas, "prepaid-gas", 300_000_000_000_000, "预付gas")
	f.StringVar(&runOpts.account, "account", "contract.test", "当前合约账户")
	f.StringVar(&runOpts.signer, "signer", "", "签名账户（默认同 --account）")
	f.Uint64Var(&runOpts.balance, "balance", 0, "账户余额")
	f.Uint64Var(&runOpts.deposit, "deposit", 0, "附加存款")
	f.Uint64Var(&runOpts.blockIndex, "block-index", 1, "区块高度")
	f.Uint64Var(&runOpts.blockTimestamp, "block-timestamp", 0, "区块时间戳（纳秒）")
	f.BoolVar(&runOpts.view, "view", false, "只读调用")
	f.StringVar(&runOpts.statePath, "state", "", "合约存储JSON快照路径")
	f.BoolVar(&runOpts.testConfig, "test-config", false, "使用测试成本表（所有成本为1）")
}
