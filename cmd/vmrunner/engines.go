package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/weisyn/vmrunner/internal/core/vm/kind"
	"github.com/weisyn/vmrunner/internal/core/vm/runner"
	"github.com/weisyn/vmrunner/pkg/types"
)

var enginesCmd = &cobra.Command{
	Use:   "engines",
	Short: "列出编译进来的和配置启用的引擎",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := startApp()
		if err != nil {
			return err
		}
		defer func() { _ = a.Stop() }()

		type engineInfo struct {
			Engine     string `json:"engine"`
			Tag        uint8  `json:"tag"`
			CompiledIn bool   `json:"compiled_in"`
			Enabled    bool   `json:"enabled"`
			FromPV     uint32 `json:"from_protocol_version"`
		}
		compiled := make(map[kind.EngineKind]bool)
		for _, k := range runner.CompiledIn() {
			compiled[k] = true
		}

		rows := [][]string{{"引擎", "标签", "已编译", "已启用", "起始协议版本"}}
		var infos []engineInfo
		for _, k := range kind.All() {
			_, enabled := a.Orchestrator().Engine(k)
			info := engineInfo{
				Engine:     k.String(),
				Tag:        k.Tag(),
				CompiledIn: compiled[k],
				Enabled:    enabled,
				FromPV:     uint32(firstVersion(k)),
			}
			infos = append(infos, info)
			rows = append(rows, []string{
				info.Engine,
				strconv.Itoa(int(info.Tag)),
				strconv.FormatBool(info.CompiledIn),
				strconv.FormatBool(info.Enabled),
				strconv.FormatUint(uint64(info.FromPV), 10),
			})
		}
		return printResult(infos, rows)
	},
}

// firstVersion 引擎种类生效的最早协议版本
func firstVersion(k kind.EngineKind) types.ProtocolVersion {
	if k == kind.Compiler {
		return kind.CompilerProtocolVersion
	}
	return kind.MinSupportedProtocolVersion
}
