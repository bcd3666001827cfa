package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/weisyn/vmrunner/internal/core/vm/kind"
	"github.com/weisyn/vmrunner/pkg/types"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <protocol-version>...",
	Short: "查询协议版本对应的引擎种类",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		type resolution struct {
			ProtocolVersion uint32 `json:"protocol_version"`
			Engine          string `json:"engine"`
			Supported       bool   `json:"supported"`
		}
		rows := [][]string{{"协议版本", "引擎", "本构建支持"}}
		var out []resolution
		for _, arg := range args {
			v, err := strconv.ParseUint(arg, 10, 32)
			if err != nil {
				return fmt.Errorf("无效的协议版本 %q: %w", arg, err)
			}
			pv := types.ProtocolVersion(v)
			r := resolution{
				ProtocolVersion: uint32(pv),
				Engine:          kind.ForProtocolVersion(pv).String(),
				Supported:       kind.IsSupported(pv),
			}
			out = append(out, r)
			rows = append(rows, []string{arg, r.Engine, strconv.FormatBool(r.Supported)})
		}
		return printResult(out, rows)
	},
}
