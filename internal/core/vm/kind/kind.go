// Package kind 定义执行引擎种类以及协议版本到引擎种类的映射
//
// 🎯 **共识关键**
// 同一协议版本下所有节点必须选出同一种引擎，否则网络分叉。
// 映射只能在显式的协议版本边界上变化：新增一个版本常量，再改 ForProtocolVersion。
package kind

import (
	"fmt"
	"strings"

	"github.com/weisyn/vmrunner/pkg/types"
)

// EngineKind 执行引擎种类
type EngineKind uint8

const (
	// Interpreter wazero 解释器模式
	Interpreter EngineKind = 1
	// Compiler wazero 优化编译器模式
	Compiler EngineKind = 2
)

// 协议版本边界
const (
	// MinSupportedProtocolVersion 本构建可回放的最早协议版本
	MinSupportedProtocolVersion types.ProtocolVersion = 29

	// CompilerProtocolVersion 从此版本起使用编译器引擎
	CompilerProtocolVersion types.ProtocolVersion = 45

	// EcrecoverProtocolVersion 从此版本起 env.ecrecover 可用
	EcrecoverProtocolVersion types.ProtocolVersion = 50

	// CurrentProtocolVersion 本构建的最新协议版本
	CurrentProtocolVersion types.ProtocolVersion = 52
)

// All 返回协议认可的全部引擎种类（按标签升序）
func All() []EngineKind {
	return []EngineKind{Interpreter, Compiler}
}

// ForProtocolVersion 协议版本 → 引擎种类
//
// 纯函数，对任意版本号都有唯一结果。
func ForProtocolVersion(v types.ProtocolVersion) EngineKind {
	if v < CompilerProtocolVersion {
		return Interpreter
	}
	return Compiler
}

// IsSupported 版本是否在本构建的支持区间内
func IsSupported(v types.ProtocolVersion) bool {
	return v >= MinSupportedProtocolVersion && v <= CurrentProtocolVersion
}

// RequiredKinds 回放 [from, to] 区间所需的全部引擎种类
func RequiredKinds(from, to types.ProtocolVersion) []EngineKind {
	if from > to {
		from, to = to, from
	}
	seen := make(map[EngineKind]bool)
	var out []EngineKind
	// 映射是单调分段的，检查区间端点和每个边界即可
	points := []types.ProtocolVersion{from, to}
	if from < CompilerProtocolVersion && to >= CompilerProtocolVersion {
		points = append(points, CompilerProtocolVersion)
	}
	for _, k := range All() {
		for _, v := range points {
			if ForProtocolVersion(v) == k && !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
	}
	return out
}

// Tag 稳定的单字节标识，进入缓存键和记录头
func (k EngineKind) Tag() byte {
	return byte(k)
}

// Valid 是否为协议认可的种类
func (k EngineKind) Valid() bool {
	return k == Interpreter || k == Compiler
}

// String 返回种类名称
func (k EngineKind) String() string {
	switch k {
	case Interpreter:
		return "interpreter"
	case Compiler:
		return "compiler"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// ParseEngineKind 解析种类名称（大小写不敏感）
func ParseEngineKind(s string) (EngineKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "interpreter":
		return Interpreter, nil
	case "compiler":
		return Compiler, nil
	default:
		return 0, fmt.Errorf("unknown engine kind %q", s)
	}
}
