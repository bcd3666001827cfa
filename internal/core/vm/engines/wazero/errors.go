package wazero

import (
	"errors"
	"strings"

	"github.com/weisyn/vmrunner/internal/core/vm/vmerr"
)

// ============================================================================
//                          wazero 错误到执行层错误的映射
// ============================================================================
//
// wazero 的运行时错误类型位于 internal 包，只能按错误文本识别。
// 文本只用于分类，不进入错误消息之外的任何结果。

// trapPatterns 运行时陷阱文本 → 错误码（按顺序匹配）
var trapPatterns = []struct {
	text string
	code vmerr.Code
}{
	{"stack overflow", vmerr.CodeStackHeightExceeded},
	{"unreachable", vmerr.CodeUnreachable},
	{"out of bounds memory access", vmerr.CodeMemoryOutOfBounds},
	{"integer divide by zero", vmerr.CodeIntegerDivideByZero},
	{"integer overflow", vmerr.CodeIntegerOverflow},
	{"invalid conversion to integer", vmerr.CodeInvalidConversion},
	{"indirect call type mismatch", vmerr.CodeIndirectCallMismatch},
	{"invalid table access", vmerr.CodeTableOutOfBounds},
}

// classifyTrap 把 Call 返回的错误映射为执行层错误
func classifyTrap(err error) *vmerr.VMError {
	if ve, ok := vmerr.As(err); ok {
		return ve
	}
	msg := err.Error()
	for _, p := range trapPatterns {
		if strings.Contains(msg, p.text) {
			if p.code == vmerr.CodeStackHeightExceeded {
				return vmerr.ResourceLimit(p.code, "%s", firstLine(msg))
			}
			return vmerr.Trap(p.code, "%s", firstLine(msg))
		}
	}
	if errors.Is(err, errNoLogic) {
		return vmerr.Trap(vmerr.CodeEngineFault, "%s", errNoLogic.Error()).WithCause(err)
	}
	return vmerr.Trap(vmerr.CodeEngineFault, "%s", firstLine(msg)).WithCause(err)
}

// classifyInstantiateError 实例化（链接）失败
func classifyInstantiateError(err error) *vmerr.VMError {
	msg := firstLine(err.Error())
	switch {
	case strings.Contains(msg, "signature mismatch"):
		return vmerr.Link(vmerr.CodeSignatureMismatch, "%s", msg).WithCause(err)
	case strings.Contains(msg, "not exported"), strings.Contains(msg, "not instantiated"):
		return vmerr.Link(vmerr.CodeMissingHostFunction, "%s", msg).WithCause(err)
	default:
		return vmerr.Compilation(vmerr.CodeInstantiate, "%s", msg).WithCause(err)
	}
}

// firstLine 去掉 wazero 附加的调用栈
func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
