// Package vmerr provides the classified error model of the contract execution layer.
package vmerr

import (
	"errors"
	"fmt"
)

// ============================================================================
//                            执行层错误分类
// ============================================================================
//
// 🎯 **分类**：
// - Compilation：静态校验/插桩失败，确定性，不重试
// - ResourceLimit：gas、内存、栈等预算耗尽，确定性，不重试
// - Link：宿主能力缺失或签名不匹配，部署期缺陷
// - RuntimeTrap：合约执行期间触发的陷阱，确定性
// - Infrastructure：缓存/存储I/O故障，反映本节点健康状况，可由外部重试，
//   绝不能进入共识可见的结果
//
// 引擎种类不可用不是错误值：调度器直接终止进程。

// Kind 错误大类
type Kind uint8

const (
	KindCompilation Kind = iota + 1
	KindResourceLimit
	KindLink
	KindRuntimeTrap
	KindInfrastructure
)

// String 返回大类名称
func (k Kind) String() string {
	switch k {
	case KindCompilation:
		return "CompilationError"
	case KindResourceLimit:
		return "ResourceLimitError"
	case KindLink:
		return "LinkError"
	case KindRuntimeTrap:
		return "RuntimeTrapError"
	case KindInfrastructure:
		return "InfrastructureError"
	default:
		return fmt.Sprintf("UnknownError(%d)", uint8(k))
	}
}

// Code 稳定的错误码（进入回执，不可随意改名）
type Code string

// Compilation
const (
	CodeDeserialization  Code = "Deserialization"
	CodeContractTooLarge Code = "ContractTooLarge"
	CodeTooManyFunctions Code = "TooManyFunctions"
	CodeForbiddenImport  Code = "ForbiddenImport"
	CodeMemory           Code = "Memory"
	CodeInternal         Code = "Internal"
	CodeInstantiate      Code = "Instantiate"
)

// ResourceLimit
const (
	CodeGasExceeded            Code = "GasExceeded"
	CodeGasLimitExceeded       Code = "GasLimitExceeded"
	CodeStackHeightExceeded    Code = "StackHeightExceeded"
	CodeMemoryLimit            Code = "MemoryLimit"
	CodeTooManyLogs            Code = "TooManyLogs"
	CodeTotalLogLengthExceeded Code = "TotalLogLengthExceeded"
	CodeArgumentsTooLarge      Code = "ArgumentsTooLarge"
	CodeReturnDataTooLarge     Code = "ReturnDataTooLarge"
	CodeKeyLengthExceeded      Code = "KeyLengthExceeded"
	CodeValueLengthExceeded    Code = "ValueLengthExceeded"
	CodeTooManyPromises        Code = "TooManyPromises"
)

// Link
const (
	CodeMissingHostFunction Code = "MissingHostFunction"
	CodeSignatureMismatch   Code = "SignatureMismatch"
	CodeMissingExternal     Code = "MissingExternal"
)

// RuntimeTrap
const (
	CodeMethodEmptyName        Code = "MethodEmptyName"
	CodeMethodNotFound         Code = "MethodNotFound"
	CodeMethodInvalidSignature Code = "MethodInvalidSignature"
	CodeUnreachable            Code = "Unreachable"
	CodeMemoryOutOfBounds      Code = "MemoryOutOfBounds"
	CodeIntegerDivideByZero    Code = "IntegerDivideByZero"
	CodeIntegerOverflow        Code = "IntegerOverflow"
	CodeInvalidConversion      Code = "InvalidConversion"
	CodeIndirectCallMismatch   Code = "IndirectCallMismatch"
	CodeTableOutOfBounds       Code = "TableOutOfBounds"
	CodeGuestPanic             Code = "GuestPanic"
	CodeInvalidPromiseIndex    Code = "InvalidPromiseIndex"
	CodeInvalidUTF8            Code = "InvalidUTF8"
	CodeHostError              Code = "HostError"
	CodeEngineFault            Code = "EngineFault"
)

// Infrastructure
const (
	CodeStoreRead          Code = "StoreRead"
	CodeStoreWrite         Code = "StoreWrite"
	CodeCodec              Code = "Codec"
	CodeInvariantViolation Code = "InvariantViolation"
)

// ==================== 大类哨兵错误 ====================

var (
	// ErrCompilation 编译错误哨兵，配合 errors.Is 使用
	ErrCompilation = errors.New("compilation error")
	// ErrResourceLimit 资源限制错误哨兵
	ErrResourceLimit = errors.New("resource limit error")
	// ErrLink 链接错误哨兵
	ErrLink = errors.New("link error")
	// ErrRuntimeTrap 运行时陷阱哨兵
	ErrRuntimeTrap = errors.New("runtime trap")
	// ErrInfrastructure 基础设施错误哨兵
	ErrInfrastructure = errors.New("infrastructure error")
)

func sentinelOf(k Kind) error {
	switch k {
	case KindCompilation:
		return ErrCompilation
	case KindResourceLimit:
		return ErrResourceLimit
	case KindLink:
		return ErrLink
	case KindRuntimeTrap:
		return ErrRuntimeTrap
	case KindInfrastructure:
		return ErrInfrastructure
	default:
		return nil
	}
}

// VMError 分类后的执行错误
//
// Kind/Code/Message 可以序列化（编译失败会被缓存），cause 只在本进程内有效。
type VMError struct {
	Kind    Kind   `json:"kind"`
	Code    Code   `json:"code"`
	Message string `json:"message,omitempty"`

	cause error
}

// Error 实现 error 接口
func (e *VMError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s(%s)", e.Kind, e.Code)
	}
	return fmt.Sprintf("%s(%s): %s", e.Kind, e.Code, e.Message)
}

// Unwrap 返回底层原因
func (e *VMError) Unwrap() error {
	return e.cause
}

// Is 让 errors.Is(err, ErrCompilation) 等按大类匹配
func (e *VMError) Is(target error) bool {
	if s := sentinelOf(e.Kind); s != nil && target == s {
		return true
	}
	if t, ok := target.(*VMError); ok {
		return e.Kind == t.Kind && e.Code == t.Code
	}
	return false
}

// IsDeterministic 是否为合约逻辑导致的确定性错误（可进入回执）
func (e *VMError) IsDeterministic() bool {
	return e.Kind != KindInfrastructure
}

// Retryable 是否值得由外部重试
func (e *VMError) Retryable() bool {
	return e.Kind == KindInfrastructure
}

// Equal 比较两个错误在共识层面是否等价（忽略 cause）
func Equal(a, b *VMError) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Kind == b.Kind && a.Code == b.Code && a.Message == b.Message
}

// As 从任意 error 中提取 *VMError
func As(err error) (*VMError, bool) {
	var ve *VMError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// ==================== 构造函数 ====================

func newf(k Kind, code Code, format string, args ...interface{}) *VMError {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	return &VMError{Kind: k, Code: code, Message: msg}
}

// Compilation 构造编译错误
func Compilation(code Code, format string, args ...interface{}) *VMError {
	return newf(KindCompilation, code, format, args...)
}

// ResourceLimit 构造资源限制错误
func ResourceLimit(code Code, format string, args ...interface{}) *VMError {
	return newf(KindResourceLimit, code, format, args...)
}

// Link 构造链接错误
func Link(code Code, format string, args ...interface{}) *VMError {
	return newf(KindLink, code, format, args...)
}

// Trap 构造运行时陷阱
func Trap(code Code, format string, args ...interface{}) *VMError {
	return newf(KindRuntimeTrap, code, format, args...)
}

// Infrastructure 构造基础设施错误，保留底层原因
func Infrastructure(code Code, cause error, format string, args ...interface{}) *VMError {
	e := newf(KindInfrastructure, code, format, args...)
	e.cause = cause
	if cause != nil {
		if e.Message == "" {
			e.Message = cause.Error()
		} else {
			e.Message = e.Message + ": " + cause.Error()
		}
	}
	return e
}

// WithCause 附加底层原因（不影响共识比较）
func (e *VMError) WithCause(cause error) *VMError {
	e.cause = cause
	return e
}
