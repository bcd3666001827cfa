// Package vm 定义合约执行层的能力接口
//
// 🎯 **执行能力接口 (Execution Capability Interface)**
//
// 每种执行引擎（解释器、编译器）实现同一个 VM 接口，
// 调度器按协议版本选择引擎后原样转发调用。
//
// 📋 **结果约定**
// Run 返回两个槽位：
// - (outcome, nil)：执行成功
// - (nil, err)：执行前失败，没有消耗任何gas
// - (outcome, err)：部分执行后失败，outcome 记录已燃烧的gas
// (nil, nil) 永远不会出现。
package vm

import (
	"context"

	"github.com/weisyn/vmrunner/internal/core/vm/kind"
	"github.com/weisyn/vmrunner/internal/core/vm/vmerr"
	"github.com/weisyn/vmrunner/pkg/types"
)

// VM 执行引擎能力接口
type VM interface {
	// Run 执行合约的一个导出方法
	//
	// cache 可以为 nil，此时每次调用都重新编译。
	Run(
		ctx context.Context,
		code *types.ContractCode,
		methodName string,
		ext External,
		vmCtx types.ExecutionContext,
		cfg *types.VMConfig,
		fees *types.RuntimeFeesConfig,
		promiseResults []types.PromiseResult,
		currentProtocolVersion types.ProtocolVersion,
		cache CompiledContractCache,
	) (*types.VMOutcome, *vmerr.VMError)

	// Precompile 只编译并写入缓存，不执行
	Precompile(
		ctx context.Context,
		code []byte,
		codeHash types.CryptoHash,
		cfg *types.VMConfig,
		cache CompiledContractCache,
	) *vmerr.VMError

	// CheckCompile 隔离地校验并编译，不写缓存，只报告能否编译
	CheckCompile(code []byte) bool

	// Kind 返回引擎种类
	Kind() kind.EngineKind

	// Close 释放引擎持有的运行时资源
	Close(ctx context.Context) error
}

// CompiledContractCache 编译产物缓存的持久化存储
//
// 字节键、字节值。读到不存在的键返回 (nil, false, nil)，
// 只有存储本身故障时才返回 error。
type CompiledContractCache interface {
	Get(ctx context.Context, key []byte) ([]byte, bool, error)
	Put(ctx context.Context, key []byte, value []byte) error
}

// External 宿主状态访问接口
//
// 由账户/状态管理层实现，合约通过 env 宿主函数间接调用。
type External interface {
	StorageSet(key, value []byte) error
	StorageGet(key []byte) ([]byte, bool, error)
	StorageRemove(key []byte) error
	StorageHasKey(key []byte) (bool, error)

	// CreateReceipt 创建跨合约调用回执，返回回执索引
	CreateReceipt(
		receiverID types.AccountID,
		methodName string,
		args []byte,
		attachedDeposit types.Balance,
		prepaidGas types.Gas,
	) (uint64, error)

	// GenerateDataID 为回执的输出数据生成唯一标识
	GenerateDataID() types.CryptoHash
}

// ContractPreparer 字节码校验与插桩
//
// 确定性：同一份代码在同一配置下总是得到同样的结果。
// 返回的错误必须是 Compilation 大类，会被写入缓存。
type ContractPreparer interface {
	Prepare(code []byte, cfg *types.VMConfig) ([]byte, *vmerr.VMError)
}
