package wazero

import (
	"context"
	"errors"
	"sort"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/weisyn/vmrunner/internal/core/vm/logic"
	"github.com/weisyn/vmrunner/internal/core/vm/prepare"
	"github.com/weisyn/vmrunner/internal/core/vm/vmerr"
)

// ============================================================================
//                              env 宿主模块
// ============================================================================
//
// 每个运行时注册一次。宿主函数从 context 取回本次调用的 VMLogic，
// 失败时把错误记到 VMLogic 上再 panic，wazero 中断执行并从 Call 返回错误，
// 引擎随后优先使用记录的错误。
//
// 长度与指针统一使用 i64。

var errNoLogic = errors.New("host function called outside of a contract call")

func mustLogic(ctx context.Context) *logic.VMLogic {
	l, ok := logic.FromContext(ctx)
	if !ok {
		panic(errNoLogic)
	}
	return l
}

// abort 记录错误并中断客户执行
func abort(l *logic.VMLogic, err *vmerr.VMError) {
	if err != nil {
		panic(l.Fail(err))
	}
}

// noMemory 模块未声明内存时的占位
type noMemory struct{}

func (noMemory) Read(uint32, uint32) ([]byte, bool) { return nil, false }
func (noMemory) Write(uint32, []byte) bool         { return false }

func memoryOf(m api.Module) logic.Memory {
	if mem := m.Memory(); mem != nil {
		return mem
	}
	return noMemory{}
}

// 宿主函数的通用形态
func hostVoid(fn func(l *logic.VMLogic) *vmerr.VMError) func(ctx context.Context) {
	return func(ctx context.Context) {
		l := mustLogic(ctx)
		abort(l, fn(l))
	}
}

func hostU64(fn func(l *logic.VMLogic) (uint64, *vmerr.VMError)) func(ctx context.Context) uint64 {
	return func(ctx context.Context) uint64 {
		l := mustLogic(ctx)
		v, err := fn(l)
		abort(l, err)
		return v
	}
}

func hostFunctions() map[string]interface{} {
	return map[string]interface{}{
		// ==================== gas ====================
		"gas": func(ctx context.Context, opcodes uint32) {
			l := mustLogic(ctx)
			abort(l, l.GasOpcodes(opcodes))
		},

		// ==================== 输入与上下文 ====================
		"input_len": hostU64(func(l *logic.VMLogic) (uint64, *vmerr.VMError) { return l.InputLen() }),
		"input_read": func(ctx context.Context, m api.Module, ptr uint64) {
			l := mustLogic(ctx)
			abort(l, l.InputRead(memoryOf(m), ptr))
		},
		"current_account_id_len":      accountLen(logic.CurrentAccount),
		"current_account_id_read":     accountRead(logic.CurrentAccount),
		"predecessor_account_id_len":  accountLen(logic.PredecessorAccount),
		"predecessor_account_id_read": accountRead(logic.PredecessorAccount),
		"signer_account_id_len":       accountLen(logic.SignerAccount),
		"signer_account_id_read":      accountRead(logic.SignerAccount),
		"block_index":                 hostU64(func(l *logic.VMLogic) (uint64, *vmerr.VMError) { return l.BlockIndex() }),
		"block_timestamp":             hostU64(func(l *logic.VMLogic) (uint64, *vmerr.VMError) { return l.BlockTimestamp() }),
		"epoch_height":                hostU64(func(l *logic.VMLogic) (uint64, *vmerr.VMError) { return l.EpochHeight() }),
		"prepaid_gas":                 hostU64(func(l *logic.VMLogic) (uint64, *vmerr.VMError) { return l.PrepaidGas() }),
		"used_gas":                    hostU64(func(l *logic.VMLogic) (uint64, *vmerr.VMError) { return l.UsedGas() }),
		"attached_deposit":            hostU64(func(l *logic.VMLogic) (uint64, *vmerr.VMError) { return l.AttachedDeposit() }),
		"account_balance":             hostU64(func(l *logic.VMLogic) (uint64, *vmerr.VMError) { return l.AccountBalance() }),

		// ==================== 返回值、日志、中止 ====================
		"value_return": func(ctx context.Context, m api.Module, length, ptr uint64) {
			l := mustLogic(ctx)
			abort(l, l.ValueReturn(memoryOf(m), length, ptr))
		},
		"log_utf8": func(ctx context.Context, m api.Module, length, ptr uint64) {
			l := mustLogic(ctx)
			abort(l, l.LogUTF8(memoryOf(m), length, ptr))
		},
		"panic": hostVoid(func(l *logic.VMLogic) *vmerr.VMError { return l.Panic() }),
		"panic_utf8": func(ctx context.Context, m api.Module, length, ptr uint64) {
			l := mustLogic(ctx)
			abort(l, l.PanicUTF8(memoryOf(m), length, ptr))
		},

		// ==================== 存储 ====================
		"storage_write": func(ctx context.Context, m api.Module, keyLen, keyPtr, valueLen, valuePtr uint64) uint64 {
			l := mustLogic(ctx)
			v, err := l.StorageWrite(memoryOf(m), keyLen, keyPtr, valueLen, valuePtr)
			abort(l, err)
			return v
		},
		"storage_read_len": func(ctx context.Context, m api.Module, keyLen, keyPtr uint64) uint64 {
			l := mustLogic(ctx)
			v, err := l.StorageReadLen(memoryOf(m), keyLen, keyPtr)
			abort(l, err)
			return v
		},
		"storage_read": func(ctx context.Context, m api.Module, keyLen, keyPtr, ptr uint64) uint64 {
			l := mustLogic(ctx)
			v, err := l.StorageRead(memoryOf(m), keyLen, keyPtr, ptr)
			abort(l, err)
			return v
		},
		"storage_remove": func(ctx context.Context, m api.Module, keyLen, keyPtr uint64) uint64 {
			l := mustLogic(ctx)
			v, err := l.StorageRemove(memoryOf(m), keyLen, keyPtr)
			abort(l, err)
			return v
		},
		"storage_has_key": func(ctx context.Context, m api.Module, keyLen, keyPtr uint64) uint64 {
			l := mustLogic(ctx)
			v, err := l.StorageHasKey(memoryOf(m), keyLen, keyPtr)
			abort(l, err)
			return v
		},

		// ==================== promise ====================
		"promise_results_count": hostU64(func(l *logic.VMLogic) (uint64, *vmerr.VMError) { return l.PromiseResultsCount() }),
		"promise_result_status": func(ctx context.Context, idx uint64) uint64 {
			l := mustLogic(ctx)
			v, err := l.PromiseResultStatus(idx)
			abort(l, err)
			return v
		},
		"promise_result_len": func(ctx context.Context, idx uint64) uint64 {
			l := mustLogic(ctx)
			v, err := l.PromiseResultLen(idx)
			abort(l, err)
			return v
		},
		"promise_result_read": func(ctx context.Context, m api.Module, idx, ptr uint64) uint64 {
			l := mustLogic(ctx)
			v, err := l.PromiseResultRead(memoryOf(m), idx, ptr)
			abort(l, err)
			return v
		},
		"promise_create": func(ctx context.Context, m api.Module, accountLen, accountPtr, methodLen, methodPtr, argsLen, argsPtr, amount, gas uint64) uint64 {
			l := mustLogic(ctx)
			v, err := l.PromiseCreate(memoryOf(m), accountLen, accountPtr, methodLen, methodPtr, argsLen, argsPtr, amount, gas)
			abort(l, err)
			return v
		},
		"promise_return": func(ctx context.Context, idx uint64) {
			l := mustLogic(ctx)
			abort(l, l.PromiseReturn(idx))
		},

		// ==================== 密码学 ====================
		"sha256": func(ctx context.Context, m api.Module, length, ptr, outPtr uint64) {
			l := mustLogic(ctx)
			abort(l, l.SHA256(memoryOf(m), length, ptr, outPtr))
		},
		"keccak256": func(ctx context.Context, m api.Module, length, ptr, outPtr uint64) {
			l := mustLogic(ctx)
			abort(l, l.Keccak256(memoryOf(m), length, ptr, outPtr))
		},
		"ecrecover": func(ctx context.Context, m api.Module, hashPtr, sigPtr, v, outPtr uint64) uint64 {
			l := mustLogic(ctx)
			ok, err := l.Ecrecover(memoryOf(m), hashPtr, sigPtr, v, outPtr)
			abort(l, err)
			return ok
		},
	}
}

func accountLen(f logic.AccountField) func(ctx context.Context) uint64 {
	return hostU64(func(l *logic.VMLogic) (uint64, *vmerr.VMError) { return l.AccountIDLen(f) })
}

func accountRead(f logic.AccountField) func(ctx context.Context, m api.Module, ptr uint64) {
	return func(ctx context.Context, m api.Module, ptr uint64) {
		l := mustLogic(ctx)
		abort(l, l.AccountIDRead(memoryOf(m), f, ptr))
	}
}

// HostFunctionNames env 模块导出的全部函数名（排序）
func HostFunctionNames() []string {
	fns := hostFunctions()
	names := make([]string, 0, len(fns))
	for name := range fns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// instantiateHostModule 在运行时中注册 env 模块
func instantiateHostModule(ctx context.Context, r wazero.Runtime) error {
	builder := r.NewHostModuleBuilder(prepare.HostModule)
	fns := hostFunctions()
	for _, name := range HostFunctionNames() {
		builder.NewFunctionBuilder().
			WithFunc(fns[name]).
			Export(name)
	}
	_, err := builder.Instantiate(ctx)
	return err
}
