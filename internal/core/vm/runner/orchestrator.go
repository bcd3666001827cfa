// Package runner 执行调度：按协议版本选择引擎并原样转发调用
//
// 🎯 **核心职责**
// - 启动时把"编译进来的引擎 ∩ 配置启用的引擎"解析成显式的种类→实例表
// - 每次调用按协议版本解析引擎种类，查表，转发
// - 表中缺少所需种类时直接终止进程：继续执行会让本节点与网络分叉
//
// 📋 **结果约定**
// 引擎返回 (nil, nil) 属于实现缺陷，调度器把它转换成 InfrastructureError 并记录错误日志。
package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	vmconfig "github.com/weisyn/vmrunner/internal/config/vm"
	infralog "github.com/weisyn/vmrunner/internal/core/infrastructure/log"
	"github.com/weisyn/vmrunner/internal/core/infrastructure/storage/memory"
	"github.com/weisyn/vmrunner/internal/core/vm/engines/wazero"
	"github.com/weisyn/vmrunner/internal/core/vm/kind"
	"github.com/weisyn/vmrunner/internal/core/vm/vmerr"
	"github.com/weisyn/vmrunner/pkg/interfaces/infrastructure/log"
	"github.com/weisyn/vmrunner/pkg/interfaces/vm"
	"github.com/weisyn/vmrunner/pkg/types"
)

// CompiledIn 编译进本二进制的引擎种类
func CompiledIn() []kind.EngineKind {
	var out []kind.EngineKind
	if interpreterCompiledIn {
		out = append(out, kind.Interpreter)
	}
	if compilerCompiledIn {
		out = append(out, kind.Compiler)
	}
	return out
}

// Orchestrator 执行调度器
//
// 构造后只读，可被任意多个 goroutine 共享。
type Orchestrator struct {
	engines map[kind.EngineKind]vm.VM
	logger  log.Logger

	// fatal 缺少引擎时的终止动作；测试替换为记录函数
	fatal func(format string, args ...interface{})
}

// NewOrchestrator 按配置创建全部引擎并校验回放区间
func NewOrchestrator(ctx context.Context, opts *vmconfig.VMOptions, logger log.Logger) (*Orchestrator, error) {
	engines := make(map[kind.EngineKind]vm.VM)
	closeAll := func() {
		for _, e := range engines {
			_ = e.Close(ctx)
		}
	}

	for _, k := range CompiledIn() {
		if !opts.IsEnabled(k) {
			continue
		}
		e, err := wazero.New(ctx, wazero.Options{
			Kind:                k,
			CompilationCacheDir: opts.CompilationCacheDir,
			ModuleCacheEntries:  opts.ModuleCacheEntries,
			FailOnInfraError:    opts.IsFailPolicy(),
			Logger:              infralog.NewModuleLogger(logger, "engine"),
		})
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("创建 %s 引擎失败: %w", k, err)
		}
		engines[k] = e
	}

	o := NewWithEngines(engines, logger)
	if err := o.Verify(types.ProtocolVersion(opts.ReplayFromVersion), types.ProtocolVersion(opts.ReplayToVersion)); err != nil {
		closeAll()
		return nil, err
	}
	if logger != nil {
		logger.Infof("执行调度器已就绪: engines=%v policy=%s replay=[%d,%d]",
			o.Kinds(), opts.InfraErrorPolicy, opts.ReplayFromVersion, opts.ReplayToVersion)
	}
	return o, nil
}

// NewWithEngines 使用给定的引擎表创建调度器
func NewWithEngines(engines map[kind.EngineKind]vm.VM, logger log.Logger) *Orchestrator {
	table := make(map[kind.EngineKind]vm.VM, len(engines))
	for k, e := range engines {
		table[k] = e
	}
	o := &Orchestrator{engines: table, logger: infralog.NewModuleLogger(logger, "runner")}
	o.fatal = o.defaultFatal
	return o
}

func (o *Orchestrator) defaultFatal(format string, args ...interface{}) {
	if o.logger != nil {
		o.logger.Fatalf(format, args...)
	}
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// engineFor 按协议版本取引擎；缺失时终止进程
func (o *Orchestrator) engineFor(pv types.ProtocolVersion) (vm.VM, *vmerr.VMError) {
	k := kind.ForProtocolVersion(pv)
	if e, ok := o.engines[k]; ok {
		return e, nil
	}
	o.fatal("协议版本 %d 需要 %s 引擎，但本节点未启用（可用: %v）", pv, k, o.Kinds())
	// 仅在测试替换了 fatal 时到达
	return nil, vmerr.Infrastructure(vmerr.CodeInvariantViolation, nil, "engine %s is not available", k)
}

// ==================== 转发 ====================

// Run 执行合约方法
func (o *Orchestrator) Run(
	ctx context.Context,
	code *types.ContractCode,
	methodName string,
	ext vm.External,
	vmCtx types.ExecutionContext,
	cfg *types.VMConfig,
	fees *types.RuntimeFeesConfig,
	promiseResults []types.PromiseResult,
	currentProtocolVersion types.ProtocolVersion,
	cache vm.CompiledContractCache,
) (*types.VMOutcome, *vmerr.VMError) {
	e, verr := o.engineFor(currentProtocolVersion)
	if verr != nil {
		return nil, verr
	}
	out, err := e.Run(ctx, code, methodName, ext, vmCtx, cfg, fees, promiseResults, currentProtocolVersion, cache)
	if out == nil && err == nil {
		if o.logger != nil {
			o.logger.Errorf("引擎返回了空结果且没有错误: engine=%s code=%s method=%s", e.Kind(), code.Hash(), methodName)
		}
		return nil, vmerr.Infrastructure(vmerr.CodeInvariantViolation, nil, "engine %s returned neither outcome nor error", e.Kind())
	}
	return out, err
}

// Precompile 按协议版本选择引擎，只编译并写入缓存
func (o *Orchestrator) Precompile(
	ctx context.Context,
	code []byte,
	codeHash types.CryptoHash,
	cfg *types.VMConfig,
	currentProtocolVersion types.ProtocolVersion,
	cache vm.CompiledContractCache,
) *vmerr.VMError {
	e, verr := o.engineFor(currentProtocolVersion)
	if verr != nil {
		return verr
	}
	return e.Precompile(ctx, code, codeHash, cfg, cache)
}

// CheckCompile 用协议版本对应的引擎检查能否编译
func (o *Orchestrator) CheckCompile(code []byte, currentProtocolVersion types.ProtocolVersion) bool {
	e, verr := o.engineFor(currentProtocolVersion)
	if verr != nil {
		return false
	}
	return e.CheckCompile(code)
}

// CompileForTest 用测试配置编译到一次性的内存缓存
func (o *Orchestrator) CompileForTest(ctx context.Context, code []byte, currentProtocolVersion types.ProtocolVersion) *vmerr.VMError {
	store := memory.New()
	defer store.Close()
	return o.Precompile(ctx, code, types.HashBytes(code), types.TestVMConfig(), currentProtocolVersion, store)
}

// ==================== 查询与生命周期 ====================

// ErrEngineUnavailable 回放区间需要的引擎未启用
var ErrEngineUnavailable = errors.New("required engine kind is not available")

// Verify 检查回放 [from, to] 所需的引擎是否都可用
func (o *Orchestrator) Verify(from, to types.ProtocolVersion) error {
	var missing []string
	for _, k := range kind.RequiredKinds(from, to) {
		if _, ok := o.engines[k]; !ok {
			missing = append(missing, k.String())
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: protocol versions [%d, %d] need %s", ErrEngineUnavailable, from, to, strings.Join(missing, ", "))
	}
	return nil
}

// Kinds 可用的引擎种类（按标签升序）
func (o *Orchestrator) Kinds() []kind.EngineKind {
	var out []kind.EngineKind
	for _, k := range kind.All() {
		if _, ok := o.engines[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

// Engine 取指定种类的引擎
func (o *Orchestrator) Engine(k kind.EngineKind) (vm.VM, bool) {
	e, ok := o.engines[k]
	return e, ok
}

// Close 关闭全部引擎
func (o *Orchestrator) Close(ctx context.Context) error {
	var errs []error
	for _, k := range o.Kinds() {
		if err := o.engines[k].Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close %s engine: %w", k, err))
		}
	}
	return errors.Join(errs...)
}
