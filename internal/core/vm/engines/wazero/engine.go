// Package wazero 基于 wazero 的两种执行引擎：解释器与优化编译器
//
// 🎯 **核心职责**
// 两种引擎共享同一份实现，只在 wazero 的运行时模式上不同：
// - Interpreter：wazero.NewRuntimeConfigInterpreter()
// - Compiler：wazero.NewRuntimeConfigCompiler()，可选磁盘编译缓存
//
// 📋 **执行流程**（Run）
//  1. 方法名为空：(nil, MethodEmptyName)，不收费
//  2. 收取合约准备费用，预算不足：(outcome, ResourceLimit)
//  3. 经缓存取得已编译模块，编译失败：(nil, CompilationError)
//  4. 链接 env 宿主模块，失败：(nil, LinkError)
//  5. 解析导出函数，不存在或签名不对：(outcome, RuntimeTrap)
//  6. 执行，陷阱/中止/gas耗尽/宿主错误：(outcome, error)
//
// 🔧 **并发**
// 每个引擎一个共享的 wazero.Runtime，env 宿主模块只注册一次；
// 单次调用的状态经 context 传给宿主函数，多个调用可以并发执行。
//
// ⚠️ **模块生命周期**
// wazero 以字节码哈希标识已编译模块，同一运行时内相同字节码的模块共用一份
// 引擎产物，关闭任意一个都会让其他同字节码模块失效。因此共享运行时上的
// 已编译模块从不单独 Close，只随引擎一起释放；进程内模块表满或只做检查时，
// 改用一次性的临时运行时，用完整体关闭。
package wazero

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/weisyn/vmrunner/internal/core/vm/cache"
	"github.com/weisyn/vmrunner/internal/core/vm/kind"
	"github.com/weisyn/vmrunner/internal/core/vm/logic"
	"github.com/weisyn/vmrunner/internal/core/vm/prepare"
	"github.com/weisyn/vmrunner/internal/core/vm/vmerr"
	"github.com/weisyn/vmrunner/pkg/interfaces/infrastructure/log"
	"github.com/weisyn/vmrunner/pkg/interfaces/vm"
	"github.com/weisyn/vmrunner/pkg/types"
)

// ArtifactFormatVersion 缓存产物格式版本
//
// 产物是准备后的字节码；准备规则或记录格式变化时递增，旧记录自动失效。
const ArtifactFormatVersion uint32 = 2

// DefaultModuleCacheEntries 进程内已编译模块的默认上限
const DefaultModuleCacheEntries = 256

// Options 引擎选项
type Options struct {
	Kind kind.EngineKind

	// CompilationCacheDir wazero 磁盘编译缓存目录（仅编译器模式）
	CompilationCacheDir string

	// ModuleCacheEntries 进程内已编译模块上限；<=0 使用默认值
	ModuleCacheEntries int

	// FailOnInfraError 缓存存储故障时让调用失败（默认降级为未命中）
	FailOnInfraError bool

	// Preparer 校验与插桩；为 nil 时使用 prepare.New()
	Preparer vm.ContractPreparer

	Logger log.Logger
}

// Engine wazero 执行引擎
type Engine struct {
	kind      kind.EngineKind
	runtime   wazero.Runtime
	compCache wazero.CompilationCache

	// scratchRC 临时运行时的配置，不带编译缓存：
	// 带缓存的运行时共用同一个引擎，关闭运行时不会释放其中的模块
	scratchRC wazero.RuntimeConfig

	preparer vm.ContractPreparer
	logger   log.Logger

	failOnInfra bool

	// 进程内已编译模块：cache.Key → wazero.CompiledModule
	modules     sync.Map
	moduleCount atomic.Int64
	moduleLimit int64

	closeOnce sync.Once
}

var _ vm.VM = (*Engine)(nil)

// New 创建引擎
func New(ctx context.Context, opts Options) (e *Engine, err error) {
	if !opts.Kind.Valid() {
		return nil, fmt.Errorf("invalid engine kind %d", opts.Kind)
	}

	var rc wazero.RuntimeConfig
	switch opts.Kind {
	case kind.Interpreter:
		rc = wazero.NewRuntimeConfigInterpreter()
	case kind.Compiler:
		rc = wazero.NewRuntimeConfigCompiler()
	}
	// 不响应外部取消：gas耗尽是唯一的终止方式
	rc = rc.WithCloseOnContextDone(false).WithCustomSections(false)

	scratchRC := rc
	var compCache wazero.CompilationCache
	if opts.Kind == kind.Compiler && opts.CompilationCacheDir != "" {
		compCache, err = wazero.NewCompilationCacheWithDir(opts.CompilationCacheDir)
		if err != nil {
			return nil, fmt.Errorf("create compilation cache at %s: %w", opts.CompilationCacheDir, err)
		}
		rc = rc.WithCompilationCache(compCache)
	}

	// 平台不支持编译器时 wazero 在创建运行时时 panic
	defer func() {
		if r := recover(); r != nil {
			e = nil
			err = fmt.Errorf("create %s runtime: %v", opts.Kind, r)
		}
	}()
	runtime := wazero.NewRuntimeWithConfig(ctx, rc)

	if err := instantiateHostModule(ctx, runtime); err != nil {
		_ = runtime.Close(ctx)
		return nil, fmt.Errorf("instantiate host module: %w", err)
	}

	preparer := opts.Preparer
	if preparer == nil {
		preparer = prepare.New()
	}
	limit := opts.ModuleCacheEntries
	if limit <= 0 {
		limit = DefaultModuleCacheEntries
	}

	e = &Engine{
		kind:        opts.Kind,
		runtime:     runtime,
		compCache:   compCache,
		scratchRC:   scratchRC,
		preparer:    preparer,
		logger:      opts.Logger,
		failOnInfra: opts.FailOnInfraError,
		moduleLimit: int64(limit),
	}
	if e.logger != nil {
		e.logger.Infof("执行引擎已创建: kind=%s compilation_cache_dir=%q", opts.Kind, opts.CompilationCacheDir)
	}
	return e, nil
}

// Kind 引擎种类
func (e *Engine) Kind() kind.EngineKind { return e.kind }

// Close 关闭运行时（同时释放全部已编译模块）
func (e *Engine) Close(ctx context.Context) error {
	var err error
	e.closeOnce.Do(func() {
		err = e.runtime.Close(ctx)
		if e.compCache != nil {
			if cerr := e.compCache.Close(ctx); cerr != nil && err == nil {
				err = cerr
			}
		}
	})
	return err
}

// ==================== Run ====================

// Run 执行合约的一个导出方法
func (e *Engine) Run(
	ctx context.Context,
	code *types.ContractCode,
	methodName string,
	ext vm.External,
	vmCtx types.ExecutionContext,
	cfg *types.VMConfig,
	fees *types.RuntimeFeesConfig,
	promiseResults []types.PromiseResult,
	currentProtocolVersion types.ProtocolVersion,
	store vm.CompiledContractCache,
) (outcome *types.VMOutcome, verr *vmerr.VMError) {
	ctx = context.WithoutCancel(ctx)
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			outcome = nil
			verr = vmerr.Trap(vmerr.CodeEngineFault, "engine panic: %v", r)
			if e.logger != nil {
				e.logger.Errorf("执行引擎内部异常已恢复: kind=%s method=%s panic=%v", e.kind, methodName, r)
			}
		}
		observeRun(e.kind, verr, time.Since(start))
	}()

	if methodName == "" {
		return nil, vmerr.Trap(vmerr.CodeMethodEmptyName, "method name is empty")
	}
	if ext == nil {
		return nil, vmerr.Link(vmerr.CodeMissingExternal, "no external state provided")
	}

	l := logic.New(ext, vmCtx, cfg, fees, promiseResults, currentProtocolVersion)
	if err := l.PayContractCompile(len(code.Code())); err != nil {
		return l.ComputeOutcome(true), err
	}

	m, cerr := e.compile(ctx, code.Code(), code.Hash(), cfg, store, false)
	if cerr != nil {
		return nil, cerr
	}
	defer m.release(ctx)

	callCtx := logic.WithLogic(ctx, l)
	mod, ierr := m.runtime.InstantiateModule(callCtx, m.compiled, wazero.NewModuleConfig().WithName("").WithStartFunctions())
	if ierr != nil {
		return nil, classifyInstantiateError(ierr)
	}
	defer mod.Close(ctx)

	def, ok := m.compiled.ExportedFunctions()[methodName]
	if !ok {
		return l.ComputeOutcome(true), vmerr.Trap(vmerr.CodeMethodNotFound, "method %q is not exported", methodName)
	}
	if len(def.ParamTypes()) != 0 || len(def.ResultTypes()) != 0 {
		return l.ComputeOutcome(true), vmerr.Trap(vmerr.CodeMethodInvalidSignature, "method %q must take no parameters and return nothing, got %s", methodName, exportedSignature(def))
	}

	_, callErr := mod.ExportedFunction(methodName).Call(callCtx)
	if hostErr := l.HostError(); hostErr != nil {
		e.debugf("调用失败(宿主): trace=%s method=%s err=%v", l.TraceID(), methodName, hostErr)
		return l.ComputeOutcome(true), hostErr
	}
	if callErr != nil {
		trap := classifyTrap(callErr)
		e.debugf("调用失败(陷阱): trace=%s method=%s err=%v", l.TraceID(), methodName, trap)
		return l.ComputeOutcome(true), trap
	}

	out := l.ComputeOutcome(false)
	e.debugf("调用完成: trace=%s method=%s burnt=%d used=%d", l.TraceID(), methodName, out.BurntGas, out.UsedGas)
	return out, nil
}

// ==================== Precompile / CheckCompile ====================

// Precompile 只编译并写入缓存
//
// 缓存中的编译失败原样返回；存储写失败总是报告，不受降级策略影响。
func (e *Engine) Precompile(ctx context.Context, code []byte, codeHash types.CryptoHash, cfg *types.VMConfig, store vm.CompiledContractCache) *vmerr.VMError {
	ctx = context.WithoutCancel(ctx)
	m, err := e.compile(ctx, code, codeHash, cfg, store, true)
	m.release(ctx)
	return err
}

// CheckCompile 隔离地校验并编译，不写任何缓存
//
// 在不带编译缓存的临时运行时上编译，结束后关闭整个运行时，
// 不触碰共享运行时里正在使用的模块。
func (e *Engine) CheckCompile(code []byte) bool {
	ctx := context.Background()
	prepared, err := e.preparer.Prepare(code, types.DefaultVMConfig())
	if err != nil {
		return false
	}
	rt := wazero.NewRuntimeWithConfig(ctx, e.scratchRC)
	defer rt.Close(ctx)
	_, cerr := rt.CompileModule(ctx, prepared)
	return cerr == nil
}

// ==================== 编译与缓存 ====================

// module 一次调用使用的已编译模块及其所在运行时
type module struct {
	runtime  wazero.Runtime
	compiled wazero.CompiledModule

	// scratch 为 true 时 runtime 是本次调用独占的临时运行时
	scratch bool
}

// release 释放临时运行时；共享运行时上的模块保持不动
func (m *module) release(ctx context.Context) {
	if m != nil && m.scratch {
		_ = m.runtime.Close(ctx)
	}
}

// compile 取得已编译模块
//
// 顺序：进程内模块 → 持久化缓存 → 准备并编译。
// strict（Precompile）时存储故障一律返回，命中产物时不再编译，返回的模块为 nil。
func (e *Engine) compile(
	ctx context.Context,
	code []byte,
	codeHash types.CryptoHash,
	cfg *types.VMConfig,
	store vm.CompiledContractCache,
	strict bool,
) (*module, *vmerr.VMError) {
	front := cache.NewFront(store, e.kind, ArtifactFormatVersion, e.logger)
	key := front.Key(codeHash, cfg)

	// Precompile 必须落到调用方的存储里，不走进程内捷径
	if !strict {
		if v, ok := e.modules.Load(key); ok {
			return &module{runtime: e.runtime, compiled: v.(wazero.CompiledModule)}, nil
		}
	}

	rec, status, lerr := front.Lookup(ctx, key)
	if lerr != nil {
		if strict || e.failOnInfra {
			return nil, lerr
		}
		e.warnf("缓存读取失败，按未命中处理: key=%s err=%v", key, lerr)
	}

	if status == cache.Hit {
		if rec.Kind == cache.RecordCompileError {
			return nil, rec.CompileErr
		}
		if strict {
			return nil, nil
		}
		m, err := e.load(ctx, rec.Prepared)
		if err != nil {
			return nil, vmerr.Compilation(vmerr.CodeDeserialization, "%v", err)
		}
		e.remember(key, m)
		return m, nil
	}

	prepared, perr := e.preparer.Prepare(code, cfg)
	var m *module
	if perr == nil {
		var err error
		if m, err = e.load(ctx, prepared); err != nil {
			perr = vmerr.Compilation(vmerr.CodeDeserialization, "%v", err)
		}
	}
	if perr != nil {
		if serr := e.storeResult(key, front.StoreCompileError(ctx, key, perr), strict); serr != nil {
			return nil, serr
		}
		return nil, perr
	}
	// 共享运行时上的模块一律登记，存储失败时也一样
	e.remember(key, m)
	if serr := e.storeResult(key, front.StoreArtifact(ctx, key, prepared), strict); serr != nil {
		m.release(ctx)
		return nil, serr
	}
	return m, nil
}

// load 编译准备后的字节码
//
// 进程内模块表未满时编译到共享运行时，否则编译到新建的临时运行时。
func (e *Engine) load(ctx context.Context, prepared []byte) (*module, error) {
	if e.moduleCount.Load() < e.moduleLimit {
		compiled, err := e.runtime.CompileModule(ctx, prepared)
		if err != nil {
			return nil, err
		}
		compileTotal.WithLabelValues(e.kind.String()).Inc()
		return &module{runtime: e.runtime, compiled: compiled}, nil
	}

	rt := wazero.NewRuntimeWithConfig(ctx, e.scratchRC)
	if err := instantiateHostModule(ctx, rt); err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("instantiate host module: %w", err)
	}
	compiled, err := rt.CompileModule(ctx, prepared)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, err
	}
	compileTotal.WithLabelValues(e.kind.String()).Inc()
	e.debugf("进程内模块表已满，使用临时运行时: limit=%d", e.moduleLimit)
	return &module{runtime: rt, compiled: compiled, scratch: true}, nil
}

// remember 把共享运行时上的模块放入进程内模块表
//
// 并发编译同一模块时保留先到者；后到者不 Close，它与先到者共用同一份引擎产物。
// 上限在 load 里检查，并发时可能略微超出。
func (e *Engine) remember(key cache.Key, m *module) {
	if m.scratch {
		return
	}
	if _, loaded := e.modules.LoadOrStore(key, m.compiled); !loaded {
		e.moduleCount.Add(1)
	}
}

func (e *Engine) debugf(format string, args ...interface{}) {
	if e.logger != nil {
		e.logger.Debugf(format, args...)
	}
}

func (e *Engine) warnf(format string, args ...interface{}) {
	if e.logger != nil {
		e.logger.Warnf(format, args...)
	}
}

// exportedSignature 描述函数签名（错误信息用）
func exportedSignature(def api.FunctionDefinition) string {
	return fmt.Sprintf("%v -> %v", def.ParamTypes(), def.ResultTypes())
}
