package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	vmconfig "github.com/weisyn/vmrunner/internal/config/vm"
	infralog "github.com/weisyn/vmrunner/internal/core/infrastructure/log"
	"github.com/weisyn/vmrunner/internal/core/infrastructure/storage/memory"
	"github.com/weisyn/vmrunner/internal/core/vm/cache"
	"github.com/weisyn/vmrunner/internal/core/vm/engines/wazero"
	"github.com/weisyn/vmrunner/internal/core/vm/kind"
	"github.com/weisyn/vmrunner/internal/core/vm/testutil"
	"github.com/weisyn/vmrunner/internal/core/vm/vmerr"
	"github.com/weisyn/vmrunner/pkg/interfaces/vm"
	"github.com/weisyn/vmrunner/pkg/types"
)

// ==================== 假引擎 ====================

// fakeVM 记录调用并返回预设结果
type fakeVM struct {
	kind    kind.EngineKind
	outcome *types.VMOutcome
	err     *vmerr.VMError

	mu     sync.Mutex
	calls  []types.ProtocolVersion
	closed bool
}

var _ vm.VM = (*fakeVM)(nil)

func newFakeVM(k kind.EngineKind) *fakeVM {
	return &fakeVM{kind: k, outcome: &types.VMOutcome{BurntGas: uint64(k)}}
}

func (f *fakeVM) Run(ctx context.Context, code *types.ContractCode, method string, ext vm.External,
	vmCtx types.ExecutionContext, cfg *types.VMConfig, fees *types.RuntimeFeesConfig,
	promiseResults []types.PromiseResult, pv types.ProtocolVersion, cache vm.CompiledContractCache,
) (*types.VMOutcome, *vmerr.VMError) {
	f.mu.Lock()
	f.calls = append(f.calls, pv)
	f.mu.Unlock()
	return f.outcome, f.err
}

func (f *fakeVM) Precompile(ctx context.Context, code []byte, codeHash types.CryptoHash, cfg *types.VMConfig, cache vm.CompiledContractCache) *vmerr.VMError {
	f.mu.Lock()
	f.calls = append(f.calls, 0)
	f.mu.Unlock()
	return f.err
}

func (f *fakeVM) CheckCompile(code []byte) bool { return f.err == nil }
func (f *fakeVM) Kind() kind.EngineKind         { return f.kind }

func (f *fakeVM) Close(ctx context.Context) error {
	f.closed = true
	return nil
}

func (f *fakeVM) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func runWith(o *Orchestrator, pv types.ProtocolVersion) (*types.VMOutcome, *vmerr.VMError) {
	return o.Run(context.Background(), types.NewContractCode([]byte{0}), "main", testutil.NewMockExternal(),
		types.ExecutionContext{PrepaidGas: 1}, types.TestVMConfig(), types.TestRuntimeFeesConfig(), nil, pv, memory.New())
}

// ==================== 调度 ====================

func TestOrchestrator_DispatchByProtocolVersion(t *testing.T) {
	interp, comp := newFakeVM(kind.Interpreter), newFakeVM(kind.Compiler)
	o := NewWithEngines(map[kind.EngineKind]vm.VM{kind.Interpreter: interp, kind.Compiler: comp}, testutil.NewTestLogger())

	out, err := runWith(o, kind.CompilerProtocolVersion-1)
	require.Nil(t, err)
	assert.Same(t, interp.outcome, out, "结果应原样转发")
	assert.Equal(t, 1, interp.callCount())
	assert.Equal(t, 0, comp.callCount())

	_, err = runWith(o, kind.CompilerProtocolVersion)
	require.Nil(t, err)
	assert.Equal(t, 1, comp.callCount())

	require.Nil(t, o.Precompile(context.Background(), []byte{0}, types.CryptoHash{}, types.TestVMConfig(), kind.MinSupportedProtocolVersion, memory.New()))
	assert.Equal(t, 2, interp.callCount())
}

func TestOrchestrator_ForwardsErrorUnchanged(t *testing.T) {
	e := newFakeVM(kind.Compiler)
	e.outcome = &types.VMOutcome{BurntGas: 42}
	e.err = vmerr.ResourceLimit(vmerr.CodeGasExceeded, "out of gas")
	o := NewWithEngines(map[kind.EngineKind]vm.VM{kind.Compiler: e}, nil)

	out, err := runWith(o, kind.CurrentProtocolVersion)
	require.NotNil(t, out, "部分执行结果应与错误一起返回")
	assert.Equal(t, uint64(42), out.BurntGas)
	assert.Same(t, e.err, err)
	assert.False(t, o.CheckCompile([]byte{0}, kind.CurrentProtocolVersion))
}

func TestOrchestrator_MissingEngineIsFatal(t *testing.T) {
	o := NewWithEngines(map[kind.EngineKind]vm.VM{kind.Interpreter: newFakeVM(kind.Interpreter)}, testutil.NewTestLogger())
	var fatalMsg string
	o.fatal = func(format string, args ...interface{}) { fatalMsg = fmt.Sprintf(format, args...) }

	out, err := runWith(o, kind.CurrentProtocolVersion)
	assert.Nil(t, out)
	require.NotNil(t, err)
	assert.Equal(t, vmerr.KindInfrastructure, err.Kind)
	assert.Equal(t, vmerr.CodeInvariantViolation, err.Code)
	assert.Contains(t, fatalMsg, "compiler", "终止信息应包含缺失的引擎种类")

	fatalMsg = ""
	assert.False(t, o.CheckCompile([]byte{0}, kind.CurrentProtocolVersion))
	assert.NotEmpty(t, fatalMsg)
}

func TestOrchestrator_NilResultGuard(t *testing.T) {
	e := newFakeVM(kind.Compiler)
	e.outcome = nil
	logger := testutil.NewTestBehavioralLogger()
	o := NewWithEngines(map[kind.EngineKind]vm.VM{kind.Compiler: e}, logger)

	out, err := runWith(o, kind.CurrentProtocolVersion)
	assert.Nil(t, out)
	require.NotNil(t, err)
	assert.Equal(t, vmerr.CodeInvariantViolation, err.Code)
	assert.True(t, errors.Is(err, vmerr.ErrInfrastructure))

	var logged bool
	for _, l := range logger.GetLogs() {
		if len(l) > 6 && l[:6] == "ERROR:" {
			logged = true
		}
	}
	assert.True(t, logged, "空结果应记录错误日志")
}

func TestOrchestrator_LogsUnderRunnerModule(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	e := newFakeVM(kind.Compiler)
	e.outcome = nil
	o := NewWithEngines(map[kind.EngineKind]vm.VM{kind.Compiler: e}, infralog.NewFromZap(zap.New(core)))

	_, err := runWith(o, kind.CurrentProtocolVersion)
	require.NotNil(t, err)

	entries := logs.FilterLevelExact(zapcore.ErrorLevel).All()
	require.Len(t, entries, 1)
	assert.Equal(t, "runner", entries[0].ContextMap()["module"], "调度器日志按 runner 模块分流")
}

func TestOrchestrator_Verify(t *testing.T) {
	only := NewWithEngines(map[kind.EngineKind]vm.VM{kind.Compiler: newFakeVM(kind.Compiler)}, nil)
	assert.NoError(t, only.Verify(kind.CompilerProtocolVersion, kind.CurrentProtocolVersion))

	err := only.Verify(kind.MinSupportedProtocolVersion, kind.CurrentProtocolVersion)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEngineUnavailable)
	assert.Contains(t, err.Error(), "interpreter")

	assert.Equal(t, []kind.EngineKind{kind.Compiler}, only.Kinds())
	_, ok := only.Engine(kind.Interpreter)
	assert.False(t, ok)
}

func TestOrchestrator_CloseAll(t *testing.T) {
	a, b := newFakeVM(kind.Interpreter), newFakeVM(kind.Compiler)
	o := NewWithEngines(map[kind.EngineKind]vm.VM{kind.Interpreter: a, kind.Compiler: b}, nil)
	require.NoError(t, o.Close(context.Background()))
	assert.True(t, a.closed)
	assert.True(t, b.closed)
}

func TestCompiledIn(t *testing.T) {
	// 默认构建两种引擎都编译进来
	assert.Equal(t, kind.All(), CompiledIn())
}

// ==================== 真实引擎场景 ====================

func newOrchestrator(t *testing.T, mutate ...func(*vmconfig.VMOptions)) *Orchestrator {
	t.Helper()
	opts := &vmconfig.VMOptions{
		EnabledEngines:     kind.All(),
		InfraErrorPolicy:   vmconfig.InfraPolicyDegrade,
		ModuleCacheEntries: 16,
		ReplayFromVersion:  uint32(kind.MinSupportedProtocolVersion),
		ReplayToVersion:    uint32(kind.CurrentProtocolVersion),
	}
	for _, m := range mutate {
		m(opts)
	}
	o, err := NewOrchestrator(context.Background(), opts, testutil.NewTestLogger())
	if err != nil {
		t.Skipf("当前平台无法创建全部引擎: %v", err)
	}
	t.Cleanup(func() { _ = o.Close(context.Background()) })
	return o
}

func defaultCall(o *Orchestrator, code []byte, method string, pv types.ProtocolVersion, store vm.CompiledContractCache) (*types.VMOutcome, *vmerr.VMError) {
	vmCtx := types.ExecutionContext{
		CurrentAccountID:     "alice",
		SignerAccountID:      "alice",
		PredecessorAccountID: "alice",
		AccountBalance:       1_000,
		PrepaidGas:           300_000_000_000_000,
	}
	return o.Run(context.Background(), types.NewContractCode(code), method, testutil.NewMockExternal(), vmCtx,
		types.DefaultVMConfig(), types.DefaultRuntimeFeesConfig(), nil, pv, store)
}

func TestNewOrchestrator_ReplayRangeNeedsEngine(t *testing.T) {
	_, err := NewOrchestrator(context.Background(), &vmconfig.VMOptions{
		EnabledEngines:    []kind.EngineKind{kind.Interpreter},
		InfraErrorPolicy:  vmconfig.InfraPolicyDegrade,
		ReplayFromVersion: uint32(kind.MinSupportedProtocolVersion),
		ReplayToVersion:   uint32(kind.CurrentProtocolVersion),
	}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEngineUnavailable)
}

func TestScenario_NoopMethod(t *testing.T) {
	o := newOrchestrator(t)
	for _, pv := range []types.ProtocolVersion{kind.MinSupportedProtocolVersion, kind.CurrentProtocolVersion} {
		out, err := defaultCall(o, testutil.Noop(), "noop", pv, memory.New())
		require.Nil(t, err, "pv=%d", pv)
		require.NotNil(t, out)
		assert.Equal(t, types.ReturnDataNone, out.ReturnData.Kind)
		assert.Empty(t, out.ReturnData.Value)
		assert.NotZero(t, out.BurntGas, "编译费用至少会燃烧一部分gas")
	}
}

func TestScenario_InvalidBytecode(t *testing.T) {
	o := newOrchestrator(t)
	store := memory.New()
	garbage := testutil.Garbage()

	out, err := defaultCall(o, garbage, "main", kind.CurrentProtocolVersion, store)
	assert.Nil(t, out)
	require.NotNil(t, err)
	assert.Equal(t, vmerr.KindCompilation, err.Kind)

	perr := o.Precompile(context.Background(), garbage, types.HashBytes(garbage), types.DefaultVMConfig(), kind.CurrentProtocolVersion, store)
	require.NotNil(t, perr)
	assert.Equal(t, vmerr.KindCompilation, perr.Kind)
	assert.True(t, vmerr.Equal(err, perr), "缓存的编译错误应与首次结果一致")

	assert.False(t, o.CheckCompile(garbage, kind.CurrentProtocolVersion))
	assert.NotNil(t, o.CompileForTest(context.Background(), garbage, kind.CurrentProtocolVersion))
}

// 缓存写失败：degrade 策略下调用照常完成，fail 策略下以 InfrastructureError 结束
func TestScenario_StorePutFailure(t *testing.T) {
	code := testutil.ReturnValue("ok")

	t.Run("degrade", func(t *testing.T) {
		o := newOrchestrator(t)
		store := testutil.NewFailingStore(memory.New())
		store.FailPut.Store(true)

		out, err := defaultCall(o, code, "main", kind.CurrentProtocolVersion, store)
		require.Nil(t, err)
		require.NotNil(t, out)
		assert.Equal(t, []byte("ok"), out.ReturnData.Value)
		assert.Equal(t, int64(1), store.Puts(), "应尝试写入一次")
	})

	t.Run("fail", func(t *testing.T) {
		o := newOrchestrator(t, func(opts *vmconfig.VMOptions) { opts.InfraErrorPolicy = vmconfig.InfraPolicyFail })
		store := testutil.NewFailingStore(memory.New())
		store.FailPut.Store(true)

		out, err := defaultCall(o, code, "main", kind.CurrentProtocolVersion, store)
		assert.Nil(t, out)
		require.NotNil(t, err)
		assert.Equal(t, vmerr.KindInfrastructure, err.Kind)
		assert.Equal(t, vmerr.CodeStoreWrite, err.Code)
		assert.ErrorIs(t, err, testutil.ErrInjected)
	})
}

func TestScenario_ConcurrentFirstCompile(t *testing.T) {
	o := newOrchestrator(t)
	store := memory.New()
	code := testutil.ReturnValue("race")

	const workers = 2
	outs := make([]*types.VMOutcome, workers)
	errs := make([]*vmerr.VMError, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outs[i], errs[i] = defaultCall(o, code, "main", kind.CurrentProtocolVersion, store)
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.Nil(t, errs[i])
		require.NotNil(t, outs[i])
	}
	assert.Equal(t, outs[0], outs[1], "并发编译的两次调用结果应完全一致")

	require.Equal(t, 1, store.Len(), "同一键只应有一个产物")
	key := cache.NewKey(types.HashBytes(code), types.DefaultVMConfig(), kind.Compiler, wazero.ArtifactFormatVersion)
	raw, ok, err := store.Get(context.Background(), key.Bytes())
	require.NoError(t, err)
	require.True(t, ok)
	rec, derr := cache.Decode(kind.Compiler, wazero.ArtifactFormatVersion, raw)
	require.NoError(t, derr)
	assert.Equal(t, cache.RecordArtifact, rec.Kind)

	third, verr := defaultCall(o, code, "main", kind.CurrentProtocolVersion, store)
	require.Nil(t, verr)
	assert.Equal(t, outs[0], third)
}

func TestScenario_EnginesAgree(t *testing.T) {
	o := newOrchestrator(t)
	code := testutil.LogMessages("a", "bc")

	before, err := defaultCall(o, code, "main", kind.CompilerProtocolVersion-1, memory.New())
	require.Nil(t, err)
	after, err := defaultCall(o, code, "main", kind.CompilerProtocolVersion, memory.New())
	require.Nil(t, err)
	assert.Equal(t, before, after, "两种引擎对同一合约的结果应一致")
}

// 检查编译与正常调用共用引擎时，已缓存的模块必须保持可用
func TestScenario_CheckCompileBetweenRuns(t *testing.T) {
	o := newOrchestrator(t)
	code := testutil.ReturnValue("still-here")
	for _, pv := range []types.ProtocolVersion{kind.CompilerProtocolVersion - 1, kind.CurrentProtocolVersion} {
		store := memory.New()
		_, err := defaultCall(o, code, "main", pv, store)
		require.Nil(t, err, "pv=%d", pv)

		require.True(t, o.CheckCompile(code, pv))

		out, err := defaultCall(o, code, "main", pv, store)
		require.Nil(t, err, "pv=%d", pv)
		assert.Equal(t, []byte("still-here"), out.ReturnData.Value)
	}
}

func TestOrchestrator_PrecompileIdempotent(t *testing.T) {
	o := newOrchestrator(t)
	store := memory.New()
	code := testutil.Noop()
	for i := 0; i < 2; i++ {
		require.Nil(t, o.Precompile(context.Background(), code, types.HashBytes(code), types.DefaultVMConfig(), kind.CurrentProtocolVersion, store))
	}
	assert.Equal(t, 1, store.Len())
	assert.True(t, o.CheckCompile(code, kind.CurrentProtocolVersion))
	assert.Nil(t, o.CompileForTest(context.Background(), code, kind.CurrentProtocolVersion))
}
