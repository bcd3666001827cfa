package logic

import (
	"context"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weisyn/vmrunner/internal/core/vm/kind"
	"github.com/weisyn/vmrunner/internal/core/vm/testutil"
	"github.com/weisyn/vmrunner/internal/core/vm/vmerr"
	"github.com/weisyn/vmrunner/pkg/types"
)

type fixture struct {
	logic *VMLogic
	ext   *testutil.MockExternal
	mem   testutil.SliceMemory
	cfg   *types.VMConfig
}

func newFixture(t *testing.T, opts ...func(*types.ExecutionContext, *types.VMConfig)) *fixture {
	t.Helper()
	cfg := types.TestVMConfig()
	vmCtx := types.ExecutionContext{
		CurrentAccountID:     "alice",
		SignerAccountID:      "bob",
		PredecessorAccountID: "carol",
		Input:                []byte("input-bytes"),
		BlockIndex:           42,
		BlockTimestamp:       1_700_000_000,
		EpochHeight:          7,
		AccountBalance:       1_000,
		StorageUsage:         100,
		AttachedDeposit:      5,
		PrepaidGas:           1_000_000,
	}
	for _, o := range opts {
		o(&vmCtx, cfg)
	}
	ext := testutil.NewMockExternal()
	results := []types.PromiseResult{
		types.PromiseResultSuccessful([]byte("ok")),
		{Status: types.PromiseFailed},
		{Status: types.PromiseNotReady},
	}
	return &fixture{
		logic: New(ext, vmCtx, cfg, types.TestRuntimeFeesConfig(), results, kind.CurrentProtocolVersion),
		ext:   ext,
		mem:   testutil.NewSliceMemory(4096),
		cfg:   cfg,
	}
}

func viewCall(c *types.ExecutionContext, _ *types.VMConfig) { c.IsView = true }

func requireTrap(t *testing.T, err *vmerr.VMError, code vmerr.Code) {
	t.Helper()
	require.NotNil(t, err, "期望错误 %s", code)
	assert.Equal(t, code, err.Code, "错误: %v", err)
}

// ==================== 上下文 ====================

func TestLogic_Context(t *testing.T) {
	f := newFixture(t)
	ctx := WithLogic(context.Background(), f.logic)
	got, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Same(t, f.logic, got)

	_, ok = FromContext(context.Background())
	assert.False(t, ok)
	assert.NotEmpty(t, f.logic.TraceID())
}

func TestLogic_InputAndBlockInfo(t *testing.T) {
	f := newFixture(t)
	n, err := f.logic.InputLen()
	require.Nil(t, err)
	assert.Equal(t, uint64(len("input-bytes")), n)
	require.Nil(t, f.logic.InputRead(f.mem, 10))
	assert.Equal(t, []byte("input-bytes"), []byte(f.mem[10:10+n]))

	v, err := f.logic.BlockIndex()
	require.Nil(t, err)
	assert.Equal(t, uint64(42), v)
	v, _ = f.logic.BlockTimestamp()
	assert.Equal(t, uint64(1_700_000_000), v)
	v, _ = f.logic.EpochHeight()
	assert.Equal(t, uint64(7), v)
	v, _ = f.logic.AttachedDeposit()
	assert.Equal(t, uint64(5), v)
	v, _ = f.logic.AccountBalance()
	assert.Equal(t, uint64(1_000), v)
	v, _ = f.logic.PrepaidGas()
	assert.Equal(t, uint64(1_000_000), v)

	used, err := f.logic.UsedGas()
	require.Nil(t, err)
	assert.Equal(t, f.logic.Gas().Used(), used)
	assert.NotZero(t, used, "宿主函数都有基础费用")
}

func TestLogic_AccountIDs(t *testing.T) {
	f := newFixture(t)
	for field, want := range map[AccountField]string{
		CurrentAccount:     "alice",
		SignerAccount:      "bob",
		PredecessorAccount: "carol",
	} {
		n, err := f.logic.AccountIDLen(field)
		require.Nil(t, err)
		require.Nil(t, f.logic.AccountIDRead(f.mem, field, 0))
		assert.Equal(t, want, string(f.mem[:n]))
	}

	view := newFixture(t, viewCall)
	_, err := view.logic.AccountIDLen(CurrentAccount)
	assert.Nil(t, err, "只读调用可以读取当前账户")
	_, err = view.logic.AccountIDLen(SignerAccount)
	requireTrap(t, err, vmerr.CodeHostError)
}

// ==================== 返回值与日志 ====================

func TestLogic_ValueReturn(t *testing.T) {
	f := newFixture(t)
	ptr := f.mem.Put(100, []byte("hello"))
	require.Nil(t, f.logic.ValueReturn(f.mem, 5, ptr))

	// 返回后修改内存不影响已记录的值
	f.mem.Put(100, []byte("XXXXX"))
	out := f.logic.ComputeOutcome(false)
	assert.Equal(t, types.ReturnDataValue, out.ReturnData.Kind)
	assert.Equal(t, []byte("hello"), out.ReturnData.Value)
}

func TestLogic_ValueReturnLimits(t *testing.T) {
	f := newFixture(t, func(_ *types.ExecutionContext, c *types.VMConfig) { c.Limits.MaxReturnDataLength = 2 })
	requireTrap(t, f.logic.ValueReturn(f.mem, 5, 0), vmerr.CodeReturnDataTooLarge)

	f = newFixture(t)
	err := f.logic.ValueReturn(f.mem, 10, uint64(len(f.mem)-4))
	requireTrap(t, err, vmerr.CodeMemoryOutOfBounds)
	assert.Equal(t, vmerr.KindRuntimeTrap, err.Kind)
}

func TestLogic_Logs(t *testing.T) {
	f := newFixture(t, func(_ *types.ExecutionContext, c *types.VMConfig) {
		c.Limits.MaxNumberLogs = 2
		c.Limits.MaxTotalLogLength = 8
	})
	f.mem.Put(0, []byte("abc"))
	f.mem.Put(10, []byte{0xff, 0xfe})

	require.Nil(t, f.logic.LogUTF8(f.mem, 3, 0))
	requireTrap(t, f.logic.LogUTF8(f.mem, 2, 10), vmerr.CodeInvalidUTF8)
	requireTrap(t, f.logic.LogUTF8(f.mem, 6, 0), vmerr.CodeTotalLogLengthExceeded)
	require.Nil(t, f.logic.LogUTF8(f.mem, 3, 0))
	requireTrap(t, f.logic.LogUTF8(f.mem, 1, 0), vmerr.CodeTooManyLogs)

	assert.Equal(t, []string{"abc", "abc"}, f.logic.ComputeOutcome(false).Logs)
}

func TestLogic_Panic(t *testing.T) {
	f := newFixture(t)
	requireTrap(t, f.logic.Panic(), vmerr.CodeGuestPanic)

	f.mem.Put(0, []byte("boom"))
	err := f.logic.PanicUTF8(f.mem, 4, 0)
	requireTrap(t, err, vmerr.CodeGuestPanic)
	assert.Equal(t, "boom", err.Message)
}

func TestLogic_FailKeepsFirstError(t *testing.T) {
	f := newFixture(t)
	first := vmerr.Trap(vmerr.CodeGuestPanic, "first")
	assert.Same(t, first, f.logic.Fail(first))
	assert.Same(t, first, f.logic.Fail(vmerr.Trap(vmerr.CodeHostError, "second")))
	assert.Same(t, first, f.logic.HostError())
}

// ==================== 存储 ====================

func TestLogic_StorageLifecycle(t *testing.T) {
	f := newFixture(t)
	key := f.mem.Put(0, []byte("key"))
	val := f.mem.Put(16, []byte("value"))
	val2 := f.mem.Put(32, []byte("v2"))

	existed, err := f.logic.StorageWrite(f.mem, 3, key, 5, val)
	require.Nil(t, err)
	assert.Equal(t, uint64(0), existed)
	got, ok := f.ext.Get("key")
	require.True(t, ok)
	assert.Equal(t, []byte("value"), got)
	assert.Equal(t, uint64(100+3+5+DataRecordOverhead), f.logic.ComputeOutcome(false).StorageUsage)

	n, err := f.logic.StorageReadLen(f.mem, 3, key)
	require.Nil(t, err)
	assert.Equal(t, uint64(5), n)
	found, err := f.logic.StorageRead(f.mem, 3, key, 200)
	require.Nil(t, err)
	assert.Equal(t, uint64(1), found)
	assert.Equal(t, []byte("value"), []byte(f.mem[200:205]))

	existed, err = f.logic.StorageWrite(f.mem, 3, key, 2, val2)
	require.Nil(t, err)
	assert.Equal(t, uint64(1), existed)
	assert.Equal(t, uint64(100+3+2+DataRecordOverhead), f.logic.ComputeOutcome(false).StorageUsage)

	has, err := f.logic.StorageHasKey(f.mem, 3, key)
	require.Nil(t, err)
	assert.Equal(t, uint64(1), has)

	removed, err := f.logic.StorageRemove(f.mem, 3, key)
	require.Nil(t, err)
	assert.Equal(t, uint64(1), removed)
	removed, err = f.logic.StorageRemove(f.mem, 3, key)
	require.Nil(t, err)
	assert.Equal(t, uint64(0), removed)
	assert.Equal(t, uint64(100), f.logic.ComputeOutcome(false).StorageUsage)

	n, err = f.logic.StorageReadLen(f.mem, 3, key)
	require.Nil(t, err)
	assert.Equal(t, ^uint64(0), n, "不存在的键长度为最大值")
	found, err = f.logic.StorageRead(f.mem, 3, key, 200)
	require.Nil(t, err)
	assert.Equal(t, uint64(0), found)
}

func TestLogic_StorageLimitsAndView(t *testing.T) {
	f := newFixture(t, func(_ *types.ExecutionContext, c *types.VMConfig) {
		c.Limits.MaxLengthStorageKey = 2
		c.Limits.MaxLengthStorageValue = 3
	})
	_, err := f.logic.StorageWrite(f.mem, 3, 0, 1, 0)
	requireTrap(t, err, vmerr.CodeKeyLengthExceeded)
	_, err = f.logic.StorageWrite(f.mem, 1, 0, 4, 0)
	requireTrap(t, err, vmerr.CodeValueLengthExceeded)
	_, err = f.logic.StorageReadLen(f.mem, 3, 0)
	requireTrap(t, err, vmerr.CodeKeyLengthExceeded)

	view := newFixture(t, viewCall)
	_, err = view.logic.StorageWrite(view.mem, 1, 0, 1, 0)
	requireTrap(t, err, vmerr.CodeHostError)
	_, err = view.logic.StorageRemove(view.mem, 1, 0)
	requireTrap(t, err, vmerr.CodeHostError)
	_, err = view.logic.StorageHasKey(view.mem, 1, 0)
	assert.Nil(t, err, "只读调用可以读存储")
}

func TestLogic_ExternalFailureIsHostError(t *testing.T) {
	f := newFixture(t)
	f.ext.Err = testutil.ErrInjected
	_, err := f.logic.StorageWrite(f.mem, 1, 0, 1, 0)
	requireTrap(t, err, vmerr.CodeHostError)
	assert.True(t, errors.Is(err, testutil.ErrInjected), "应保留底层原因")
	assert.True(t, errors.Is(err, vmerr.ErrRuntimeTrap))
}

// ==================== promise ====================

func TestLogic_PromiseResults(t *testing.T) {
	f := newFixture(t)
	n, err := f.logic.PromiseResultsCount()
	require.Nil(t, err)
	assert.Equal(t, uint64(3), n)

	status, err := f.logic.PromiseResultStatus(0)
	require.Nil(t, err)
	assert.Equal(t, uint64(types.PromiseSuccessful), status)
	status, _ = f.logic.PromiseResultStatus(1)
	assert.Equal(t, uint64(types.PromiseFailed), status)

	l, err := f.logic.PromiseResultLen(0)
	require.Nil(t, err)
	assert.Equal(t, uint64(2), l)
	l, _ = f.logic.PromiseResultLen(2)
	assert.Equal(t, ^uint64(0), l)

	ok, err := f.logic.PromiseResultRead(f.mem, 0, 50)
	require.Nil(t, err)
	assert.Equal(t, uint64(1), ok)
	assert.Equal(t, "ok", string(f.mem[50:52]))
	ok, err = f.logic.PromiseResultRead(f.mem, 1, 50)
	require.Nil(t, err)
	assert.Equal(t, uint64(0), ok)

	_, err = f.logic.PromiseResultStatus(3)
	requireTrap(t, err, vmerr.CodeInvalidPromiseIndex)

	view := newFixture(t, viewCall)
	_, err = view.logic.PromiseResultsCount()
	requireTrap(t, err, vmerr.CodeHostError)
}

func putPromiseArgs(m testutil.SliceMemory, receiver, method, args string) (uint64, uint64, uint64) {
	return m.Put(0, []byte(receiver)), m.Put(64, []byte(method)), m.Put(128, []byte(args))
}

func TestLogic_PromiseCreateAndReturn(t *testing.T) {
	f := newFixture(t)
	rp, mp, ap := putPromiseArgs(f.mem, "bob", "callback", "{}")

	idx, err := f.logic.PromiseCreate(f.mem, 3, rp, 8, mp, 2, ap, 100, 5_000)
	require.Nil(t, err)
	require.Nil(t, f.logic.PromiseReturn(idx))

	out := f.logic.ComputeOutcome(false)
	assert.Equal(t, types.ReturnDataReceiptIndex, out.ReturnData.Kind)
	assert.Equal(t, idx, out.ReturnData.ReceiptIndex)
	require.Len(t, out.ActionReceipts, 1)
	assert.Equal(t, "bob", out.ActionReceipts[0].ReceiverID)
	assert.Equal(t, "callback", out.ActionReceipts[0].MethodName)
	assert.Equal(t, []byte("{}"), out.ActionReceipts[0].Args)
	assert.Equal(t, uint64(900), out.Balance, "附带的存款从余额中扣除")
	assert.GreaterOrEqual(t, out.UsedGas-out.BurntGas, uint64(5_000), "附带的gas只计入 used")
	assert.Len(t, f.ext.Receipts(), 1)

	requireTrap(t, f.logic.PromiseReturn(idx+1), vmerr.CodeInvalidPromiseIndex)
}

func TestLogic_PromiseCreateRejections(t *testing.T) {
	f := newFixture(t)
	rp, mp, ap := putPromiseArgs(f.mem, "bob", "callback", "{}")
	_, err := f.logic.PromiseCreate(f.mem, 3, rp, 8, mp, 2, ap, 5_000, 0)
	requireTrap(t, err, vmerr.CodeHostError)

	_, err = f.logic.PromiseCreate(f.mem, 3, rp, 0, mp, 2, ap, 0, 0)
	requireTrap(t, err, vmerr.CodeHostError)

	f = newFixture(t, func(_ *types.ExecutionContext, c *types.VMConfig) { c.Limits.MaxPromisesPerFunctionCall = 1 })
	rp, mp, ap = putPromiseArgs(f.mem, "bob", "callback", "{}")
	_, err = f.logic.PromiseCreate(f.mem, 3, rp, 8, mp, 2, ap, 0, 0)
	require.Nil(t, err)
	_, err = f.logic.PromiseCreate(f.mem, 3, rp, 8, mp, 2, ap, 0, 0)
	requireTrap(t, err, vmerr.CodeTooManyPromises)

	f = newFixture(t, func(_ *types.ExecutionContext, c *types.VMConfig) { c.Limits.MaxArgumentsLength = 1 })
	_, err = f.logic.PromiseCreate(f.mem, 3, rp, 8, mp, 2, ap, 0, 0)
	requireTrap(t, err, vmerr.CodeArgumentsTooLarge)

	view := newFixture(t, viewCall)
	_, err = view.logic.PromiseCreate(view.mem, 3, rp, 8, mp, 2, ap, 0, 0)
	requireTrap(t, err, vmerr.CodeHostError)

	// 附带的gas超过预算
	f = newFixture(t)
	rp, mp, ap = putPromiseArgs(f.mem, "bob", "callback", "{}")
	_, err = f.logic.PromiseCreate(f.mem, 3, rp, 8, mp, 2, ap, 0, 10_000_000)
	requireTrap(t, err, vmerr.CodeGasExceeded)
}

// ==================== gas 与结果包 ====================

func TestLogic_GasOpcodesExhaustion(t *testing.T) {
	f := newFixture(t, func(c *types.ExecutionContext, _ *types.VMConfig) { c.PrepaidGas = 100 })
	require.Nil(t, f.logic.GasOpcodes(60))
	requireTrap(t, f.logic.GasOpcodes(60), vmerr.CodeGasExceeded)

	out := f.logic.ComputeOutcome(true)
	assert.Equal(t, uint64(100), out.BurntGas)
	assert.Equal(t, uint64(100), out.UsedGas)
}

func TestLogic_PayContractCompile(t *testing.T) {
	f := newFixture(t)
	require.Nil(t, f.logic.PayContractCompile(50))
	// ContractCompileBase=100, ContractCompileBytes=1
	assert.Equal(t, uint64(150), f.logic.Gas().Burnt())

	small := newFixture(t, func(c *types.ExecutionContext, _ *types.VMConfig) { c.PrepaidGas = 120 })
	requireTrap(t, small.logic.PayContractCompile(50), vmerr.CodeGasExceeded)
}

func TestLogic_FailedOutcome(t *testing.T) {
	f := newFixture(t)
	f.mem.Put(0, []byte("log"))
	require.Nil(t, f.logic.LogUTF8(f.mem, 3, 0))
	rp, mp, ap := putPromiseArgs(f.mem, "bob", "callback", "{}")
	_, err := f.logic.PromiseCreate(f.mem, 3, rp, 8, mp, 2, ap, 10, 0)
	require.Nil(t, err)
	require.Nil(t, f.logic.ValueReturn(f.mem, 3, 0))

	out := f.logic.ComputeOutcome(true)
	assert.Equal(t, []string{"log"}, out.Logs, "失败时保留日志")
	assert.Empty(t, out.ActionReceipts, "失败时丢弃回执")
	assert.Equal(t, types.ReturnDataNone, out.ReturnData.Kind)
	assert.Equal(t, uint64(1_000), out.Balance, "失败时余额恢复为调用前")
	assert.NotZero(t, out.BurntGas)
}

// ==================== 密码学 ====================

func TestLogic_Hashes(t *testing.T) {
	f := newFixture(t)
	f.mem.Put(0, []byte("abc"))

	require.Nil(t, f.logic.SHA256(f.mem, 3, 0, 100))
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", hex.EncodeToString(f.mem[100:132]))

	require.Nil(t, f.logic.Keccak256(f.mem, 3, 0, 200))
	assert.Equal(t, "4e03657aea45a94fc7d47ba826c8d667c0d1e6e33a64a036ec44f58fa12d6c45", hex.EncodeToString(f.mem[200:232]))

	requireTrap(t, f.logic.SHA256(f.mem, 3, 0, uint64(len(f.mem)-1)), vmerr.CodeMemoryOutOfBounds)
}

func TestLogic_Ecrecover(t *testing.T) {
	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	hash := types.HashBytes([]byte("message"))
	sig := ecdsa.SignCompact(priv, hash[:], false)

	f := newFixture(t)
	hp := f.mem.Put(0, hash[:])
	sp := f.mem.Put(64, sig[1:])
	v := uint64(sig[0] - 27)

	ok, verr := f.logic.Ecrecover(f.mem, hp, sp, v, 256)
	require.Nil(t, verr)
	assert.Equal(t, uint64(1), ok)
	assert.Equal(t, priv.PubKey().SerializeUncompressed()[1:], []byte(f.mem[256:320]))

	// 无效签名不是错误
	zero := make([]byte, 64)
	zp := f.mem.Put(512, zero)
	ok, verr = f.logic.Ecrecover(f.mem, hp, zp, 0, 256)
	require.Nil(t, verr)
	assert.Equal(t, uint64(0), ok)

	_, verr = f.logic.Ecrecover(f.mem, hp, sp, 4, 256)
	requireTrap(t, verr, vmerr.CodeHostError)
}

func TestLogic_EcrecoverProtocolGate(t *testing.T) {
	cfg := types.TestVMConfig()
	vmCtx := types.ExecutionContext{PrepaidGas: 1_000_000}
	mem := testutil.NewSliceMemory(1024)

	old := New(testutil.NewMockExternal(), vmCtx, cfg, types.TestRuntimeFeesConfig(), nil, kind.EcrecoverProtocolVersion-1)
	_, err := old.Ecrecover(mem, 0, 32, 0, 128)
	requireTrap(t, err, vmerr.CodeHostError)

	cur := New(testutil.NewMockExternal(), vmCtx, cfg, types.TestRuntimeFeesConfig(), nil, kind.EcrecoverProtocolVersion)
	_, err = cur.Ecrecover(mem, 0, 32, 0, 128)
	assert.Nil(t, err)
}
