// Package logic 实现宿主函数的语义：gas计量、内存访问、存储、日志、promise 与密码学原语
//
// 🎯 **职责边界**
// - 本包不依赖任何具体引擎，只通过 Memory 接口读写客户内存
// - 每次调用创建一个 VMLogic，调用结束后由 ComputeOutcome 产出结果包
// - 所有失败都以 *vmerr.VMError 返回，由引擎负责中断执行
package logic

import (
	"context"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/weisyn/vmrunner/internal/core/vm/vmerr"
	"github.com/weisyn/vmrunner/pkg/interfaces/vm"
	"github.com/weisyn/vmrunner/pkg/types"
)

// DataRecordOverhead 每条存储记录额外计入的字节数
const DataRecordOverhead = 40

// Memory 客户线性内存
//
// wazero 的 api.Memory 满足该接口。
type Memory interface {
	Read(offset, byteCount uint32) ([]byte, bool)
	Write(offset uint32, v []byte) bool
}

// VMLogic 单次调用的宿主侧状态
type VMLogic struct {
	ext            vm.External
	vmCtx          types.ExecutionContext
	cfg            *types.VMConfig
	fees           *types.RuntimeFeesConfig
	promiseResults []types.PromiseResult
	pv             types.ProtocolVersion

	gas *GasCounter

	balance        types.Balance
	storageUsage   uint64
	logs           []string
	totalLogLength uint64
	returnData     types.ReturnData
	receipts       []types.ActionReceipt
	receiptIndices map[uint64]struct{}

	// hostErr 宿主函数失败时记录的错误，引擎中断执行后优先使用
	hostErr *vmerr.VMError

	traceID string
}

// New 创建单次调用的宿主状态
func New(
	ext vm.External,
	vmCtx types.ExecutionContext,
	cfg *types.VMConfig,
	fees *types.RuntimeFeesConfig,
	promiseResults []types.PromiseResult,
	pv types.ProtocolVersion,
) *VMLogic {
	return &VMLogic{
		ext:            ext,
		vmCtx:          vmCtx,
		cfg:            cfg,
		fees:           fees,
		promiseResults: promiseResults,
		pv:             pv,
		gas:            NewGasCounter(cfg.Limits.MaxGasBurnt, vmCtx.PrepaidGas, vmCtx.IsView, cfg.RegularOpCost),
		balance:        vmCtx.AccountBalance,
		storageUsage:   vmCtx.StorageUsage,
		receiptIndices: make(map[uint64]struct{}),
		traceID:        uuid.NewString(),
	}
}

type logicKey struct{}

// WithLogic 把宿主状态放入上下文，宿主函数从上下文取回
func WithLogic(ctx context.Context, l *VMLogic) context.Context {
	return context.WithValue(ctx, logicKey{}, l)
}

// FromContext 取回宿主状态
func FromContext(ctx context.Context) (*VMLogic, bool) {
	l, ok := ctx.Value(logicKey{}).(*VMLogic)
	return l, ok && l != nil
}

// TraceID 本次调用的追踪ID（只用于日志，不进入结果）
func (l *VMLogic) TraceID() string { return l.traceID }

// Gas 返回gas计数器
func (l *VMLogic) Gas() *GasCounter { return l.gas }

// Fail 记录宿主错误；已有错误时保留第一个
func (l *VMLogic) Fail(err *vmerr.VMError) *vmerr.VMError {
	if l.hostErr == nil {
		l.hostErr = err
	}
	return l.hostErr
}

// HostError 返回记录的宿主错误
func (l *VMLogic) HostError() *vmerr.VMError { return l.hostErr }

// PayContractCompile 执行前收取合约准备费用（与缓存是否命中无关）
func (l *VMLogic) PayContractCompile(codeLen int) *vmerr.VMError {
	if err := l.gas.PayBase(l.cfg.ExtCosts.ContractCompileBase); err != nil {
		return err
	}
	return l.gas.PayPerByte(l.cfg.ExtCosts.ContractCompileBytes, uint64(codeLen))
}

// ComputeOutcome 生成结果包
//
// 失败的调用不返回值、不产生回执，日志与已消耗的gas保留。
func (l *VMLogic) ComputeOutcome(failed bool) *types.VMOutcome {
	out := &types.VMOutcome{
		Balance:      l.balance,
		StorageUsage: l.storageUsage,
		BurntGas:     l.gas.Burnt(),
		UsedGas:      l.gas.Used(),
		Logs:         append([]string{}, l.logs...),
	}
	if failed {
		out.Balance = l.vmCtx.AccountBalance
		out.ActionReceipts = []types.ActionReceipt{}
		return out
	}
	out.ReturnData = l.returnData
	out.ActionReceipts = append([]types.ActionReceipt{}, l.receipts...)
	return out
}

// ==================== 内存访问 ====================

func (l *VMLogic) memRead(mem Memory, ptr, length uint64) ([]byte, *vmerr.VMError) {
	if err := l.gas.PayBase(l.cfg.ExtCosts.ReadMemoryBase); err != nil {
		return nil, err
	}
	if err := l.gas.PayPerByte(l.cfg.ExtCosts.ReadMemoryByte, length); err != nil {
		return nil, err
	}
	if ptr > uint64(^uint32(0)) || length > uint64(^uint32(0)) {
		return nil, vmerr.Trap(vmerr.CodeMemoryOutOfBounds, "memory access out of bounds: ptr=%d len=%d", ptr, length)
	}
	buf, ok := mem.Read(uint32(ptr), uint32(length))
	if !ok {
		return nil, vmerr.Trap(vmerr.CodeMemoryOutOfBounds, "memory access out of bounds: ptr=%d len=%d", ptr, length)
	}
	// 客户内存视图在下一次 grow 后失效，拷贝出来
	out := make([]byte, len(buf))
	copy(out, buf)
	return out, nil
}

func (l *VMLogic) memWrite(mem Memory, ptr uint64, data []byte) *vmerr.VMError {
	if err := l.gas.PayBase(l.cfg.ExtCosts.WriteMemoryBase); err != nil {
		return err
	}
	if err := l.gas.PayPerByte(l.cfg.ExtCosts.WriteMemoryByte, uint64(len(data))); err != nil {
		return err
	}
	if ptr > uint64(^uint32(0)) || !mem.Write(uint32(ptr), data) {
		return vmerr.Trap(vmerr.CodeMemoryOutOfBounds, "memory access out of bounds: ptr=%d len=%d", ptr, len(data))
	}
	return nil
}

// ==================== gas ====================

// GasOpcodes env.gas：合约自报的指令数
func (l *VMLogic) GasOpcodes(opcodes uint32) *vmerr.VMError {
	return l.gas.PayOpcodes(opcodes)
}

// ==================== 上下文只读数据 ====================

func (l *VMLogic) payBase() *vmerr.VMError {
	return l.gas.PayBase(l.cfg.ExtCosts.Base)
}

// InputLen 输入长度
func (l *VMLogic) InputLen() (uint64, *vmerr.VMError) {
	if err := l.payBase(); err != nil {
		return 0, err
	}
	return uint64(len(l.vmCtx.Input)), nil
}

// InputRead 把输入写入客户内存
func (l *VMLogic) InputRead(mem Memory, ptr uint64) *vmerr.VMError {
	if err := l.payBase(); err != nil {
		return err
	}
	return l.memWrite(mem, ptr, l.vmCtx.Input)
}

// AccountField 账户类上下文字段
type AccountField int

const (
	CurrentAccount AccountField = iota
	PredecessorAccount
	SignerAccount
)

func (l *VMLogic) accountID(f AccountField) (string, *vmerr.VMError) {
	if l.vmCtx.IsView && f != CurrentAccount {
		return "", vmerr.Trap(vmerr.CodeHostError, "%s is not allowed in view calls", accountFieldName(f))
	}
	switch f {
	case PredecessorAccount:
		return l.vmCtx.PredecessorAccountID, nil
	case SignerAccount:
		return l.vmCtx.SignerAccountID, nil
	default:
		return l.vmCtx.CurrentAccountID, nil
	}
}

func accountFieldName(f AccountField) string {
	switch f {
	case PredecessorAccount:
		return "predecessor_account_id"
	case SignerAccount:
		return "signer_account_id"
	default:
		return "current_account_id"
	}
}

// AccountIDLen 账户ID长度
func (l *VMLogic) AccountIDLen(f AccountField) (uint64, *vmerr.VMError) {
	if err := l.payBase(); err != nil {
		return 0, err
	}
	id, err := l.accountID(f)
	if err != nil {
		return 0, err
	}
	return uint64(len(id)), nil
}

// AccountIDRead 把账户ID写入客户内存
func (l *VMLogic) AccountIDRead(mem Memory, f AccountField, ptr uint64) *vmerr.VMError {
	if err := l.payBase(); err != nil {
		return err
	}
	id, err := l.accountID(f)
	if err != nil {
		return err
	}
	return l.memWrite(mem, ptr, []byte(id))
}

// BlockIndex 区块高度
func (l *VMLogic) BlockIndex() (uint64, *vmerr.VMError) {
	return l.vmCtx.BlockIndex, l.payBase()
}

// BlockTimestamp 区块时间戳
func (l *VMLogic) BlockTimestamp() (uint64, *vmerr.VMError) {
	return l.vmCtx.BlockTimestamp, l.payBase()
}

// EpochHeight 纪元高度
func (l *VMLogic) EpochHeight() (uint64, *vmerr.VMError) {
	return l.vmCtx.EpochHeight, l.payBase()
}

// PrepaidGas 预付gas
func (l *VMLogic) PrepaidGas() (uint64, *vmerr.VMError) {
	return l.gas.PrepaidGas(), l.payBase()
}

// UsedGas 当前已使用gas（含本次基础费用）
func (l *VMLogic) UsedGas() (uint64, *vmerr.VMError) {
	if err := l.payBase(); err != nil {
		return 0, err
	}
	return l.gas.Used(), nil
}

// AttachedDeposit 附带的存款
func (l *VMLogic) AttachedDeposit() (uint64, *vmerr.VMError) {
	return l.vmCtx.AttachedDeposit, l.payBase()
}

// AccountBalance 当前余额（已扣除本次调用发出的存款）
func (l *VMLogic) AccountBalance() (uint64, *vmerr.VMError) {
	return l.balance, l.payBase()
}

// ==================== 返回值与日志 ====================

// ValueReturn 设置返回值
func (l *VMLogic) ValueReturn(mem Memory, length, ptr uint64) *vmerr.VMError {
	if err := l.payBase(); err != nil {
		return err
	}
	if length > l.cfg.Limits.MaxReturnDataLength {
		return vmerr.ResourceLimit(vmerr.CodeReturnDataTooLarge, "return data length %d exceeds limit %d", length, l.cfg.Limits.MaxReturnDataLength)
	}
	value, err := l.memRead(mem, ptr, length)
	if err != nil {
		return err
	}
	l.returnData = types.ReturnData{Kind: types.ReturnDataValue, Value: value}
	return nil
}

// LogUTF8 记录一条UTF-8日志
func (l *VMLogic) LogUTF8(mem Memory, length, ptr uint64) *vmerr.VMError {
	if err := l.payBase(); err != nil {
		return err
	}
	if uint64(len(l.logs)) >= l.cfg.Limits.MaxNumberLogs {
		return vmerr.ResourceLimit(vmerr.CodeTooManyLogs, "number of logs exceeds limit %d", l.cfg.Limits.MaxNumberLogs)
	}
	if l.totalLogLength+length > l.cfg.Limits.MaxTotalLogLength {
		return vmerr.ResourceLimit(vmerr.CodeTotalLogLengthExceeded, "total log length exceeds limit %d", l.cfg.Limits.MaxTotalLogLength)
	}
	msg, err := l.readUTF8(mem, length, ptr)
	if err != nil {
		return err
	}
	if err := l.gas.PayBase(l.cfg.ExtCosts.LogBase); err != nil {
		return err
	}
	if err := l.gas.PayPerByte(l.cfg.ExtCosts.LogByte, length); err != nil {
		return err
	}
	l.totalLogLength += length
	l.logs = append(l.logs, msg)
	return nil
}

// Panic 客户主动中止
func (l *VMLogic) Panic() *vmerr.VMError {
	if err := l.payBase(); err != nil {
		return err
	}
	return vmerr.Trap(vmerr.CodeGuestPanic, "explicit guest panic")
}

// PanicUTF8 客户带消息中止
func (l *VMLogic) PanicUTF8(mem Memory, length, ptr uint64) *vmerr.VMError {
	if err := l.payBase(); err != nil {
		return err
	}
	msg, err := l.readUTF8(mem, length, ptr)
	if err != nil {
		return err
	}
	return vmerr.Trap(vmerr.CodeGuestPanic, "%s", msg)
}

func (l *VMLogic) readUTF8(mem Memory, length, ptr uint64) (string, *vmerr.VMError) {
	buf, err := l.memRead(mem, ptr, length)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(buf) {
		return "", vmerr.Trap(vmerr.CodeInvalidUTF8, "string is not valid utf-8")
	}
	return string(buf), nil
}

// ==================== 存储 ====================

func (l *VMLogic) checkKey(key uint64) *vmerr.VMError {
	if key > l.cfg.Limits.MaxLengthStorageKey {
		return vmerr.ResourceLimit(vmerr.CodeKeyLengthExceeded, "storage key length %d exceeds limit %d", key, l.cfg.Limits.MaxLengthStorageKey)
	}
	return nil
}

func (l *VMLogic) denyInView(op string) *vmerr.VMError {
	if l.vmCtx.IsView {
		return vmerr.Trap(vmerr.CodeHostError, "%s is not allowed in view calls", op)
	}
	return nil
}

func hostFailure(op string, err error) *vmerr.VMError {
	return vmerr.Trap(vmerr.CodeHostError, "%s: %v", op, err).WithCause(err)
}

// StorageWrite 写存储；返回1表示覆盖了已有值
func (l *VMLogic) StorageWrite(mem Memory, keyLen, keyPtr, valueLen, valuePtr uint64) (uint64, *vmerr.VMError) {
	if err := l.payBase(); err != nil {
		return 0, err
	}
	if err := l.denyInView("storage_write"); err != nil {
		return 0, err
	}
	if err := l.checkKey(keyLen); err != nil {
		return 0, err
	}
	if valueLen > l.cfg.Limits.MaxLengthStorageValue {
		return 0, vmerr.ResourceLimit(vmerr.CodeValueLengthExceeded, "storage value length %d exceeds limit %d", valueLen, l.cfg.Limits.MaxLengthStorageValue)
	}
	key, err := l.memRead(mem, keyPtr, keyLen)
	if err != nil {
		return 0, err
	}
	value, err := l.memRead(mem, valuePtr, valueLen)
	if err != nil {
		return 0, err
	}

	costs := l.cfg.ExtCosts
	if err := l.gas.PayBase(costs.StorageWriteBase); err != nil {
		return 0, err
	}
	if err := l.gas.PayPerByte(costs.StorageWriteKeyByte, keyLen); err != nil {
		return 0, err
	}
	if err := l.gas.PayPerByte(costs.StorageWriteValByte, valueLen); err != nil {
		return 0, err
	}

	old, existed, gerr := l.ext.StorageGet(key)
	if gerr != nil {
		return 0, hostFailure("storage_write", gerr)
	}
	if serr := l.ext.StorageSet(key, value); serr != nil {
		return 0, hostFailure("storage_write", serr)
	}

	if existed {
		l.storageUsage = l.storageUsage - uint64(len(old)) + uint64(len(value))
		return 1, nil
	}
	l.storageUsage += uint64(len(key)) + uint64(len(value)) + DataRecordOverhead
	return 0, nil
}

// StorageReadLen 值长度；不存在时返回 ^uint64(0)
func (l *VMLogic) StorageReadLen(mem Memory, keyLen, keyPtr uint64) (uint64, *vmerr.VMError) {
	value, found, err := l.storageRead(mem, keyLen, keyPtr)
	if err != nil {
		return 0, err
	}
	if !found {
		return ^uint64(0), nil
	}
	return uint64(len(value)), nil
}

// StorageRead 把值写入客户内存；返回1表示存在
func (l *VMLogic) StorageRead(mem Memory, keyLen, keyPtr, ptr uint64) (uint64, *vmerr.VMError) {
	value, found, err := l.storageRead(mem, keyLen, keyPtr)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, nil
	}
	if err := l.memWrite(mem, ptr, value); err != nil {
		return 0, err
	}
	return 1, nil
}

func (l *VMLogic) storageRead(mem Memory, keyLen, keyPtr uint64) ([]byte, bool, *vmerr.VMError) {
	if err := l.payBase(); err != nil {
		return nil, false, err
	}
	if err := l.checkKey(keyLen); err != nil {
		return nil, false, err
	}
	key, err := l.memRead(mem, keyPtr, keyLen)
	if err != nil {
		return nil, false, err
	}
	costs := l.cfg.ExtCosts
	if err := l.gas.PayBase(costs.StorageReadBase); err != nil {
		return nil, false, err
	}
	if err := l.gas.PayPerByte(costs.StorageReadKeyByte, keyLen); err != nil {
		return nil, false, err
	}
	value, found, gerr := l.ext.StorageGet(key)
	if gerr != nil {
		return nil, false, hostFailure("storage_read", gerr)
	}
	if found {
		if err := l.gas.PayPerByte(costs.StorageReadValByte, uint64(len(value))); err != nil {
			return nil, false, err
		}
	}
	return value, found, nil
}

// StorageRemove 删除键；返回1表示键原本存在
func (l *VMLogic) StorageRemove(mem Memory, keyLen, keyPtr uint64) (uint64, *vmerr.VMError) {
	if err := l.payBase(); err != nil {
		return 0, err
	}
	if err := l.denyInView("storage_remove"); err != nil {
		return 0, err
	}
	if err := l.checkKey(keyLen); err != nil {
		return 0, err
	}
	key, err := l.memRead(mem, keyPtr, keyLen)
	if err != nil {
		return 0, err
	}
	if err := l.gas.PayBase(l.cfg.ExtCosts.StorageRemoveBase); err != nil {
		return 0, err
	}
	old, existed, gerr := l.ext.StorageGet(key)
	if gerr != nil {
		return 0, hostFailure("storage_remove", gerr)
	}
	if !existed {
		return 0, nil
	}
	if rerr := l.ext.StorageRemove(key); rerr != nil {
		return 0, hostFailure("storage_remove", rerr)
	}
	l.storageUsage -= uint64(len(key)) + uint64(len(old)) + DataRecordOverhead
	return 1, nil
}

// StorageHasKey 键是否存在
func (l *VMLogic) StorageHasKey(mem Memory, keyLen, keyPtr uint64) (uint64, *vmerr.VMError) {
	if err := l.payBase(); err != nil {
		return 0, err
	}
	if err := l.checkKey(keyLen); err != nil {
		return 0, err
	}
	key, err := l.memRead(mem, keyPtr, keyLen)
	if err != nil {
		return 0, err
	}
	if err := l.gas.PayBase(l.cfg.ExtCosts.StorageHasKeyBase); err != nil {
		return 0, err
	}
	ok, herr := l.ext.StorageHasKey(key)
	if herr != nil {
		return 0, hostFailure("storage_has_key", herr)
	}
	if ok {
		return 1, nil
	}
	return 0, nil
}

// ==================== promise ====================

// PromiseResultsCount 回传结果数量
func (l *VMLogic) PromiseResultsCount() (uint64, *vmerr.VMError) {
	if err := l.payBase(); err != nil {
		return 0, err
	}
	if err := l.denyInView("promise_results_count"); err != nil {
		return 0, err
	}
	return uint64(len(l.promiseResults)), nil
}

func (l *VMLogic) promiseResult(idx uint64) (types.PromiseResult, *vmerr.VMError) {
	if err := l.payBase(); err != nil {
		return types.PromiseResult{}, err
	}
	if err := l.denyInView("promise_result"); err != nil {
		return types.PromiseResult{}, err
	}
	if idx >= uint64(len(l.promiseResults)) {
		return types.PromiseResult{}, vmerr.Trap(vmerr.CodeInvalidPromiseIndex, "promise result index %d out of range (%d results)", idx, len(l.promiseResults))
	}
	return l.promiseResults[idx], nil
}

// PromiseResultStatus 结果状态：0 未就绪，1 成功，2 失败
func (l *VMLogic) PromiseResultStatus(idx uint64) (uint64, *vmerr.VMError) {
	r, err := l.promiseResult(idx)
	if err != nil {
		return 0, err
	}
	return uint64(r.Status), nil
}

// PromiseResultLen 成功结果的数据长度；非成功状态返回 ^uint64(0)
func (l *VMLogic) PromiseResultLen(idx uint64) (uint64, *vmerr.VMError) {
	r, err := l.promiseResult(idx)
	if err != nil {
		return 0, err
	}
	if r.Status != types.PromiseSuccessful {
		return ^uint64(0), nil
	}
	return uint64(len(r.Data)), nil
}

// PromiseResultRead 把成功结果写入客户内存；返回1表示写入
func (l *VMLogic) PromiseResultRead(mem Memory, idx, ptr uint64) (uint64, *vmerr.VMError) {
	r, err := l.promiseResult(idx)
	if err != nil {
		return 0, err
	}
	if r.Status != types.PromiseSuccessful {
		return 0, nil
	}
	if err := l.gas.PayBase(l.cfg.ExtCosts.PromiseResultBase); err != nil {
		return 0, err
	}
	if err := l.memWrite(mem, ptr, r.Data); err != nil {
		return 0, err
	}
	return 1, nil
}

// PromiseCreate 创建跨合约函数调用，返回回执索引
func (l *VMLogic) PromiseCreate(mem Memory, accountLen, accountPtr, methodLen, methodPtr, argsLen, argsPtr, amount, gas uint64) (uint64, *vmerr.VMError) {
	if err := l.payBase(); err != nil {
		return 0, err
	}
	if err := l.denyInView("promise_create"); err != nil {
		return 0, err
	}
	if uint64(len(l.receipts)) >= l.cfg.Limits.MaxPromisesPerFunctionCall {
		return 0, vmerr.ResourceLimit(vmerr.CodeTooManyPromises, "number of promises exceeds limit %d", l.cfg.Limits.MaxPromisesPerFunctionCall)
	}
	if argsLen > l.cfg.Limits.MaxArgumentsLength {
		return 0, vmerr.ResourceLimit(vmerr.CodeArgumentsTooLarge, "arguments length %d exceeds limit %d", argsLen, l.cfg.Limits.MaxArgumentsLength)
	}

	receiver, err := l.readUTF8(mem, accountLen, accountPtr)
	if err != nil {
		return 0, err
	}
	method, err := l.readUTF8(mem, methodLen, methodPtr)
	if err != nil {
		return 0, err
	}
	if method == "" {
		return 0, vmerr.Trap(vmerr.CodeHostError, "promise_create: empty method name")
	}
	args, err := l.memRead(mem, argsPtr, argsLen)
	if err != nil {
		return 0, err
	}

	if err := l.payActionCosts(receiver, uint64(len(method))+argsLen); err != nil {
		return 0, err
	}
	if err := l.gas.PrepayGas(gas); err != nil {
		return 0, err
	}
	if amount > l.balance {
		return 0, vmerr.Trap(vmerr.CodeHostError, "promise_create: balance %d is not enough to attach %d", l.balance, amount)
	}

	idx, cerr := l.ext.CreateReceipt(receiver, method, args, amount, gas)
	if cerr != nil {
		return 0, hostFailure("promise_create", cerr)
	}
	l.balance -= amount
	l.receiptIndices[idx] = struct{}{}
	l.receipts = append(l.receipts, types.ActionReceipt{
		ReceiverID:      receiver,
		MethodName:      method,
		Args:            args,
		AttachedDeposit: amount,
		PrepaidGas:      gas,
	})
	return idx, nil
}

// payActionCosts 回执创建与函数调用动作的发送/执行成本
func (l *VMLogic) payActionCosts(receiver string, payloadLen uint64) *vmerr.VMError {
	sir := receiver == l.vmCtx.CurrentAccountID
	send := func(c types.ActionCosts) types.Gas {
		if sir {
			return c.SendSir
		}
		return c.SendNotSir
	}
	f := l.fees

	perByteSend, ok1 := mulGas(send(f.FunctionCallPerByte), payloadLen)
	perByteExec, ok2 := mulGas(f.FunctionCallPerByte.Execution, payloadLen)
	if !ok1 || !ok2 {
		return l.gas.exhaust()
	}
	burn := satAdd(satAdd(send(f.ActionReceiptCreation), send(f.FunctionCall)), perByteSend)
	use := satAdd(satAdd(f.ActionReceiptCreation.Execution, f.FunctionCall.Execution), perByteExec)
	return l.gas.PayActionAccumulated(burn, use)
}

// PromiseReturn 把返回值委托给一个回执
func (l *VMLogic) PromiseReturn(idx uint64) *vmerr.VMError {
	if err := l.payBase(); err != nil {
		return err
	}
	if err := l.denyInView("promise_return"); err != nil {
		return err
	}
	if err := l.gas.PayBase(l.cfg.ExtCosts.PromiseReturn); err != nil {
		return err
	}
	if _, ok := l.receiptIndices[idx]; !ok {
		return vmerr.Trap(vmerr.CodeInvalidPromiseIndex, "promise index %d was not created by this call", idx)
	}
	l.returnData = types.ReturnData{Kind: types.ReturnDataReceiptIndex, ReceiptIndex: idx}
	return nil
}

// ==================== 协议门控 ====================

// requireProtocol 宿主函数只在指定协议版本之后可用
func (l *VMLogic) requireProtocol(name string, since types.ProtocolVersion) *vmerr.VMError {
	if l.pv < since {
		return vmerr.Trap(vmerr.CodeHostError, "%s is not available before protocol version %d (current %d)", name, since, l.pv)
	}
	return nil
}
