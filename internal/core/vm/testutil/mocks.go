// Package testutil 提供执行层测试的辅助工具
//
// 🧪 **测试辅助工具包**
//
// 本包提供测试所需的 Mock 对象、WebAssembly 模块构造器和常用测试合约。
// 本包只依赖接口与数据类型，不依赖具体引擎，避免循环依赖。
package testutil

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/weisyn/vmrunner/pkg/interfaces/infrastructure/log"
	"github.com/weisyn/vmrunner/pkg/interfaces/vm"
	"github.com/weisyn/vmrunner/pkg/types"
)

// ==================== 日志 Mock ====================

// MockLogger 统一的日志Mock实现
//
// ✅ **设计原则**：最小实现，所有方法返回空值，不记录日志
type MockLogger struct{}

func (m *MockLogger) Debug(msg string)                          {}
func (m *MockLogger) Debugf(format string, args ...interface{}) {}
func (m *MockLogger) Info(msg string)                           {}
func (m *MockLogger) Infof(format string, args ...interface{})  {}
func (m *MockLogger) Warn(msg string)                           {}
func (m *MockLogger) Warnf(format string, args ...interface{})  {}
func (m *MockLogger) Error(msg string)                          {}
func (m *MockLogger) Errorf(format string, args ...interface{}) {}
func (m *MockLogger) Fatal(msg string)                          {}
func (m *MockLogger) Fatalf(format string, args ...interface{}) {}
func (m *MockLogger) With(args ...interface{}) log.Logger       { return m }
func (m *MockLogger) Sync() error                               { return nil }
func (m *MockLogger) GetZapLogger() *zap.Logger                 { return zap.NewNop() }

// BehavioralMockLogger 行为Mock日志（记录调用，格式化后的消息）
type BehavioralMockLogger struct {
	logs  []string
	mutex sync.Mutex
}

func (m *BehavioralMockLogger) record(level, msg string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.logs = append(m.logs, level+": "+msg)
}

func (m *BehavioralMockLogger) Debug(msg string) { m.record("DEBUG", msg) }
func (m *BehavioralMockLogger) Debugf(format string, args ...interface{}) {
	m.record("DEBUG", fmt.Sprintf(format, args...))
}
func (m *BehavioralMockLogger) Info(msg string) { m.record("INFO", msg) }
func (m *BehavioralMockLogger) Infof(format string, args ...interface{}) {
	m.record("INFO", fmt.Sprintf(format, args...))
}
func (m *BehavioralMockLogger) Warn(msg string) { m.record("WARN", msg) }
func (m *BehavioralMockLogger) Warnf(format string, args ...interface{}) {
	m.record("WARN", fmt.Sprintf(format, args...))
}
func (m *BehavioralMockLogger) Error(msg string) { m.record("ERROR", msg) }
func (m *BehavioralMockLogger) Errorf(format string, args ...interface{}) {
	m.record("ERROR", fmt.Sprintf(format, args...))
}
func (m *BehavioralMockLogger) Fatal(msg string) { m.record("FATAL", msg) }
func (m *BehavioralMockLogger) Fatalf(format string, args ...interface{}) {
	m.record("FATAL", fmt.Sprintf(format, args...))
}
func (m *BehavioralMockLogger) With(args ...interface{}) log.Logger { return m }
func (m *BehavioralMockLogger) Sync() error                         { return nil }
func (m *BehavioralMockLogger) GetZapLogger() *zap.Logger           { return zap.NewNop() }

// GetLogs 获取所有日志记录
func (m *BehavioralMockLogger) GetLogs() []string {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return append([]string{}, m.logs...)
}

// NewTestLogger 创建测试用的Logger
func NewTestLogger() log.Logger {
	return &MockLogger{}
}

// NewTestBehavioralLogger 创建行为Logger（记录调用）
func NewTestBehavioralLogger() *BehavioralMockLogger {
	return &BehavioralMockLogger{logs: make([]string, 0)}
}

// ==================== External Mock ====================

// MockExternal 内存版宿主状态
type MockExternal struct {
	mu       sync.Mutex
	storage  map[string][]byte
	receipts []types.ActionReceipt
	dataSeq  uint64

	// Err 非nil时所有存储操作返回该错误
	Err error
}

var _ vm.External = (*MockExternal)(nil)

// NewMockExternal 创建空的宿主状态
func NewMockExternal() *MockExternal {
	return &MockExternal{storage: make(map[string][]byte)}
}

func (e *MockExternal) StorageSet(key, value []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Err != nil {
		return e.Err
	}
	e.storage[string(key)] = append([]byte(nil), value...)
	return nil
}

func (e *MockExternal) StorageGet(key []byte) ([]byte, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Err != nil {
		return nil, false, e.Err
	}
	v, ok := e.storage[string(key)]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (e *MockExternal) StorageRemove(key []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Err != nil {
		return e.Err
	}
	delete(e.storage, string(key))
	return nil
}

func (e *MockExternal) StorageHasKey(key []byte) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Err != nil {
		return false, e.Err
	}
	_, ok := e.storage[string(key)]
	return ok, nil
}

func (e *MockExternal) CreateReceipt(receiverID types.AccountID, methodName string, args []byte, attachedDeposit types.Balance, prepaidGas types.Gas) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.receipts = append(e.receipts, types.ActionReceipt{
		ReceiverID:      receiverID,
		MethodName:      methodName,
		Args:            append([]byte(nil), args...),
		AttachedDeposit: attachedDeposit,
		PrepaidGas:      prepaidGas,
	})
	return uint64(len(e.receipts) - 1), nil
}

func (e *MockExternal) GenerateDataID() types.CryptoHash {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dataSeq++
	return types.HashBytes([]byte(fmt.Sprintf("data-%d", e.dataSeq)))
}

// Get 直接读取存储（测试断言用）
func (e *MockExternal) Get(key string) ([]byte, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.storage[key]
	return v, ok
}

// Keys 已写入的全部键（排序）
func (e *MockExternal) Keys() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	keys := make([]string, 0, len(e.storage))
	for k := range e.storage {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Receipts 创建的回执
func (e *MockExternal) Receipts() []types.ActionReceipt {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]types.ActionReceipt{}, e.receipts...)
}

// ==================== 存储 Mock ====================

// ErrInjected 注入的存储故障
var ErrInjected = errors.New("injected store failure")

// FailingStore 包装一个存储，按开关注入读/写故障，并统计调用次数
type FailingStore struct {
	Inner vm.CompiledContractCache

	FailGet atomic.Bool
	FailPut atomic.Bool

	gets atomic.Int64
	puts atomic.Int64
}

var _ vm.CompiledContractCache = (*FailingStore)(nil)

// NewFailingStore 包装存储
func NewFailingStore(inner vm.CompiledContractCache) *FailingStore {
	return &FailingStore{Inner: inner}
}

func (s *FailingStore) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	s.gets.Add(1)
	if s.FailGet.Load() {
		return nil, false, ErrInjected
	}
	return s.Inner.Get(ctx, key)
}

func (s *FailingStore) Put(ctx context.Context, key []byte, value []byte) error {
	s.puts.Add(1)
	if s.FailPut.Load() {
		return ErrInjected
	}
	return s.Inner.Put(ctx, key, value)
}

// Gets 读调用次数
func (s *FailingStore) Gets() int64 { return s.gets.Load() }

// Puts 写调用次数
func (s *FailingStore) Puts() int64 { return s.puts.Load() }

// ==================== 客户内存 Mock ====================

// SliceMemory 基于字节切片的客户内存
type SliceMemory []byte

// NewSliceMemory 创建指定大小的内存
func NewSliceMemory(size int) SliceMemory { return make(SliceMemory, size) }

func (m SliceMemory) Read(offset, byteCount uint32) ([]byte, bool) {
	end := uint64(offset) + uint64(byteCount)
	if end > uint64(len(m)) {
		return nil, false
	}
	return m[offset:end], true
}

func (m SliceMemory) Write(offset uint32, v []byte) bool {
	end := uint64(offset) + uint64(len(v))
	if end > uint64(len(m)) {
		return false
	}
	copy(m[offset:], v)
	return true
}

// Put 在偏移处放入数据并返回偏移（测试准备数据用）
func (m SliceMemory) Put(offset uint32, v []byte) uint64 {
	copy(m[offset:], v)
	return uint64(offset)
}
