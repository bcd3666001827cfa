package testutil

// ==================== 测试合约 ====================
//
// 每个函数返回一份完整的二进制模块。部分合约显式调用 env.gas，
// 准备阶段的插桩会复用这个导入；其余合约的计量完全来自插桩。

// 内存布局约定：数据段从 0 开始，结果缓冲区从 ScratchOffset 开始
const ScratchOffset = 1024

// Noop 导出一个什么都不做的 noop 方法
func Noop() []byte {
	b := NewModule()
	b.Memory(1, 16)
	b.ExportFunc("noop", SigVoid, nil)
	return b.Build()
}

// ReturnValue main 返回固定字节
func ReturnValue(value string) []byte {
	b := NewModule()
	gas := b.Env("gas", SigI32ToVoid)
	ret := b.Env("value_return", SigI64x2)
	b.Memory(1, 16).Data(0, []byte(value))
	b.ExportFunc("main", SigVoid, nil,
		I32Const(10), Call(gas),
		I64Const(int64(len(value))), I64Const(0), Call(ret),
	)
	return b.Build()
}

// EchoInput main 原样返回输入
func EchoInput() []byte {
	b := NewModule()
	inputLen := b.Env("input_len", SigI64)
	inputRead := b.Env("input_read", SigI64ToVoid)
	ret := b.Env("value_return", SigI64x2)
	b.Memory(1, 16)
	b.ExportFunc("main", SigVoid, nil,
		I64Const(ScratchOffset), Call(inputRead),
		Call(inputLen), I64Const(ScratchOffset), Call(ret),
	)
	return b.Build()
}

// LogMessages main 依次写出若干条日志
func LogMessages(msgs ...string) []byte {
	b := NewModule()
	logFn := b.Env("log_utf8", SigI64x2)
	b.Memory(1, 16)
	var body [][]byte
	offset := uint32(0)
	for _, m := range msgs {
		b.Data(offset, []byte(m))
		body = append(body, I64Const(int64(len(m))), I64Const(int64(offset)), Call(logFn))
		offset += uint32(len(m))
	}
	b.ExportFunc("main", SigVoid, nil, body...)
	return b.Build()
}

// LogThenPanic 写一条日志后中止
func LogThenPanic(msg, panicMsg string) []byte {
	b := NewModule()
	logFn := b.Env("log_utf8", SigI64x2)
	panicFn := b.Env("panic_utf8", SigI64x2)
	b.Memory(1, 16).Data(0, []byte(msg)).Data(uint32(len(msg)), []byte(panicMsg))
	b.ExportFunc("main", SigVoid, nil,
		I64Const(int64(len(msg))), I64Const(0), Call(logFn),
		I64Const(int64(len(panicMsg))), I64Const(int64(len(msg))), Call(panicFn),
	)
	return b.Build()
}

// KeyValue 存储读写合约
//
// write: storage[key] = value；read: 返回 storage[key]；remove: 删除 key；has: 返回 1/0 的一个字节
func KeyValue(key, value string) []byte {
	b := NewModule()
	gas := b.Env("gas", SigI32ToVoid)
	write := b.Env("storage_write", SigI64x4ToI64)
	readLen := b.Env("storage_read_len", SigI64x2ToI64)
	read := b.Env("storage_read", SigI64x3ToI64)
	remove := b.Env("storage_remove", SigI64x2ToI64)
	has := b.Env("storage_has_key", SigI64x2ToI64)
	ret := b.Env("value_return", SigI64x2)

	valOff := uint32(len(key))
	b.Memory(1, 16).Data(0, []byte(key)).Data(valOff, []byte(value))

	kl, kp := I64Const(int64(len(key))), I64Const(0)
	b.ExportFunc("write", SigVoid, nil,
		I32Const(5), Call(gas),
		kl, kp, I64Const(int64(len(value))), I64Const(int64(valOff)), Call(write), Op(OpDrop),
	)
	b.ExportFunc("read", SigVoid, []ValType{I64},
		kl, kp, Call(readLen), LocalSet(0),
		kl, kp, I64Const(ScratchOffset), Call(read), Op(OpDrop),
		LocalGet(0), I64Const(ScratchOffset), Call(ret),
	)
	b.ExportFunc("remove", SigVoid, nil,
		kl, kp, Call(remove), Op(OpDrop),
	)
	b.ExportFunc("has", SigVoid, nil,
		I32Const(ScratchOffset), kl, kp, Call(has), I64Store8(),
		I64Const(1), I64Const(ScratchOffset), Call(ret),
	)
	return b.Build()
}

// PromiseResultEcho main 返回第 0 个 promise 结果的数据
func PromiseResultEcho() []byte {
	b := NewModule()
	count := b.Env("promise_results_count", SigI64)
	resLen := b.Env("promise_result_len", SigI64ToI64)
	resRead := b.Env("promise_result_read", FuncType{Params: []ValType{I64, I64}, Results: []ValType{I64}})
	ret := b.Env("value_return", SigI64x2)
	b.Memory(1, 16)
	b.ExportFunc("main", SigVoid, nil,
		Call(count), Op(OpDrop),
		I64Const(0), I64Const(ScratchOffset), Call(resRead), Op(OpDrop),
		I64Const(0), Call(resLen), I64Const(ScratchOffset), Call(ret),
	)
	return b.Build()
}

// PromiseCreate main 向 receiver 发起调用，并把返回值委托给该回执
func PromiseCreate(receiver, method, args string, amount uint64, gas uint64) []byte {
	b := NewModule()
	create := b.Env("promise_create", SigI64x8ToI64)
	ret := b.Env("promise_return", SigI64ToVoid)
	mOff := uint32(len(receiver))
	aOff := mOff + uint32(len(method))
	b.Memory(1, 16).Data(0, []byte(receiver)).Data(mOff, []byte(method)).Data(aOff, []byte(args))
	b.ExportFunc("main", SigVoid, nil,
		I64Const(int64(len(receiver))), I64Const(0),
		I64Const(int64(len(method))), I64Const(int64(mOff)),
		I64Const(int64(len(args))), I64Const(int64(aOff)),
		I64Const(int64(amount)), I64Const(int64(gas)),
		Call(create), Call(ret),
	)
	return b.Build()
}

// BurnGasForever burn 在循环中不停地计量，直到gas耗尽
func BurnGasForever() []byte {
	b := NewModule()
	gas := b.Env("gas", SigI32ToVoid)
	b.Memory(1, 16)
	b.ExportFunc("burn", SigVoid, nil,
		Loop(I32Const(1_000_000), Call(gas), Br(0)),
	)
	return b.Build()
}

// SpinForever spin 空转的死循环，自身不调用 env.gas
func SpinForever() []byte {
	b := NewModule()
	b.Memory(1, 16)
	b.ExportFunc("spin", SigVoid, nil, Loop(Br(0)))
	return b.Build()
}

// Sha256Of main 返回数据的 sha256
func Sha256Of(data string) []byte {
	b := NewModule()
	sha := b.Env("sha256", SigI64x3)
	ret := b.Env("value_return", SigI64x2)
	b.Memory(1, 16).Data(0, []byte(data))
	b.ExportFunc("main", SigVoid, nil,
		I64Const(int64(len(data))), I64Const(0), I64Const(ScratchOffset), Call(sha),
		I64Const(32), I64Const(ScratchOffset), Call(ret),
	)
	return b.Build()
}

// Ecrecover main 用全零输入调用 ecrecover（只验证协议门控）
func Ecrecover() []byte {
	b := NewModule()
	ec := b.Env("ecrecover", SigI64x4ToI64)
	b.Memory(1, 16)
	b.ExportFunc("main", SigVoid, nil,
		I64Const(0), I64Const(32), I64Const(0), I64Const(ScratchOffset), Call(ec), Op(OpDrop),
	)
	return b.Build()
}

// BlockInfo main 返回 block_index 的8字节小端编码
func BlockInfo() []byte {
	b := NewModule()
	idx := b.Env("block_index", SigI64)
	ret := b.Env("value_return", SigI64x2)
	b.Memory(1, 16)
	b.ExportFunc("main", SigVoid, nil,
		I32Const(ScratchOffset), Call(idx), I64Store(),
		I64Const(8), I64Const(ScratchOffset), Call(ret),
	)
	return b.Build()
}

// ==================== 陷阱合约 ====================

// Unreachable main 执行 unreachable
func Unreachable() []byte {
	b := NewModule()
	b.Memory(1, 16)
	b.ExportFunc("main", SigVoid, nil, Op(OpUnreachable))
	return b.Build()
}

// DivideByZero main 整数除零
func DivideByZero() []byte {
	b := NewModule()
	b.Memory(1, 16)
	b.ExportFunc("main", SigVoid, nil, I32Const(1), I32Const(0), Op(OpI32DivS), Op(OpDrop))
	return b.Build()
}

// OutOfBoundsLoad main 读取越界地址
func OutOfBoundsLoad() []byte {
	b := NewModule()
	b.Memory(1, 16)
	b.ExportFunc("main", SigVoid, nil, I32Const(-8), I64Load(), Op(OpDrop))
	return b.Build()
}

// InfiniteRecursion main 无限递归直到栈溢出
func InfiniteRecursion() []byte {
	b := NewModule()
	b.Memory(1, 16)
	// 函数索引 0 调用自身
	b.ExportFunc("main", SigVoid, nil, Call(0))
	return b.Build()
}

// ==================== 编译失败合约 ====================

// ForbiddenImport 导入 env 以外的模块
func ForbiddenImport() []byte {
	b := NewModule()
	b.ImportFunc("wasi_snapshot_preview1", "proc_exit", SigI32ToVoid)
	b.Memory(1, 16)
	b.ExportFunc("main", SigVoid, nil)
	return b.Build()
}

// UnknownHostFunction 导入 env 中不存在的函数
func UnknownHostFunction() []byte {
	b := NewModule()
	b.Env("no_such_function", SigVoid)
	b.Memory(1, 16)
	b.ExportFunc("main", SigVoid, nil)
	return b.Build()
}

// WrongHostSignature 以错误的签名导入宿主函数
func WrongHostSignature() []byte {
	b := NewModule()
	b.Env("value_return", SigI32ToVoid)
	b.Memory(1, 16)
	b.ExportFunc("main", SigVoid, nil)
	return b.Build()
}

// InvalidExportSignature main 带参数，不能作为入口
func InvalidExportSignature() []byte {
	b := NewModule()
	b.Memory(1, 16)
	b.ExportFunc("main", SigI32ToVoid, nil)
	return b.Build()
}

// NoMemoryMax 内存未声明上限（插桩会补上）
func NoMemoryMax() []byte {
	b := NewModule()
	b.Memory(1, -1)
	b.ExportFunc("main", SigVoid, nil)
	return b.Build()
}

// ManyFunctions 含 n 个内部函数
func ManyFunctions(n int) []byte {
	b := NewModule()
	b.Memory(1, 16)
	for i := 0; i < n; i++ {
		b.Func(SigVoid, nil)
	}
	b.Export("main", 0)
	return b.Build()
}

// Garbage 不是合法的二进制模块
func Garbage() []byte {
	return []byte("definitely not wasm")
}
