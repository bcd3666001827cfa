package testutil

import (
	"bytes"
)

// ==================== WebAssembly 模块构造器 ====================
//
// 测试合约在 Go 中直接组装成二进制模块，不依赖外部工具链。
// 只覆盖测试需要的子集：类型、函数导入、函数、单个内存、导出、数据段。

// ValType 值类型
type ValType byte

const (
	I32 ValType = 0x7f
	I64 ValType = 0x7e
)

// FuncType 函数签名
type FuncType struct {
	Params  []ValType
	Results []ValType
}

// 常用签名
var (
	SigVoid       = FuncType{}
	SigI64        = FuncType{Results: []ValType{I64}}
	SigI32        = FuncType{Results: []ValType{I32}}
	SigI32ToVoid  = FuncType{Params: []ValType{I32}}
	SigI64ToVoid  = FuncType{Params: []ValType{I64}}
	SigI64ToI64   = FuncType{Params: []ValType{I64}, Results: []ValType{I64}}
	SigI64x2      = FuncType{Params: []ValType{I64, I64}}
	SigI64x2ToI64 = FuncType{Params: []ValType{I64, I64}, Results: []ValType{I64}}
	SigI64x3      = FuncType{Params: []ValType{I64, I64, I64}}
	SigI64x3ToI64 = FuncType{Params: []ValType{I64, I64, I64}, Results: []ValType{I64}}
	SigI64x4ToI64 = FuncType{Params: []ValType{I64, I64, I64, I64}, Results: []ValType{I64}}
	SigI64x8ToI64 = FuncType{Params: []ValType{I64, I64, I64, I64, I64, I64, I64, I64}, Results: []ValType{I64}}
)

type importEntry struct {
	module, name string
	typeIdx      uint32
}

type funcEntry struct {
	typeIdx uint32
	locals  []ValType
	body    []byte
}

type exportEntry struct {
	name string
	kind byte
	idx  uint32
}

type dataSegment struct {
	offset uint32
	data   []byte
}

type memoryLimits struct {
	min    uint32
	max    uint32
	hasMax bool
}

// ModuleBuilder 模块构造器
type ModuleBuilder struct {
	types   []FuncType
	imports []importEntry
	funcs   []funcEntry
	memory  *memoryLimits
	exports []exportEntry
	data    []dataSegment
}

// NewModule 创建空模块
func NewModule() *ModuleBuilder {
	return &ModuleBuilder{}
}

func (b *ModuleBuilder) typeIndex(ft FuncType) uint32 {
	for i, t := range b.types {
		if bytes.Equal(valBytes(t.Params), valBytes(ft.Params)) && bytes.Equal(valBytes(t.Results), valBytes(ft.Results)) {
			return uint32(i)
		}
	}
	b.types = append(b.types, ft)
	return uint32(len(b.types) - 1)
}

// ImportFunc 导入函数，返回函数索引；必须在定义任何函数之前调用
func (b *ModuleBuilder) ImportFunc(module, name string, ft FuncType) uint32 {
	if len(b.funcs) > 0 {
		panic("testutil: imports must be declared before functions")
	}
	b.imports = append(b.imports, importEntry{module: module, name: name, typeIdx: b.typeIndex(ft)})
	return uint32(len(b.imports) - 1)
}

// Env 导入 env 模块的宿主函数
func (b *ModuleBuilder) Env(name string, ft FuncType) uint32 {
	return b.ImportFunc("env", name, ft)
}

// Func 定义函数，返回函数索引；body 不需要以 end 结尾
func (b *ModuleBuilder) Func(ft FuncType, locals []ValType, body ...[]byte) uint32 {
	b.funcs = append(b.funcs, funcEntry{typeIdx: b.typeIndex(ft), locals: locals, body: Concat(body...)})
	return uint32(len(b.imports) + len(b.funcs) - 1)
}

// Export 导出函数
func (b *ModuleBuilder) Export(name string, funcIdx uint32) *ModuleBuilder {
	b.exports = append(b.exports, exportEntry{name: name, kind: 0x00, idx: funcIdx})
	return b
}

// ExportFunc 定义并导出函数
func (b *ModuleBuilder) ExportFunc(name string, ft FuncType, locals []ValType, body ...[]byte) uint32 {
	idx := b.Func(ft, locals, body...)
	b.Export(name, idx)
	return idx
}

// Memory 声明线性内存（页数）；max < 0 表示不设上限
func (b *ModuleBuilder) Memory(min uint32, max int64) *ModuleBuilder {
	m := &memoryLimits{min: min}
	if max >= 0 {
		m.max = uint32(max)
		m.hasMax = true
	}
	b.memory = m
	return b
}

// Data 在内存偏移处放置初始化数据
func (b *ModuleBuilder) Data(offset uint32, data []byte) *ModuleBuilder {
	b.data = append(b.data, dataSegment{offset: offset, data: append([]byte(nil), data...)})
	return b
}

// Build 编码为二进制模块
func (b *ModuleBuilder) Build() []byte {
	var out bytes.Buffer
	out.Write([]byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00})

	if len(b.types) > 0 {
		var sec bytes.Buffer
		sec.Write(ULEB(uint64(len(b.types))))
		for _, t := range b.types {
			sec.WriteByte(0x60)
			sec.Write(ULEB(uint64(len(t.Params))))
			sec.Write(valBytes(t.Params))
			sec.Write(ULEB(uint64(len(t.Results))))
			sec.Write(valBytes(t.Results))
		}
		writeSection(&out, 1, sec.Bytes())
	}

	if len(b.imports) > 0 {
		var sec bytes.Buffer
		sec.Write(ULEB(uint64(len(b.imports))))
		for _, imp := range b.imports {
			sec.Write(Name(imp.module))
			sec.Write(Name(imp.name))
			sec.WriteByte(0x00)
			sec.Write(ULEB(uint64(imp.typeIdx)))
		}
		writeSection(&out, 2, sec.Bytes())
	}

	if len(b.funcs) > 0 {
		var sec bytes.Buffer
		sec.Write(ULEB(uint64(len(b.funcs))))
		for _, f := range b.funcs {
			sec.Write(ULEB(uint64(f.typeIdx)))
		}
		writeSection(&out, 3, sec.Bytes())
	}

	if b.memory != nil {
		var sec bytes.Buffer
		sec.Write(ULEB(1))
		if b.memory.hasMax {
			sec.WriteByte(0x01)
			sec.Write(ULEB(uint64(b.memory.min)))
			sec.Write(ULEB(uint64(b.memory.max)))
		} else {
			sec.WriteByte(0x00)
			sec.Write(ULEB(uint64(b.memory.min)))
		}
		writeSection(&out, 5, sec.Bytes())
	}

	if len(b.exports) > 0 {
		var sec bytes.Buffer
		sec.Write(ULEB(uint64(len(b.exports))))
		for _, e := range b.exports {
			sec.Write(Name(e.name))
			sec.WriteByte(e.kind)
			sec.Write(ULEB(uint64(e.idx)))
		}
		writeSection(&out, 7, sec.Bytes())
	}

	if len(b.funcs) > 0 {
		var sec bytes.Buffer
		sec.Write(ULEB(uint64(len(b.funcs))))
		for _, f := range b.funcs {
			var body bytes.Buffer
			body.Write(ULEB(uint64(len(f.locals))))
			for _, l := range f.locals {
				body.Write(ULEB(1))
				body.WriteByte(byte(l))
			}
			body.Write(f.body)
			body.WriteByte(OpEnd)
			sec.Write(ULEB(uint64(body.Len())))
			sec.Write(body.Bytes())
		}
		writeSection(&out, 10, sec.Bytes())
	}

	if len(b.data) > 0 {
		var sec bytes.Buffer
		sec.Write(ULEB(uint64(len(b.data))))
		for _, d := range b.data {
			sec.WriteByte(0x00)
			sec.Write(I32Const(int32(d.offset)))
			sec.WriteByte(OpEnd)
			sec.Write(ULEB(uint64(len(d.data))))
			sec.Write(d.data)
		}
		writeSection(&out, 11, sec.Bytes())
	}

	return out.Bytes()
}

func writeSection(out *bytes.Buffer, id byte, content []byte) {
	out.WriteByte(id)
	out.Write(ULEB(uint64(len(content))))
	out.Write(content)
}

func valBytes(vs []ValType) []byte {
	out := make([]byte, len(vs))
	for i, v := range vs {
		out[i] = byte(v)
	}
	return out
}

// ==================== 编码辅助 ====================

// ULEB 无符号 LEB128
func ULEB(v uint64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			return out
		}
	}
}

// SLEB 有符号 LEB128
func SLEB(v int64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		done := (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0)
		if !done {
			b |= 0x80
		}
		out = append(out, b)
		if done {
			return out
		}
	}
}

// Name 长度前缀的 UTF-8 名称
func Name(s string) []byte {
	return append(ULEB(uint64(len(s))), s...)
}

// Concat 拼接指令序列
func Concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// ==================== 指令 ====================

const (
	OpUnreachable byte = 0x00
	OpNop         byte = 0x01
	OpBlock       byte = 0x02
	OpLoop        byte = 0x03
	OpIf          byte = 0x04
	OpElse        byte = 0x05
	OpEnd         byte = 0x0b
	OpBr          byte = 0x0c
	OpBrIf        byte = 0x0d
	OpReturn      byte = 0x0f
	OpCall        byte = 0x10
	OpDrop        byte = 0x1a
	OpLocalGet    byte = 0x20
	OpLocalSet    byte = 0x21
	OpI32Load     byte = 0x28
	OpI64Load     byte = 0x29
	OpI32Store    byte = 0x36
	OpI64Store    byte = 0x37
	OpMemoryGrow  byte = 0x40
	OpI32Const    byte = 0x41
	OpI64Const    byte = 0x42
	OpI32Eqz      byte = 0x45
	OpI64Eqz      byte = 0x50
	OpI64Eq       byte = 0x51
	OpI32Add      byte = 0x6a
	OpI32DivS     byte = 0x6d
	OpI64Add      byte = 0x7c
	OpI64Sub      byte = 0x7d
	OpI64DivU     byte = 0x80
	OpI32WrapI64  byte = 0xa7
	OpI64ExtendU  byte = 0xad
	BlockTypeVoid byte = 0x40
)

// I32Const i32.const
func I32Const(v int32) []byte { return append([]byte{OpI32Const}, SLEB(int64(v))...) }

// I64Const i64.const
func I64Const(v int64) []byte { return append([]byte{OpI64Const}, SLEB(v)...) }

// Call call
func Call(idx uint32) []byte { return append([]byte{OpCall}, ULEB(uint64(idx))...) }

// LocalGet local.get
func LocalGet(idx uint32) []byte { return append([]byte{OpLocalGet}, ULEB(uint64(idx))...) }

// LocalSet local.set
func LocalSet(idx uint32) []byte { return append([]byte{OpLocalSet}, ULEB(uint64(idx))...) }

// Br br
func Br(depth uint32) []byte { return append([]byte{OpBr}, ULEB(uint64(depth))...) }

// BrIf br_if
func BrIf(depth uint32) []byte { return append([]byte{OpBrIf}, ULEB(uint64(depth))...) }

// Loop 无结果的循环块
func Loop(body ...[]byte) []byte {
	return Concat([]byte{OpLoop, BlockTypeVoid}, Concat(body...), []byte{OpEnd})
}

// Block 无结果的块
func Block(body ...[]byte) []byte {
	return Concat([]byte{OpBlock, BlockTypeVoid}, Concat(body...), []byte{OpEnd})
}

// Op 单字节指令
func Op(ops ...byte) []byte { return ops }

// MemArg 内存指令的对齐与偏移
func MemArg(align, offset uint32) []byte {
	return append(ULEB(uint64(align)), ULEB(uint64(offset))...)
}

// I64Store i64.store offset=0
func I64Store() []byte { return append([]byte{OpI64Store}, MemArg(3, 0)...) }

// I64Load i64.load offset=0
func I64Load() []byte { return append([]byte{OpI64Load}, MemArg(3, 0)...) }

// MemoryGrow memory.grow 0
func MemoryGrow() []byte { return []byte{OpMemoryGrow, 0x00} }

// I64Store8 i64.store8 offset=0
func I64Store8() []byte { return append([]byte{0x3c}, MemArg(0, 0)...) }
