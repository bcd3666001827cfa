package prepare

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
)

// ============================================================================
//                              gas 计量插桩
// ============================================================================
//
// 函数体按控制流切成直线段：函数入口、block/loop/if/else/end 之后、
// br/br_if/br_table/return/unreachable 之后各开始一段。每段开头注入
//
//	i32.const <段内指令数>
//	call $env.gas
//
// loop 之后的段在每次迭代都会执行，所以任何循环都会被gas预算终止。
// 模块未导入 env.gas 时在导入段末尾追加，之后定义的函数索引整体加一。

// 指令操作码（只列出插桩关心的）
const (
	opUnreachable  byte = 0x00
	opNop          byte = 0x01
	opBlock        byte = 0x02
	opLoop         byte = 0x03
	opIf           byte = 0x04
	opElse         byte = 0x05
	opEnd          byte = 0x0b
	opBr           byte = 0x0c
	opBrIf         byte = 0x0d
	opBrTable      byte = 0x0e
	opReturn       byte = 0x0f
	opCall         byte = 0x10
	opCallIndirect byte = 0x11
	opDrop         byte = 0x1a
	opSelect       byte = 0x1b
	opSelectT      byte = 0x1c
	opI32Const     byte = 0x41
	opI64Const     byte = 0x42
	opF32Const     byte = 0x43
	opF64Const     byte = 0x44
	opRefNull      byte = 0xd0
	opRefIsNull    byte = 0xd1
	opRefFunc      byte = 0xd2
	opMiscPrefix   byte = 0xfc
)

const (
	valI32   byte = 0x7f
	funcForm byte = 0x60

	// gasFunc env 中计量函数的名字
	gasFunc = "gas"

	noShift = math.MaxUint32
)

var errUnsupportedOpcode = errors.New("unsupported opcode")

// gasSig env.gas 的签名：(i32) -> ()
var gasSig = FuncSig{Params: []byte{valI32}}

func sameSig(a, b FuncSig) bool {
	return bytes.Equal(a.Params, b.Params) && bytes.Equal(a.Results, b.Results)
}

// meter 一次插桩的参数
type meter struct {
	gasIdx    uint32 // env.gas 的函数索引
	shiftFrom uint32 // >= 此值的函数索引加一；noShift 表示不移动
}

func (m *meter) mapFunc(idx uint32) uint32 {
	if idx >= m.shiftFrom {
		return idx + 1
	}
	return idx
}

// instr 解码后的一条指令
type instr struct {
	op      byte
	raw     []byte // 原始字节（含立即数）
	funcRef bool   // 立即数是函数索引：call / ref.func
	funcIdx uint32
}

func (m *meter) writeInstr(w *bytes.Buffer, in instr) {
	if in.funcRef && in.funcIdx >= m.shiftFrom {
		w.WriteByte(in.op)
		w.Write(appendVarUint32(nil, m.mapFunc(in.funcIdx)))
		return
	}
	w.Write(in.raw)
}

// meterBody 对单个函数体（含局部变量声明）插桩
func (m *meter) meterBody(body []byte) ([]byte, error) {
	r := bytes.NewReader(body)
	decls, err := readVarUint32(r)
	if err != nil {
		return nil, fmt.Errorf("locals: %w", err)
	}
	for i := uint32(0); i < decls; i++ {
		if _, err := readVarUint32(r); err != nil {
			return nil, fmt.Errorf("locals: %w", err)
		}
		if _, err := r.ReadByte(); err != nil {
			return nil, fmt.Errorf("locals: %w", err)
		}
	}

	var out, seg bytes.Buffer
	out.Grow(len(body) + 16)
	out.Write(body[:len(body)-r.Len()])

	cost := int32(0)
	flush := func() {
		if cost > 0 {
			out.WriteByte(opI32Const)
			out.Write(appendVarInt32(nil, cost))
			out.WriteByte(opCall)
			out.Write(appendVarUint32(nil, m.gasIdx))
		}
		out.Write(seg.Bytes())
		seg.Reset()
		cost = 0
	}

	depth := 1
	for r.Len() > 0 {
		in, err := readInstr(body, r)
		if err != nil {
			return nil, err
		}
		cost++
		m.writeInstr(&seg, in)

		switch in.op {
		case opBlock, opLoop, opIf:
			depth++
			flush()
		case opElse, opBr, opBrIf, opBrTable, opReturn, opUnreachable:
			flush()
		case opEnd:
			depth--
			flush()
			if depth == 0 {
				if r.Len() != 0 {
					return nil, fmt.Errorf("%d bytes after function end", r.Len())
				}
				return out.Bytes(), nil
			}
		}
	}
	return nil, io.ErrUnexpectedEOF
}

// meterCode 对代码段的每个函数体插桩
func (m *meter) meterCode(content []byte) ([]byte, error) {
	r := bytes.NewReader(content)
	n, err := readVarUint32(r)
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	out.Grow(len(content) + int(n)*16)
	out.Write(appendVarUint32(nil, n))
	for i := uint32(0); i < n; i++ {
		size, err := readVarUint32(r)
		if err != nil {
			return nil, err
		}
		if uint64(size) > uint64(r.Len()) {
			return nil, io.ErrUnexpectedEOF
		}
		start := len(content) - r.Len()
		body, err := m.meterBody(content[start : start+int(size)])
		if err != nil {
			return nil, fmt.Errorf("function %d: %w", i, err)
		}
		if _, err := r.Seek(int64(size), io.SeekCurrent); err != nil {
			return nil, err
		}
		out.Write(appendVarUint32(nil, uint32(len(body))))
		out.Write(body)
	}
	return out.Bytes(), trailing(r)
}

// ==================== 函数索引平移 ====================

// copyConstExpr 复制常量表达式（到 end 为止），平移其中的 ref.func
func (m *meter) copyConstExpr(src []byte, r *bytes.Reader, w *bytes.Buffer) error {
	for {
		in, err := readInstr(src, r)
		if err != nil {
			return err
		}
		m.writeInstr(w, in)
		if in.op == opEnd {
			return nil
		}
	}
}

func copyVarUint32(r *bytes.Reader, w *bytes.Buffer) (uint32, error) {
	v, err := readVarUint32(r)
	if err != nil {
		return 0, err
	}
	w.Write(appendVarUint32(nil, v))
	return v, nil
}

func copyByte(r *bytes.Reader, w *bytes.Buffer) error {
	b, err := r.ReadByte()
	if err != nil {
		return err
	}
	w.WriteByte(b)
	return nil
}

func (m *meter) copyFuncIndices(r *bytes.Reader, w *bytes.Buffer) error {
	n, err := copyVarUint32(r, w)
	if err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		idx, err := readVarUint32(r)
		if err != nil {
			return err
		}
		w.Write(appendVarUint32(nil, m.mapFunc(idx)))
	}
	return nil
}

func (m *meter) shiftExports(content []byte) ([]byte, error) {
	exports, err := parseExports(content)
	if err != nil {
		return nil, err
	}
	var w bytes.Buffer
	w.Write(appendVarUint32(nil, uint32(len(exports))))
	for _, e := range exports {
		w.Write(appendVarUint32(nil, uint32(len(e.Name))))
		w.WriteString(e.Name)
		w.WriteByte(e.Kind)
		idx := e.Index
		if e.Kind == externFunc {
			idx = m.mapFunc(idx)
		}
		w.Write(appendVarUint32(nil, idx))
	}
	return w.Bytes(), nil
}

func (m *meter) shiftStart(content []byte) ([]byte, error) {
	r := bytes.NewReader(content)
	idx, err := readVarUint32(r)
	if err != nil {
		return nil, err
	}
	return appendVarUint32(nil, m.mapFunc(idx)), trailing(r)
}

func (m *meter) shiftGlobals(content []byte) ([]byte, error) {
	r := bytes.NewReader(content)
	var w bytes.Buffer
	n, err := copyVarUint32(r, &w)
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < n; i++ {
		// 值类型 + 可变标志
		if err := copyByte(r, &w); err != nil {
			return nil, err
		}
		if err := copyByte(r, &w); err != nil {
			return nil, err
		}
		if err := m.copyConstExpr(content, r, &w); err != nil {
			return nil, fmt.Errorf("global %d: %w", i, err)
		}
	}
	return w.Bytes(), trailing(r)
}

func (m *meter) shiftElements(content []byte) ([]byte, error) {
	r := bytes.NewReader(content)
	var w bytes.Buffer
	n, err := copyVarUint32(r, &w)
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < n; i++ {
		flags, err := copyVarUint32(r, &w)
		if err != nil {
			return nil, err
		}
		switch flags {
		case 0:
			err = m.copyConstExpr(content, r, &w)
			if err == nil {
				err = m.copyFuncIndices(r, &w)
			}
		case 1, 3:
			err = copyByte(r, &w)
			if err == nil {
				err = m.copyFuncIndices(r, &w)
			}
		case 2:
			if _, err = copyVarUint32(r, &w); err == nil {
				if err = m.copyConstExpr(content, r, &w); err == nil {
					if err = copyByte(r, &w); err == nil {
						err = m.copyFuncIndices(r, &w)
					}
				}
			}
		case 4:
			if err = m.copyConstExpr(content, r, &w); err == nil {
				err = m.copyExprs(content, r, &w)
			}
		case 5, 7:
			if err = copyByte(r, &w); err == nil {
				err = m.copyExprs(content, r, &w)
			}
		case 6:
			if _, err = copyVarUint32(r, &w); err == nil {
				if err = m.copyConstExpr(content, r, &w); err == nil {
					if err = copyByte(r, &w); err == nil {
						err = m.copyExprs(content, r, &w)
					}
				}
			}
		default:
			err = fmt.Errorf("unknown element segment flags %d", flags)
		}
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
	}
	return w.Bytes(), trailing(r)
}

func (m *meter) copyExprs(src []byte, r *bytes.Reader, w *bytes.Buffer) error {
	n, err := copyVarUint32(r, w)
	if err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		if err := m.copyConstExpr(src, r, w); err != nil {
			return err
		}
	}
	return nil
}

// customName 自定义段的名字
func customName(content []byte) string {
	name, err := readName(bytes.NewReader(content))
	if err != nil {
		return ""
	}
	return name
}

// ==================== 指令解码 ====================

// readInstr 从 src 的当前位置解码一条指令
//
// 支持 MVP、符号扩展、饱和截断、批量内存与引用类型指令；SIMD 等其它扩展报错。
func readInstr(src []byte, r *bytes.Reader) (instr, error) {
	start := len(src) - r.Len()
	op, err := r.ReadByte()
	if err != nil {
		return instr{}, err
	}
	in := instr{op: op}

	switch {
	case op == opUnreachable, op == opNop, op == opElse, op == opEnd, op == opReturn,
		op == opDrop, op == opSelect, op == opRefIsNull:
	case op >= 0x45 && op <= 0xc4:
		// 数值指令无立即数
	case op == opBlock, op == opLoop, op == opIf:
		err = skipBlockType(r)
	case op == opBr, op == opBrIf:
		_, err = readVarUint32(r)
	case op == opBrTable:
		var n uint32
		if n, err = readVarUint32(r); err == nil {
			err = skipVarUint32s(r, int(n)+1)
		}
	case op == opCall, op == opRefFunc:
		in.funcRef = true
		in.funcIdx, err = readVarUint32(r)
	case op == opCallIndirect:
		err = skipVarUint32s(r, 2)
	case op == opSelectT:
		var n uint32
		if n, err = readVarUint32(r); err == nil {
			err = skipBytes(r, int(n))
		}
	case op >= 0x20 && op <= 0x26:
		// local.* / global.* / table.get / table.set
		_, err = readVarUint32(r)
	case op >= 0x28 && op <= 0x3e:
		// memarg: align + offset
		err = skipVarUint32s(r, 2)
	case op == 0x3f, op == 0x40:
		err = skipBytes(r, 1)
	case op == opI32Const:
		err = skipVarInt(r, 5)
	case op == opI64Const:
		err = skipVarInt(r, 10)
	case op == opF32Const:
		err = skipBytes(r, 4)
	case op == opF64Const:
		err = skipBytes(r, 8)
	case op == opRefNull:
		err = skipBytes(r, 1)
	case op == opMiscPrefix:
		err = skipMiscImmediates(r)
	default:
		return instr{}, fmt.Errorf("%w 0x%02x at offset %d", errUnsupportedOpcode, op, start)
	}
	if err != nil {
		return instr{}, fmt.Errorf("opcode 0x%02x at offset %d: %w", op, start, err)
	}
	in.raw = src[start : len(src)-r.Len()]
	return in, nil
}

// skipMiscImmediates 0xfc 前缀指令
func skipMiscImmediates(r *bytes.Reader) error {
	sub, err := readVarUint32(r)
	if err != nil {
		return err
	}
	switch {
	case sub <= 7:
		// 饱和截断
		return nil
	case sub == 8:
		// memory.init dataidx 0x00
		if _, err := readVarUint32(r); err != nil {
			return err
		}
		return skipBytes(r, 1)
	case sub == 9, sub == 13, sub == 15, sub == 16, sub == 17:
		_, err := readVarUint32(r)
		return err
	case sub == 10:
		return skipBytes(r, 2)
	case sub == 11:
		return skipBytes(r, 1)
	case sub == 12, sub == 14:
		return skipVarUint32s(r, 2)
	}
	return fmt.Errorf("%w 0xfc %d", errUnsupportedOpcode, sub)
}

func skipBlockType(r *bytes.Reader) error {
	b, err := r.ReadByte()
	if err != nil {
		return err
	}
	switch b {
	case 0x40, 0x7f, 0x7e, 0x7d, 0x7c, 0x7b, 0x70, 0x6f:
		return nil
	}
	// 类型索引（s33）
	if err := r.UnreadByte(); err != nil {
		return err
	}
	return skipVarInt(r, 5)
}

func skipVarUint32s(r *bytes.Reader, n int) error {
	for i := 0; i < n; i++ {
		if _, err := readVarUint32(r); err != nil {
			return err
		}
	}
	return nil
}

func skipVarInt(r *bytes.Reader, maxBytes int) error {
	for i := 0; i < maxBytes; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return err
		}
		if b&0x80 == 0 {
			return nil
		}
	}
	return fmt.Errorf("varint longer than %d bytes", maxBytes)
}

func skipBytes(r *bytes.Reader, n int) error {
	if n < 0 || n > r.Len() {
		return io.ErrUnexpectedEOF
	}
	_, err := r.Seek(int64(n), io.SeekCurrent)
	return err
}

func appendVarInt32(dst []byte, v int32) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			return append(dst, b)
		}
		dst = append(dst, b|0x80)
	}
}
