package prepare

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// ============================================================================
//                          二进制模块的分段读取
// ============================================================================
//
// 只解析准备阶段需要的段：类型、导入、函数、内存、导出、代码。
// 指令级校验交给引擎的编译器完成。

var wasmMagic = []byte{0x00, 0x61, 0x73, 0x6d}
var wasmVersion = []byte{0x01, 0x00, 0x00, 0x00}

// 段ID
const (
	sectionCustom    byte = 0
	sectionType      byte = 1
	sectionImport    byte = 2
	sectionFunction  byte = 3
	sectionTable     byte = 4
	sectionMemory    byte = 5
	sectionGlobal    byte = 6
	sectionExport    byte = 7
	sectionStart     byte = 8
	sectionElement   byte = 9
	sectionCode      byte = 10
	sectionData      byte = 11
	sectionDataCount byte = 12
)

// 导入/导出的外部类型
const (
	externFunc   byte = 0x00
	externTable  byte = 0x01
	externMemory byte = 0x02
	externGlobal byte = 0x03
)

// sectionRank 非自定义段的合法顺序（datacount 位于 element 与 code 之间）
var sectionRank = map[byte]int{
	sectionType:      1,
	sectionImport:    2,
	sectionFunction:  3,
	sectionTable:     4,
	sectionMemory:    5,
	sectionGlobal:    6,
	sectionExport:    7,
	sectionStart:     8,
	sectionElement:   9,
	sectionDataCount: 10,
	sectionCode:      11,
	sectionData:      12,
}

var errMalformed = errors.New("malformed module")

// section 原始段
type section struct {
	id      byte
	start   int // 段头起始偏移（含 id）
	end     int // 段内容结束偏移
	content []byte
}

// readSections 校验头部并切分所有段
func readSections(code []byte) ([]section, error) {
	if len(code) < 8 {
		return nil, fmt.Errorf("%w: module too short (%d bytes)", errMalformed, len(code))
	}
	if !bytes.Equal(code[:4], wasmMagic) {
		return nil, fmt.Errorf("%w: bad magic number", errMalformed)
	}
	if !bytes.Equal(code[4:8], wasmVersion) {
		return nil, fmt.Errorf("%w: unsupported binary version %x", errMalformed, code[4:8])
	}

	r := bytes.NewReader(code[8:])
	var out []section
	lastRank := 0
	for r.Len() > 0 {
		start := len(code) - r.Len()
		id, _ := r.ReadByte()
		size, err := readVarUint32(r)
		if err != nil {
			return nil, fmt.Errorf("%w: section %d size: %v", errMalformed, id, err)
		}
		if uint64(size) > uint64(r.Len()) {
			return nil, fmt.Errorf("%w: section %d overruns module (size=%d, remaining=%d)", errMalformed, id, size, r.Len())
		}
		contentStart := len(code) - r.Len()
		content := code[contentStart : contentStart+int(size)]
		if _, err := r.Seek(int64(size), io.SeekCurrent); err != nil {
			return nil, fmt.Errorf("%w: %v", errMalformed, err)
		}

		if id != sectionCustom {
			rank, ok := sectionRank[id]
			if !ok {
				return nil, fmt.Errorf("%w: unknown section id %d", errMalformed, id)
			}
			if rank <= lastRank {
				return nil, fmt.Errorf("%w: section %d out of order or duplicated", errMalformed, id)
			}
			lastRank = rank
		}
		out = append(out, section{id: id, start: start, end: contentStart + int(size), content: content})
	}
	return out, nil
}

// ==================== 段内容解析 ====================

func parseTypes(content []byte) ([]FuncSig, error) {
	r := bytes.NewReader(content)
	n, err := readVarUint32(r)
	if err != nil {
		return nil, err
	}
	sigs := make([]FuncSig, 0, n)
	for i := uint32(0); i < n; i++ {
		form, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		if form != 0x60 {
			return nil, fmt.Errorf("type %d: unexpected form 0x%x", i, form)
		}
		params, err := readValTypes(r)
		if err != nil {
			return nil, err
		}
		results, err := readValTypes(r)
		if err != nil {
			return nil, err
		}
		sigs = append(sigs, FuncSig{Params: params, Results: results})
	}
	return sigs, trailing(r)
}

func readValTypes(r *bytes.Reader) ([]byte, error) {
	n, err := readVarUint32(r)
	if err != nil {
		return nil, err
	}
	if uint64(n) > uint64(r.Len()) {
		return nil, io.ErrUnexpectedEOF
	}
	out := make([]byte, n)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, err
	}
	return out, nil
}

func parseImports(content []byte) ([]Import, error) {
	r := bytes.NewReader(content)
	n, err := readVarUint32(r)
	if err != nil {
		return nil, err
	}
	imports := make([]Import, 0, n)
	for i := uint32(0); i < n; i++ {
		module, err := readName(r)
		if err != nil {
			return nil, err
		}
		name, err := readName(r)
		if err != nil {
			return nil, err
		}
		kind, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		imp := Import{Module: module, Name: name, Kind: kind}
		switch kind {
		case externFunc:
			if imp.TypeIndex, err = readVarUint32(r); err != nil {
				return nil, err
			}
		case externTable:
			if _, err := r.ReadByte(); err != nil {
				return nil, err
			}
			if _, err := readLimits(r); err != nil {
				return nil, err
			}
		case externMemory:
			if _, err := readLimits(r); err != nil {
				return nil, err
			}
		case externGlobal:
			if _, err := r.ReadByte(); err != nil {
				return nil, err
			}
			if _, err := r.ReadByte(); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("import %d: unknown kind 0x%x", i, kind)
		}
		imports = append(imports, imp)
	}
	return imports, trailing(r)
}

func parseFunctions(content []byte) (uint32, error) {
	r := bytes.NewReader(content)
	n, err := readVarUint32(r)
	if err != nil {
		return 0, err
	}
	for i := uint32(0); i < n; i++ {
		if _, err := readVarUint32(r); err != nil {
			return 0, err
		}
	}
	return n, trailing(r)
}

// limits 内存/表的页数限制
type limits struct {
	min    uint32
	max    uint32
	hasMax bool
}

func readLimits(r *bytes.Reader) (limits, error) {
	flag, err := r.ReadByte()
	if err != nil {
		return limits{}, err
	}
	var l limits
	if l.min, err = readVarUint32(r); err != nil {
		return limits{}, err
	}
	switch flag {
	case 0x00:
	case 0x01:
		l.hasMax = true
		if l.max, err = readVarUint32(r); err != nil {
			return limits{}, err
		}
	default:
		// 0x02/0x03 为共享内存，不支持
		return limits{}, fmt.Errorf("unsupported limits flag 0x%x", flag)
	}
	return l, nil
}

func parseMemories(content []byte) ([]limits, error) {
	r := bytes.NewReader(content)
	n, err := readVarUint32(r)
	if err != nil {
		return nil, err
	}
	out := make([]limits, 0, n)
	for i := uint32(0); i < n; i++ {
		l, err := readLimits(r)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, trailing(r)
}

func parseExports(content []byte) ([]Export, error) {
	r := bytes.NewReader(content)
	n, err := readVarUint32(r)
	if err != nil {
		return nil, err
	}
	out := make([]Export, 0, n)
	for i := uint32(0); i < n; i++ {
		name, err := readName(r)
		if err != nil {
			return nil, err
		}
		kind, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		idx, err := readVarUint32(r)
		if err != nil {
			return nil, err
		}
		out = append(out, Export{Name: name, Kind: kind, Index: idx})
	}
	return out, trailing(r)
}

func parseCodeCount(content []byte) (uint32, error) {
	return readVarUint32(bytes.NewReader(content))
}

// encodeMemories 重新编码内存段内容
func encodeMemories(mems []limits) []byte {
	var buf bytes.Buffer
	buf.Write(appendVarUint32(nil, uint32(len(mems))))
	for _, m := range mems {
		if m.hasMax {
			buf.WriteByte(0x01)
			buf.Write(appendVarUint32(nil, m.min))
			buf.Write(appendVarUint32(nil, m.max))
		} else {
			buf.WriteByte(0x00)
			buf.Write(appendVarUint32(nil, m.min))
		}
	}
	return buf.Bytes()
}

// ==================== 基础编码 ====================

func readName(r *bytes.Reader) (string, error) {
	n, err := readVarUint32(r)
	if err != nil {
		return "", err
	}
	if uint64(n) > uint64(r.Len()) {
		return "", io.ErrUnexpectedEOF
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func readVarUint32(r *bytes.Reader) (uint32, error) {
	var result uint32
	var shift uint

	for {
		if shift >= 35 {
			return 0, fmt.Errorf("varuint32 过长")
		}

		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}

		if shift == 28 && b&0x70 != 0 {
			return 0, fmt.Errorf("varuint32 溢出")
		}
		result |= uint32(b&0x7F) << shift

		if (b & 0x80) == 0 {
			break
		}

		shift += 7
	}

	return result, nil
}

func appendVarUint32(dst []byte, v uint32) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			dst = append(dst, b|0x80)
			continue
		}
		return append(dst, b)
	}
}

func trailing(r *bytes.Reader) error {
	if r.Len() != 0 {
		return fmt.Errorf("%d trailing bytes in section", r.Len())
	}
	return nil
}
