// Package prepare 对合约字节码做静态校验与资源插桩
//
// 🎯 **准备阶段**
// 编译之前执行，结果是确定性的：同一份代码在同一配置下总是得到相同的产物或相同的错误，
// 因此失败会作为 CompilationError 写入缓存。
//
// 📋 **检查项**
// - 体积不超过 MaxContractSize
// - 只允许从 env 模块导入函数，不允许导入内存、表、全局变量
// - 函数总数（含导入）不超过 MaxFunctionsNumberPerContract
// - 至多一个线性内存，初始与上限页数不超过 MaxMemoryPages
//
// 🔧 **插桩**
// - 未声明内存上限时补上 MaxMemoryPages
// - 每个直线段开头注入 env.gas 计量（见 meter.go），合约无法绕开gas预算
package prepare

import (
	"bytes"
	"math"
	"sort"

	"github.com/weisyn/vmrunner/internal/core/vm/vmerr"
	"github.com/weisyn/vmrunner/pkg/interfaces/vm"
	"github.com/weisyn/vmrunner/pkg/types"
)

// HostModule 唯一允许导入的模块名
const HostModule = "env"

// FuncSig 函数签名（值类型字节）
type FuncSig struct {
	Params  []byte
	Results []byte
}

// Import 导入项
type Import struct {
	Module    string
	Name      string
	Kind      byte
	TypeIndex uint32
}

// Export 导出项
type Export struct {
	Name  string
	Kind  byte
	Index uint32
}

// ModuleInfo 准备阶段得到的模块概要
type ModuleInfo struct {
	Imports          []Import
	Exports          []Export
	ImportedFuncs    uint32
	DefinedFuncs     uint32
	HasMemory        bool
	MemoryMinPages   uint32
	MemoryMaxPages   uint32
	MemoryMaxPatched bool
}

// FunctionCount 函数总数（含导入）
func (m *ModuleInfo) FunctionCount() uint64 {
	return uint64(m.ImportedFuncs) + uint64(m.DefinedFuncs)
}

// ExportedFunctions 导出的函数名（排序）
func (m *ModuleInfo) ExportedFunctions() []string {
	var out []string
	for _, e := range m.Exports {
		if e.Kind == externFunc {
			out = append(out, e.Name)
		}
	}
	sort.Strings(out)
	return out
}

// Preparer 默认的校验与插桩实现
type Preparer struct{}

var _ vm.ContractPreparer = (*Preparer)(nil)

// New 创建准备器
func New() *Preparer {
	return &Preparer{}
}

// Prepare 校验并插桩，返回可以交给引擎编译的字节码
func (p *Preparer) Prepare(code []byte, cfg *types.VMConfig) ([]byte, *vmerr.VMError) {
	out, _, err := p.PrepareWithInfo(code, cfg)
	return out, err
}

// PrepareWithInfo 同 Prepare，额外返回模块概要
func (p *Preparer) PrepareWithInfo(code []byte, cfg *types.VMConfig) ([]byte, *ModuleInfo, *vmerr.VMError) {
	lim := cfg.Limits
	if uint64(len(code)) > lim.MaxContractSize {
		return nil, nil, vmerr.Compilation(vmerr.CodeContractTooLarge, "contract size %d exceeds limit %d", len(code), lim.MaxContractSize)
	}

	mod, verr := inspect(code)
	if verr != nil {
		return nil, nil, verr
	}
	info := mod.info

	for _, imp := range info.Imports {
		if imp.Module != HostModule {
			return nil, nil, vmerr.Compilation(vmerr.CodeForbiddenImport, "import %s.%s: only %q imports are allowed", imp.Module, imp.Name, HostModule)
		}
		if imp.Kind != externFunc {
			return nil, nil, vmerr.Compilation(vmerr.CodeForbiddenImport, "import %s.%s: only function imports are allowed", imp.Module, imp.Name)
		}
	}

	if info.FunctionCount() > lim.MaxFunctionsNumberPerContract {
		return nil, nil, vmerr.Compilation(vmerr.CodeTooManyFunctions, "function count %d exceeds limit %d", info.FunctionCount(), lim.MaxFunctionsNumberPerContract)
	}

	if len(mod.mems) > 1 {
		return nil, nil, vmerr.Compilation(vmerr.CodeMemory, "at most one memory is allowed, got %d", len(mod.mems))
	}

	var memContent []byte
	if len(mod.mems) == 1 {
		mem := mod.mems[0]
		if mem.min > lim.MaxMemoryPages {
			return nil, nil, vmerr.Compilation(vmerr.CodeMemory, "initial memory %d pages exceeds limit %d", mem.min, lim.MaxMemoryPages)
		}
		if mem.hasMax {
			if mem.max > lim.MaxMemoryPages {
				return nil, nil, vmerr.Compilation(vmerr.CodeMemory, "maximum memory %d pages exceeds limit %d", mem.max, lim.MaxMemoryPages)
			}
			if mem.max < mem.min {
				return nil, nil, vmerr.Compilation(vmerr.CodeMemory, "maximum memory %d pages is below initial %d", mem.max, mem.min)
			}
			info.MemoryMaxPages = mem.max
		} else {
			// 补上内存上限
			mem.max = lim.MaxMemoryPages
			mem.hasMax = true
			info.MemoryMaxPages = mem.max
			info.MemoryMaxPatched = true
			memContent = encodeMemories([]limits{mem})
		}
	}

	out, verr := rewrite(code, mod, memContent)
	if verr != nil {
		return nil, nil, verr
	}
	return out, info, nil
}

// Inspect 只解析模块概要，不做限制检查（工具使用）
func Inspect(code []byte) (*ModuleInfo, *vmerr.VMError) {
	mod, err := inspect(code)
	if err != nil {
		return nil, err
	}
	return mod.info, nil
}

// parsedModule 分段解析结果
type parsedModule struct {
	sections []section
	info     *ModuleInfo
	sigs     []FuncSig
	mems     []limits
}

func inspect(code []byte) (*parsedModule, *vmerr.VMError) {
	sections, err := readSections(code)
	if err != nil {
		return nil, vmerr.Compilation(vmerr.CodeDeserialization, "%v", err)
	}

	mod := &parsedModule{sections: sections, info: &ModuleInfo{}}
	info := mod.info
	codeCount := uint32(0)
	for _, s := range sections {
		var perr error
		switch s.id {
		case sectionType:
			mod.sigs, perr = parseTypes(s.content)
		case sectionImport:
			info.Imports, perr = parseImports(s.content)
		case sectionFunction:
			info.DefinedFuncs, perr = parseFunctions(s.content)
		case sectionMemory:
			mod.mems, perr = parseMemories(s.content)
		case sectionExport:
			info.Exports, perr = parseExports(s.content)
		case sectionCode:
			codeCount, perr = parseCodeCount(s.content)
		}
		if perr != nil {
			return nil, vmerr.Compilation(vmerr.CodeDeserialization, "section %d: %v", s.id, perr)
		}
	}

	for _, imp := range info.Imports {
		switch imp.Kind {
		case externFunc:
			if int(imp.TypeIndex) >= len(mod.sigs) {
				return nil, vmerr.Compilation(vmerr.CodeDeserialization, "import %s.%s: type index %d out of range", imp.Module, imp.Name, imp.TypeIndex)
			}
			info.ImportedFuncs++
		case externMemory:
			info.HasMemory = true
		}
	}
	if codeCount != info.DefinedFuncs {
		return nil, vmerr.Compilation(vmerr.CodeDeserialization, "function and code section counts differ (%d != %d)", info.DefinedFuncs, codeCount)
	}
	if len(mod.mems) > 0 {
		info.HasMemory = true
		info.MemoryMinPages = mod.mems[0].min
		if mod.mems[0].hasMax {
			info.MemoryMaxPages = mod.mems[0].max
		}
	}
	return mod, nil
}

// gasImport 查找已有的 env.gas 导入，返回其函数索引
func gasImport(mod *parsedModule) (uint32, bool, *vmerr.VMError) {
	funcIdx := uint32(0)
	for _, imp := range mod.info.Imports {
		if imp.Kind != externFunc {
			continue
		}
		if imp.Module == HostModule && imp.Name == gasFunc {
			if !sameSig(mod.sigs[imp.TypeIndex], gasSig) {
				return 0, false, vmerr.Compilation(vmerr.CodeForbiddenImport, "import %s.%s must have signature (i32) -> ()", HostModule, gasFunc)
			}
			return funcIdx, true, nil
		}
		funcIdx++
	}
	return 0, false, nil
}

// rewrite 注入gas计量、按需补内存上限，重新拼装模块
//
// 没有定义函数的模块无需计量；此时只替换内存段。
func rewrite(code []byte, mod *parsedModule, memContent []byte) ([]byte, *vmerr.VMError) {
	if mod.info.DefinedFuncs == 0 {
		if memContent == nil {
			return append([]byte(nil), code...), nil
		}
		return replaceSection(code, mod.sections, sectionMemory, memContent), nil
	}

	gasIdx, found, verr := gasImport(mod)
	if verr != nil {
		return nil, verr
	}
	m := &meter{gasIdx: gasIdx, shiftFrom: noShift}

	// 需要新增导入时：复用已有的 (i32)->() 类型，没有则追加
	gasType := uint32(len(mod.sigs))
	if !found {
		m.gasIdx = mod.info.ImportedFuncs
		m.shiftFrom = mod.info.ImportedFuncs
		for i, sig := range mod.sigs {
			if sameSig(sig, gasSig) {
				gasType = uint32(i)
				break
			}
		}
	}
	addType := !found && gasType == uint32(len(mod.sigs))

	var out bytes.Buffer
	out.Grow(len(code) + len(code)/4 + 32)
	out.Write(code[:8])

	wroteType, wroteImport := found, found
	emitMissing := func(rank int) {
		if !wroteType && rank > sectionRank[sectionType] {
			writeSectionTo(&out, sectionType, appendEntries(nil, 0, encodeGasType()))
			wroteType = true
		}
		if !wroteImport && rank > sectionRank[sectionImport] {
			writeSectionTo(&out, sectionImport, appendEntries(nil, 0, encodeGasImport(gasType)))
			wroteImport = true
		}
	}

	for _, s := range mod.sections {
		if s.id != sectionCustom {
			emitMissing(sectionRank[s.id])
		}

		content := s.content
		var err error
		switch s.id {
		case sectionCustom:
			// 函数索引平移后名字段不再对应
			if m.shiftFrom != noShift && customName(s.content) == "name" {
				continue
			}
		case sectionType:
			if addType {
				content, err = appendEntry(s.content, encodeGasType())
			}
			wroteType = true
		case sectionImport:
			if !found {
				content, err = appendEntry(s.content, encodeGasImport(gasType))
			}
			wroteImport = true
		case sectionMemory:
			if memContent != nil {
				content = memContent
			}
		case sectionGlobal:
			if m.shiftFrom != noShift {
				content, err = m.shiftGlobals(s.content)
			}
		case sectionExport:
			if m.shiftFrom != noShift {
				content, err = m.shiftExports(s.content)
			}
		case sectionStart:
			if m.shiftFrom != noShift {
				content, err = m.shiftStart(s.content)
			}
		case sectionElement:
			if m.shiftFrom != noShift {
				content, err = m.shiftElements(s.content)
			}
		case sectionCode:
			content, err = m.meterCode(s.content)
		}
		if err != nil {
			return nil, vmerr.Compilation(vmerr.CodeDeserialization, "section %d: %v", s.id, err)
		}
		writeSectionTo(&out, s.id, content)
	}
	emitMissing(math.MaxInt)
	return out.Bytes(), nil
}

func encodeGasType() []byte {
	return []byte{funcForm, 0x01, valI32, 0x00}
}

func encodeGasImport(typeIdx uint32) []byte {
	var b []byte
	b = append(appendVarUint32(b, uint32(len(HostModule))), HostModule...)
	b = append(appendVarUint32(b, uint32(len(gasFunc))), gasFunc...)
	b = append(b, externFunc)
	return appendVarUint32(b, typeIdx)
}

// appendEntry 在向量型段内容末尾追加一项
func appendEntry(content []byte, entry []byte) ([]byte, error) {
	r := bytes.NewReader(content)
	n, err := readVarUint32(r)
	if err != nil {
		return nil, err
	}
	return appendEntries(content[len(content)-r.Len():], n, entry), nil
}

// appendEntries 以 n+1 为计数重新编码向量：rest 为原有各项
func appendEntries(rest []byte, n uint32, entry []byte) []byte {
	out := appendVarUint32(make([]byte, 0, len(rest)+len(entry)+5), n+1)
	out = append(out, rest...)
	return append(out, entry...)
}

func writeSectionTo(buf *bytes.Buffer, id byte, content []byte) {
	buf.WriteByte(id)
	buf.Write(appendVarUint32(nil, uint32(len(content))))
	buf.Write(content)
}

// replaceSection 用新内容替换指定段，其余字节保持不变
func replaceSection(code []byte, sections []section, id byte, content []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(len(code) + 8)
	prev := 0
	for _, s := range sections {
		if s.id != id {
			continue
		}
		buf.Write(code[prev:s.start])
		buf.WriteByte(id)
		buf.Write(appendVarUint32(nil, uint32(len(content))))
		buf.Write(content)
		prev = s.end
	}
	buf.Write(code[prev:])
	return buf.Bytes()
}
