package prepare

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weisyn/vmrunner/internal/core/vm/testutil"
	"github.com/weisyn/vmrunner/internal/core/vm/vmerr"
	"github.com/weisyn/vmrunner/pkg/types"
)

func requireCode(t *testing.T, err *vmerr.VMError, code vmerr.Code) {
	t.Helper()
	require.NotNil(t, err, "期望错误 %s", code)
	assert.Equal(t, vmerr.KindCompilation, err.Kind)
	assert.Equal(t, code, err.Code, "错误: %v", err)
}

func TestPrepare_ValidModuleReusesGasImport(t *testing.T) {
	code := testutil.ReturnValue("hi")
	out, info, err := New().PrepareWithInfo(code, types.TestVMConfig())
	require.Nil(t, err)
	assert.NotEqual(t, code, out, "函数体必须被插桩")

	again, verr := Inspect(out)
	require.Nil(t, verr)
	assert.Equal(t, info.Imports, again.Imports, "已导入 env.gas 时不再新增导入")
	assert.Equal(t, info.Exports, again.Exports)
	assert.Equal(t, uint32(16), again.MemoryMaxPages)

	assert.Equal(t, uint32(2), info.ImportedFuncs)
	assert.Equal(t, uint32(1), info.DefinedFuncs)
	assert.Equal(t, uint64(3), info.FunctionCount())
	assert.Equal(t, []string{"main"}, info.ExportedFunctions())
	assert.True(t, info.HasMemory)
	assert.Equal(t, uint32(1), info.MemoryMinPages)
	assert.Equal(t, uint32(16), info.MemoryMaxPages)
	assert.False(t, info.MemoryMaxPatched)
}

func TestPrepare_PatchesMissingMemoryMax(t *testing.T) {
	cfg := types.TestVMConfig()
	code := testutil.NoMemoryMax()

	out, info, err := New().PrepareWithInfo(code, cfg)
	require.Nil(t, err)
	assert.True(t, info.MemoryMaxPatched)
	assert.NotEqual(t, code, out)

	again, verr := Inspect(out)
	require.Nil(t, verr, "改写后的模块必须仍可解析")
	assert.Equal(t, cfg.Limits.MaxMemoryPages, again.MemoryMaxPages)
	assert.Equal(t, uint32(1), again.MemoryMinPages)
	assert.Equal(t, []string{"main"}, again.ExportedFunctions())

	// 再准备一次：内存上限已存在，gas 导入也已存在
	out2, info2, err := New().PrepareWithInfo(out, cfg)
	require.Nil(t, err)
	assert.False(t, info2.MemoryMaxPatched)
	final, verr := Inspect(out2)
	require.Nil(t, verr)
	assert.Equal(t, again.Imports, final.Imports)
}

func TestPrepare_Deterministic(t *testing.T) {
	cfg := types.TestVMConfig()
	code := testutil.NoMemoryMax()
	a, errA := New().Prepare(code, cfg)
	b, errB := New().Prepare(code, cfg)
	require.Nil(t, errA)
	require.Nil(t, errB)
	assert.Equal(t, a, b)
}

func TestPrepare_Rejections(t *testing.T) {
	cfg := types.TestVMConfig()

	tests := []struct {
		name string
		code []byte
		cfg  func(*types.VMConfig)
		want vmerr.Code
	}{
		{name: "非wasm", code: testutil.Garbage(), want: vmerr.CodeDeserialization},
		{name: "截断", code: testutil.ReturnValue("x")[:20], want: vmerr.CodeDeserialization},
		{name: "禁止的导入模块", code: testutil.ForbiddenImport(), want: vmerr.CodeForbiddenImport},
		{
			name: "导入内存",
			code: func() []byte {
				b := testutil.Concat(
					[]byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00},
					[]byte{0x02}, testutil.ULEB(uint64(len(memImport()))), memImport(),
				)
				return b
			}(),
			want: vmerr.CodeForbiddenImport,
		},
		{
			name: "合约过大",
			code: testutil.ReturnValue("x"),
			cfg:  func(c *types.VMConfig) { c.Limits.MaxContractSize = 10 },
			want: vmerr.CodeContractTooLarge,
		},
		{
			name: "函数过多",
			code: testutil.ManyFunctions(5),
			cfg:  func(c *types.VMConfig) { c.Limits.MaxFunctionsNumberPerContract = 4 },
			want: vmerr.CodeTooManyFunctions,
		},
		{
			name: "初始内存超限",
			code: testutil.NewModule().Memory(32, -1).Build(),
			want: vmerr.CodeMemory,
		},
		{
			name: "内存上限超限",
			code: testutil.NewModule().Memory(1, 64).Build(),
			want: vmerr.CodeMemory,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := *cfg
			if tt.cfg != nil {
				tt.cfg(&c)
			}
			out, err := New().Prepare(tt.code, &c)
			assert.Nil(t, out)
			requireCode(t, err, tt.want)
		})
	}
}

// memImport 导入段内容：env.memory (memory 1)
func memImport() []byte {
	return testutil.Concat(testutil.ULEB(1), testutil.Name("env"), testutil.Name("memory"), []byte{0x02, 0x00, 0x01})
}

func TestPrepare_UnknownEnvFunctionIsLeftToLinking(t *testing.T) {
	// env 中不存在的函数在链接阶段报告，准备阶段放行
	_, err := New().Prepare(testutil.UnknownHostFunction(), types.TestVMConfig())
	assert.Nil(t, err)
}

func TestPrepare_ModuleWithoutMemory(t *testing.T) {
	b := testutil.NewModule()
	b.ExportFunc("main", testutil.SigVoid, nil)
	code := b.Build()

	out, info, err := New().PrepareWithInfo(code, types.TestVMConfig())
	require.Nil(t, err)
	assert.False(t, info.HasMemory)

	// 原本没有导入：新增 env.gas 为函数 0，导出的 main 移到 1
	got, verr := Inspect(out)
	require.Nil(t, verr)
	require.Len(t, got.Imports, 1)
	assert.Equal(t, Import{Module: HostModule, Name: "gas", Kind: externFunc, TypeIndex: 1}, got.Imports[0])
	require.Len(t, got.Exports, 1)
	assert.Equal(t, uint32(1), got.Exports[0].Index)
}

// ==================== gas 计量插桩 ====================

func TestPrepare_AddsGasImportAndShiftsIndices(t *testing.T) {
	b := testutil.NewModule()
	ret := b.Env("value_return", testutil.SigI64x2)
	b.Memory(1, 16)
	helper := b.Func(testutil.SigVoid, nil)
	mainIdx := b.ExportFunc("main", testutil.SigVoid, nil, testutil.Call(helper))
	b.Export("helper", helper)
	code := b.Build()
	require.Equal(t, uint32(0), ret)
	require.Equal(t, uint32(1), helper)
	require.Equal(t, uint32(2), mainIdx)

	out, err := New().Prepare(code, types.TestVMConfig())
	require.Nil(t, err)

	got, verr := Inspect(out)
	require.Nil(t, verr)
	assert.Equal(t, uint32(2), got.ImportedFuncs)
	assert.Equal(t, uint32(2), got.DefinedFuncs)
	assert.Equal(t, "gas", got.Imports[1].Name, "新导入追加在已有导入之后")

	index := map[string]uint32{}
	for _, e := range got.Exports {
		index[e.Name] = e.Index
	}
	assert.Equal(t, map[string]uint32{"main": 3, "helper": 2}, index)

	// main 的函数体只有一段：i32.const 2; call gas(1); call helper(2); end
	assert.Contains(t, string(out), string([]byte{0x41, 0x02, 0x10, 0x01, 0x10, 0x02, 0x0b}))
}

func TestMeterBody_Segments(t *testing.T) {
	m := &meter{gasIdx: 0, shiftFrom: noShift}
	// 无局部变量；loop { br 0 } end
	body := []byte{0x00, 0x03, 0x40, 0x0c, 0x00, 0x0b, 0x0b}
	out, err := m.meterBody(body)
	require.NoError(t, err)
	assert.Equal(t, []byte{
		0x00,
		0x41, 0x01, 0x10, 0x00, 0x03, 0x40,
		0x41, 0x01, 0x10, 0x00, 0x0c, 0x00,
		0x41, 0x01, 0x10, 0x00, 0x0b,
		0x41, 0x01, 0x10, 0x00, 0x0b,
	}, out)

	// 平移：call 0 保持，call 1 变成 call 2
	m = &meter{gasIdx: 1, shiftFrom: 1}
	out, err = m.meterBody([]byte{0x00, 0x10, 0x00, 0x10, 0x01, 0x0b})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x41, 0x03, 0x10, 0x01, 0x10, 0x00, 0x10, 0x02, 0x0b}, out)
}

func TestMeterBody_Malformed(t *testing.T) {
	m := &meter{gasIdx: 0, shiftFrom: noShift}

	_, err := m.meterBody([]byte{0x00, 0xfd, 0x0c, 0x0b})
	assert.ErrorIs(t, err, errUnsupportedOpcode, "SIMD 指令不支持")

	_, err = m.meterBody([]byte{0x00, 0x01})
	assert.Error(t, err, "缺少 end")

	_, err = m.meterBody([]byte{0x00, 0x0b, 0x01})
	assert.Error(t, err, "end 之后还有字节")
}

func TestPrepare_MeteringRejections(t *testing.T) {
	cfg := types.TestVMConfig()

	// env.gas 的签名不对
	b := testutil.NewModule()
	b.Env("gas", testutil.SigVoid)
	b.ExportFunc("main", testutil.SigVoid, nil)
	out, err := New().Prepare(b.Build(), cfg)
	assert.Nil(t, out)
	requireCode(t, err, vmerr.CodeForbiddenImport)

	// 无法解码的操作码
	b = testutil.NewModule()
	b.ExportFunc("main", testutil.SigVoid, nil, []byte{0xfd, 0x0c})
	out, err = New().Prepare(b.Build(), cfg)
	assert.Nil(t, out)
	requireCode(t, err, vmerr.CodeDeserialization)
}

func TestPrepare_NoFunctionsNotMetered(t *testing.T) {
	code := testutil.NewModule().Memory(1, 16).Build()
	out, info, err := New().PrepareWithInfo(code, types.TestVMConfig())
	require.Nil(t, err)
	assert.Equal(t, code, out)
	assert.Zero(t, info.ImportedFuncs)
}

func TestReadSections_OrderAndBounds(t *testing.T) {
	header := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

	// 导出段出现在函数段之前
	outOfOrder := testutil.Concat(header, []byte{0x07, 0x01, 0x00}, []byte{0x03, 0x01, 0x00})
	_, err := readSections(outOfOrder)
	assert.ErrorIs(t, err, errMalformed)

	// 段长度越界
	overrun := testutil.Concat(header, []byte{0x01, 0x10, 0x00})
	_, err = readSections(overrun)
	assert.ErrorIs(t, err, errMalformed)

	// 自定义段可以出现在任意位置
	custom := testutil.Concat(header, []byte{0x00, 0x02, 0x01, 'a'}, []byte{0x01, 0x01, 0x00}, []byte{0x00, 0x02, 0x01, 'b'})
	sections, err := readSections(custom)
	require.NoError(t, err)
	assert.Len(t, sections, 3)

	// 版本号错误
	_, err = readSections([]byte{0x00, 0x61, 0x73, 0x6d, 0x02, 0x00, 0x00, 0x00})
	assert.ErrorIs(t, err, errMalformed)
}

func TestVarUint32(t *testing.T) {
	for _, v := range []uint32{0, 1, 127, 128, 16384, 1<<32 - 1} {
		enc := appendVarUint32(nil, v)
		assert.Equal(t, testutil.ULEB(uint64(v)), enc)
		got, err := readVarUint32(bytesReader(enc))
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}

	_, err := readVarUint32(bytesReader([]byte{0xff, 0xff, 0xff, 0xff, 0x7f}))
	assert.Error(t, err, "超过32位应报错")
}
