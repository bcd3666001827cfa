package cache

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weisyn/vmrunner/internal/core/vm/kind"
	"github.com/weisyn/vmrunner/internal/core/vm/vmerr"
)

func TestArtifactRecord_Roundtrip(t *testing.T) {
	prepared := bytes.Repeat([]byte{0x00, 0x61, 0x73, 0x6d}, 1024)
	raw := EncodeArtifact(kind.Compiler, 3, prepared)

	assert.Less(t, len(raw), len(prepared), "重复内容经 snappy 压缩后应变小")

	rec, err := Decode(kind.Compiler, 3, raw)
	require.NoError(t, err)
	assert.Equal(t, RecordArtifact, rec.Kind)
	assert.Equal(t, prepared, rec.Prepared)
	assert.Nil(t, rec.CompileErr)
}

func TestCompileErrorRecord_Roundtrip(t *testing.T) {
	ce := vmerr.Compilation(vmerr.CodeForbiddenImport, "import env.%s is not allowed", "abort")
	raw, err := EncodeCompileError(kind.Interpreter, 1, ce)
	require.NoError(t, err)

	rec, err := Decode(kind.Interpreter, 1, raw)
	require.NoError(t, err)
	assert.Equal(t, RecordCompileError, rec.Kind)
	assert.True(t, vmerr.Equal(ce, rec.CompileErr))
}

func TestEncodeCompileError_OnlyCompilationKind(t *testing.T) {
	_, err := EncodeCompileError(kind.Interpreter, 1, vmerr.Trap(vmerr.CodeUnreachable, "unreachable"))
	assert.Error(t, err)

	_, err = EncodeCompileError(kind.Interpreter, 1, nil)
	assert.Error(t, err)
}

func TestDecode_StaleHeader(t *testing.T) {
	raw := EncodeArtifact(kind.Interpreter, 1, []byte("code"))

	_, err := Decode(kind.Compiler, 1, raw)
	assert.ErrorIs(t, err, ErrStaleRecord, "引擎标签不同应视为过期")

	_, err = Decode(kind.Interpreter, 2, raw)
	assert.ErrorIs(t, err, ErrStaleRecord, "格式版本不同应视为过期")

	bumped := append([]byte(nil), raw...)
	bumped[4] = recordVersion + 1
	_, err = Decode(kind.Interpreter, 1, bumped)
	assert.ErrorIs(t, err, ErrStaleRecord, "记录版本不同应视为过期")
}

func TestDecode_Corrupt(t *testing.T) {
	cases := map[string][]byte{
		"空记录":  nil,
		"头部过短": []byte("WVM"),
		"魔数错误": append([]byte("XXXX"), make([]byte, headerSize)...),
	}

	valid := EncodeArtifact(kind.Interpreter, 1, []byte("code"))
	badKind := append([]byte(nil), valid...)
	badKind[10] = 9
	cases["未知记录类型"] = badKind

	badPayload := append(append([]byte(nil), valid[:headerSize]...), 0xff, 0xff, 0xff, 0xff, 0xff)
	cases["压缩数据损坏"] = badPayload

	ce, err := EncodeCompileError(kind.Interpreter, 1, vmerr.Compilation(vmerr.CodeMemory, "bad memory"))
	require.NoError(t, err)
	cases["JSON截断"] = ce[:len(ce)-3]

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(kind.Interpreter, 1, raw)
			assert.ErrorIs(t, err, ErrCorruptRecord)
		})
	}
}
