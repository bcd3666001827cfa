package kind

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weisyn/vmrunner/pkg/types"
)

// ============================================================================
// 协议版本映射测试
// ============================================================================

func TestForProtocolVersion_Table(t *testing.T) {
	cases := []struct {
		version types.ProtocolVersion
		want    EngineKind
	}{
		{0, Interpreter},
		{MinSupportedProtocolVersion, Interpreter},
		{CompilerProtocolVersion - 1, Interpreter},
		{CompilerProtocolVersion, Compiler},
		{EcrecoverProtocolVersion, Compiler},
		{CurrentProtocolVersion, Compiler},
		{math.MaxUint32, Compiler},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ForProtocolVersion(tc.version), "版本 %d 映射错误", tc.version)
	}
}

func TestForProtocolVersion_TotalOverSupportedRange(t *testing.T) {
	for v := MinSupportedProtocolVersion; v <= CurrentProtocolVersion; v++ {
		k := ForProtocolVersion(v)
		assert.True(t, k.Valid(), "版本 %d 没有映射到有效引擎", v)
		assert.Equal(t, k, ForProtocolVersion(v), "同一版本两次解析结果应一致")
	}
}

func TestIsSupported(t *testing.T) {
	assert.False(t, IsSupported(MinSupportedProtocolVersion-1))
	assert.True(t, IsSupported(MinSupportedProtocolVersion))
	assert.True(t, IsSupported(CurrentProtocolVersion))
	assert.False(t, IsSupported(CurrentProtocolVersion+1))
}

func TestRequiredKinds(t *testing.T) {
	assert.Equal(t, []EngineKind{Interpreter}, RequiredKinds(30, 40))
	assert.Equal(t, []EngineKind{Compiler}, RequiredKinds(45, 52))
	assert.Equal(t, []EngineKind{Interpreter, Compiler}, RequiredKinds(29, 52))
	// 反向区间按正向处理
	assert.Equal(t, []EngineKind{Interpreter, Compiler}, RequiredKinds(52, 29))
}

// ============================================================================
// 种类名称与标签
// ============================================================================

func TestParseEngineKind(t *testing.T) {
	for _, k := range All() {
		parsed, err := ParseEngineKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}

	parsed, err := ParseEngineKind(" Compiler ")
	require.NoError(t, err)
	assert.Equal(t, Compiler, parsed)

	_, err = ParseEngineKind("jit")
	assert.Error(t, err)
}

func TestTagsAreStable(t *testing.T) {
	assert.Equal(t, byte(1), Interpreter.Tag())
	assert.Equal(t, byte(2), Compiler.Tag())
	assert.False(t, EngineKind(0).Valid())
	assert.Equal(t, "unknown(9)", EngineKind(9).String())
}
