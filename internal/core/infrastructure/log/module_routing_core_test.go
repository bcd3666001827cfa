package log

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newRoutingCore() (*moduleRoutingCore, *bytes.Buffer, *bytes.Buffer) {
	enc := zapcore.NewJSONEncoder(zapcore.EncoderConfig{MessageKey: "message", LevelKey: "level"})
	var sysBuf, execBuf bytes.Buffer
	return &moduleRoutingCore{
		systemCore: zapcore.NewCore(enc, zapcore.AddSync(&sysBuf), zapcore.DebugLevel),
		execCore:   zapcore.NewCore(enc, zapcore.AddSync(&execBuf), zapcore.DebugLevel),
	}, &sysBuf, &execBuf
}

func TestModuleRoutingCore_RoutesByCallField(t *testing.T) {
	core, sysBuf, execBuf := newRoutingCore()
	entry := zapcore.Entry{Message: "hello", Level: zapcore.InfoLevel}

	require.NoError(t, core.Write(entry, []zapcore.Field{zap.String("module", "storage")}))
	assert.NotZero(t, sysBuf.Len())
	assert.Zero(t, execBuf.Len(), "storage 日志只应写入 system")
	sysBuf.Reset()

	require.NoError(t, core.Write(entry, []zapcore.Field{zap.String("module", "runner")}))
	assert.NotZero(t, execBuf.Len())
	assert.Zero(t, sysBuf.Len(), "runner 日志只应写入 exec")
	execBuf.Reset()

	require.NoError(t, core.Write(entry, nil))
	assert.NotZero(t, sysBuf.Len(), "无 module 时两个文件都写")
	assert.NotZero(t, execBuf.Len())
}

func TestModuleRoutingCore_RoutesByWithField(t *testing.T) {
	core, sysBuf, execBuf := newRoutingCore()
	logger := zap.New(core).With(zap.String("module", "engine"))

	logger.Info("compiled")
	assert.NotZero(t, execBuf.Len(), "With 附加的 module 也应参与路由")
	assert.Zero(t, sysBuf.Len())
}

func TestLogger_WithModule(t *testing.T) {
	core, sysBuf, execBuf := newRoutingCore()
	base := NewFromZap(zap.New(core))

	NewModuleLogger(base, "cache").Infof("miss key=%s", "ab")
	assert.Contains(t, execBuf.String(), "miss key=ab")
	assert.Contains(t, execBuf.String(), `"module":"cache"`)
	assert.Zero(t, sysBuf.Len())

	assert.Nil(t, NewModuleLogger(nil, "cache"))
}
