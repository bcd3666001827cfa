package log

import (
	"go.uber.org/zap/zapcore"

	"github.com/weisyn/vmrunner/pkg/types"
)

// 日志配置默认值
const (
	// defaultLogLevel 默认日志级别
	defaultLogLevel = string(types.InfoLevel)

	// defaultToConsole 默认输出到控制台
	defaultToConsole = true

	// defaultFilePath 默认只输出到控制台，配置 file_path 后写文件
	defaultFilePath = "stderr"

	// === 日志轮转配置 ===
	defaultMaxSize    = 100 // MB
	defaultMaxBackups = 10
	defaultMaxAge     = 30 // 天
	defaultCompress   = true

	// === 调试配置 ===
	defaultEnableCaller     = true
	defaultEnableStacktrace = true

	// === 多文件日志配置 ===

	// defaultEnableMultiFile 存储/配置等基础设施日志与执行日志分离
	defaultEnableMultiFile = true

	defaultSystemLogFile = "vmrunner-system.log"
	defaultExecLogFile   = "vmrunner-exec.log"
)

// 默认的日志级别映射
var defaultLevelMap = map[string]zapcore.Level{
	string(types.DebugLevel): zapcore.DebugLevel,
	string(types.InfoLevel):  zapcore.InfoLevel,
	string(types.WarnLevel):  zapcore.WarnLevel,
	string(types.ErrorLevel): zapcore.ErrorLevel,
	"panic":                  zapcore.PanicLevel,
	string(types.FatalLevel): zapcore.FatalLevel,
}
