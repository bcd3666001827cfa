// Package log 定义执行层使用的日志接口
//
// 📊 **日志级别**
//
// 级别常量定义在 pkg/types，这里保留别名，
// 便于只依赖日志接口的模块直接使用。
package log

import "github.com/weisyn/vmrunner/pkg/types"

// LogLevel 日志级别别名
type LogLevel = types.LogLevel

const (
	DebugLevel = types.DebugLevel
	InfoLevel  = types.InfoLevel
	WarnLevel  = types.WarnLevel
	ErrorLevel = types.ErrorLevel
	FatalLevel = types.FatalLevel
)
