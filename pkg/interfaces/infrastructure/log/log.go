package log

import "go.uber.org/zap"

// Logger 日志记录器接口
//
// 📋 执行层（runner、引擎、缓存、存储）统一通过该接口记录日志，
// 实现位于 internal/core/infrastructure/log。
type Logger interface {
	Debug(msg string)
	Debugf(format string, args ...interface{})

	Info(msg string)
	Infof(format string, args ...interface{})

	Warn(msg string)
	Warnf(format string, args ...interface{})

	Error(msg string)
	Errorf(format string, args ...interface{})

	// Fatal 记录致命级别的日志，然后退出进程
	Fatal(msg string)
	Fatalf(format string, args ...interface{})

	// With 返回一个带有额外字段的Logger（键值对交替传入）
	With(args ...interface{}) Logger

	// Sync 同步日志缓冲区到输出
	Sync() error

	// GetZapLogger 获取原始的zap日志记录器
	GetZapLogger() *zap.Logger
}
