// Package utils provides path manipulation utility functions.
package utils

import (
	"os"
	"path/filepath"
)

// GetProjectRoot 获取数据路径解析的基准目录
//
// 优先使用环境变量 VMRUNNER_HOME，其次向上查找 go.mod，最后退回当前工作目录。
func GetProjectRoot() string {
	if root := os.Getenv("VMRUNNER_HOME"); root != "" {
		return root
	}

	wd, err := os.Getwd()
	if err != nil {
		return "."
	}

	for dir := wd; ; {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return wd
}

// ResolveDataPath 解析数据目录路径为绝对路径
// 如果path已经是绝对路径，直接返回
// 如果是相对路径，基于 GetProjectRoot 解析
func ResolveDataPath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(GetProjectRoot(), path)
}

// EnsureDir 确保目录存在，如果不存在则创建
func EnsureDir(path string) error {
	//nolint:gosec // G301: 目录需要用户可读权限
	return os.MkdirAll(path, 0755)
}
