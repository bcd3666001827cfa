// Package configs 内置配置
package configs

import _ "embed"

// 默认配置：未指定配置文件且 configs/vmrunner.json 不在工作目录时使用
//
//go:embed vmrunner.json
var defaultConfig []byte

// Default 返回内置默认配置内容
func Default() []byte {
	return defaultConfig
}
