package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/weisyn/vmrunner/pkg/types"
)

// ErrConfigNotFound 配置文件不存在
var ErrConfigNotFound = errors.New("config file not found")

// Load 从JSON文件加载应用配置
//
// 字段使用指针类型以区分“未设置”和“设置为零值”，未设置的字段由各配置包的默认值补齐。
func Load(path string) (*types.AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}
	return Parse(data)
}

// Parse 解析JSON配置内容；未知字段视为错误，避免拼写错误被静默忽略
func Parse(data []byte) (*types.AppConfig, error) {
	var appConfig types.AppConfig
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&appConfig); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}
	return &appConfig, nil
}
