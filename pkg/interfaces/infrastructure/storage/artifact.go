// Package storage 定义编译产物存储的接口
//
// 💾 **编译产物存储 (Compiled Artifact Store)**
//
// 执行层只把存储当作字节键值对使用：键是缓存键，值是带头部的产物记录。
// 记录的编码、校验与过期判断都在 cache 包中完成，存储实现不解析值内容。
//
// 🔗 **实现**
// - memory：进程内map，测试与一次性运行
// - bigcache：进程内有界缓存
// - badger：本地持久化
// - redis：多进程共享
// - tiered：bigcache + badger
package storage

import (
	"github.com/weisyn/vmrunner/pkg/interfaces/vm"
)

// ArtifactStore 可关闭的产物存储
type ArtifactStore interface {
	vm.CompiledContractCache

	// Close 释放底层资源；关闭后的读写返回错误
	Close() error
}
