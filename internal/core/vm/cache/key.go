// Package cache 实现编译产物缓存的键构造、记录编解码和前端查询
//
// 🎯 **正确性约束**
// - 键 = SHA-256(代码哈希 ‖ 规范配置 ‖ 引擎标签 ‖ 产物格式版本)
// - 读到的记录必须再次校验头部的引擎标签与格式版本，不匹配即视为未命中并覆盖
// - 缓存的编译失败与存储本身的I/O故障必须可区分
package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"github.com/weisyn/vmrunner/internal/core/vm/kind"
	"github.com/weisyn/vmrunner/pkg/types"
)

// keyDomain 键哈希的域分隔前缀
const keyDomain = "vmrunner/compiled-contract"

// KeySize 键字节数
const KeySize = sha256.Size

// Key 编译产物缓存键
type Key [KeySize]byte

// NewKey 由 (代码哈希, 执行配置, 引擎种类, 产物格式版本) 构造缓存键
func NewKey(codeHash types.CryptoHash, cfg *types.VMConfig, engine kind.EngineKind, formatVersion uint32) Key {
	h := sha256.New()
	h.Write([]byte(keyDomain))
	h.Write(codeHash[:])

	cfgBytes := cfg.CanonicalBytes()
	var lenBuf [8]byte
	binary.BigEndian.PutUint64(lenBuf[:], uint64(len(cfgBytes)))
	h.Write(lenBuf[:])
	h.Write(cfgBytes)

	h.Write([]byte{engine.Tag()})

	var fv [4]byte
	binary.BigEndian.PutUint32(fv[:], formatVersion)
	h.Write(fv[:])

	var k Key
	copy(k[:], h.Sum(nil))
	return k
}

// Bytes 返回存储层使用的字节键
func (k Key) Bytes() []byte {
	out := make([]byte, KeySize)
	copy(out, k[:])
	return out
}

// String 返回十六进制形式
func (k Key) String() string {
	return hex.EncodeToString(k[:])
}
