// Package memory 提供可丢弃的进程内编译产物存储
//
// 与持久化存储具有相同的命中/未命中语义，用于测试、CheckCompile 和 CLI 的一次性运行。
package memory

import (
	"context"
	"fmt"
	"sync"
)

// Store 基于 map 的字节键值存储
type Store struct {
	mu     sync.RWMutex
	data   map[string][]byte
	closed bool
}

// New 创建一个空的内存存储
func New() *Store {
	return &Store{data: make(map[string][]byte)}
}

// Get 获取值；不存在时返回 (nil, false, nil)
func (s *Store) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, false, fmt.Errorf("memory store is closed")
	}
	v, ok := s.data[string(key)]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

// Put 写入值（整体替换，读者不会看到部分写入）
func (s *Store) Put(ctx context.Context, key []byte, value []byte) error {
	buf := make([]byte, len(value))
	copy(buf, value)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("memory store is closed")
	}
	s.data[string(key)] = buf
	return nil
}

// Delete 删除键
func (s *Store) Delete(ctx context.Context, key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, string(key))
	return nil
}

// Len 当前条目数
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Keys 返回全部键（顺序不定）
func (s *Store) Keys() [][]byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([][]byte, 0, len(s.data))
	for k := range s.data {
		out = append(out, []byte(k))
	}
	return out
}

// Close 关闭存储并释放数据
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.data = nil
	return nil
}
