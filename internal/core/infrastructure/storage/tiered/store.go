// Package tiered 提供两级产物存储：进程内前置缓存 + 持久化/共享后端
package tiered

import (
	"context"
	"errors"
	"io"

	"github.com/weisyn/vmrunner/pkg/interfaces/infrastructure/log"
	"github.com/weisyn/vmrunner/pkg/interfaces/vm"
)

// Store 两级存储
//
// 读：先查前置缓存，未命中再查后端，后端命中后回填前置缓存。
// 写：后端是权威副本，先写后端再写前置缓存；后端写失败时返回错误。
// 前置缓存的任何故障都只记录日志，不影响结果。
type Store struct {
	front  vm.CompiledContractCache
	back   vm.CompiledContractCache
	logger log.Logger
}

// New 创建两级存储
func New(front, back vm.CompiledContractCache, logger log.Logger) *Store {
	return &Store{front: front, back: back, logger: logger}
}

// Get 获取值
func (s *Store) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	if v, ok, err := s.front.Get(ctx, key); err == nil && ok {
		return v, true, nil
	} else if err != nil {
		s.warnf("前置缓存读取失败，回退到后端: %v", err)
	}

	v, ok, err := s.back.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	if err := s.front.Put(ctx, key, v); err != nil {
		s.warnf("前置缓存回填失败: %v", err)
	}
	return v, true, nil
}

// Put 写入值
func (s *Store) Put(ctx context.Context, key []byte, value []byte) error {
	backErr := s.back.Put(ctx, key, value)
	if err := s.front.Put(ctx, key, value); err != nil {
		s.warnf("前置缓存写入失败: %v", err)
	}
	return backErr
}

func (s *Store) warnf(format string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Warnf(format, args...)
	}
}

// Close 关闭两级存储中实现了 io.Closer 的部分
func (s *Store) Close() error {
	var errs []error
	for _, c := range []vm.CompiledContractCache{s.front, s.back} {
		if closer, ok := c.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
