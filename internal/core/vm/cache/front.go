package cache

import (
	"context"
	"errors"

	"github.com/weisyn/vmrunner/internal/core/vm/kind"
	"github.com/weisyn/vmrunner/internal/core/vm/vmerr"
	"github.com/weisyn/vmrunner/pkg/interfaces/infrastructure/log"
	"github.com/weisyn/vmrunner/pkg/interfaces/vm"
	"github.com/weisyn/vmrunner/pkg/types"
)

// LookupStatus 查询结果
type LookupStatus int

const (
	// Miss 不存在（或读失败被降级为未命中）
	Miss LookupStatus = iota
	// Hit 命中，记录可用
	Hit
	// Stale 存在但头部不匹配或损坏，调用方应重新编译并覆盖
	Stale
)

// String 返回状态名称
func (s LookupStatus) String() string {
	switch s {
	case Hit:
		return "hit"
	case Stale:
		return "stale"
	default:
		return "miss"
	}
}

// Front 某个引擎视角下的缓存前端
//
// 只拥有键方案与记录编解码，后端存储由调用方传入。
// store 为 nil 时所有查询都是未命中，写入为空操作。
type Front struct {
	store         vm.CompiledContractCache
	engine        kind.EngineKind
	formatVersion uint32
	logger        log.Logger
}

// NewFront 创建缓存前端
func NewFront(store vm.CompiledContractCache, engine kind.EngineKind, formatVersion uint32, logger log.Logger) *Front {
	return &Front{
		store:         store,
		engine:        engine,
		formatVersion: formatVersion,
		logger:        logger,
	}
}

// Key 计算当前引擎/格式版本下的缓存键
func (f *Front) Key(codeHash types.CryptoHash, cfg *types.VMConfig) Key {
	return NewKey(codeHash, cfg, f.engine, f.formatVersion)
}

// Lookup 查询缓存
//
// 存储读失败返回 InfrastructureError（状态为 Miss），是否降级由调用方的策略决定。
func (f *Front) Lookup(ctx context.Context, key Key) (Record, LookupStatus, *vmerr.VMError) {
	engine := f.engine.String()
	if f.store == nil {
		lookupTotal.WithLabelValues(engine, "miss").Inc()
		return Record{}, Miss, nil
	}

	raw, ok, err := f.store.Get(ctx, key.Bytes())
	if err != nil {
		storeErrorTotal.WithLabelValues(engine, "read").Inc()
		return Record{}, Miss, vmerr.Infrastructure(vmerr.CodeStoreRead, err, "read compiled contract %s", key)
	}
	if !ok {
		lookupTotal.WithLabelValues(engine, "miss").Inc()
		return Record{}, Miss, nil
	}

	rec, err := Decode(f.engine, f.formatVersion, raw)
	if err != nil {
		lookupTotal.WithLabelValues(engine, "stale").Inc()
		if f.logger != nil {
			if errors.Is(err, ErrCorruptRecord) {
				f.logger.Warnf("缓存记录损坏，将重新编译并覆盖: key=%s err=%v", key, err)
			} else {
				f.logger.Debugf("缓存记录过期，将重新编译并覆盖: key=%s err=%v", key, err)
			}
		}
		return Record{}, Stale, nil
	}

	if rec.Kind == RecordCompileError {
		lookupTotal.WithLabelValues(engine, "compile_error").Inc()
	} else {
		lookupTotal.WithLabelValues(engine, "hit").Inc()
	}
	return rec, Hit, nil
}

// StoreArtifact 写入编译产物
func (f *Front) StoreArtifact(ctx context.Context, key Key, prepared []byte) *vmerr.VMError {
	if f.store == nil {
		return nil
	}
	return f.put(ctx, key, EncodeArtifact(f.engine, f.formatVersion, prepared), "artifact")
}

// StoreCompileError 写入编译失败记录
func (f *Front) StoreCompileError(ctx context.Context, key Key, compileErr *vmerr.VMError) *vmerr.VMError {
	if f.store == nil {
		return nil
	}
	raw, err := EncodeCompileError(f.engine, f.formatVersion, compileErr)
	if err != nil {
		return vmerr.Infrastructure(vmerr.CodeCodec, err, "encode compile error record")
	}
	return f.put(ctx, key, raw, "compile_error")
}

func (f *Front) put(ctx context.Context, key Key, raw []byte, record string) *vmerr.VMError {
	engine := f.engine.String()
	if err := f.store.Put(ctx, key.Bytes(), raw); err != nil {
		storeErrorTotal.WithLabelValues(engine, "write").Inc()
		return vmerr.Infrastructure(vmerr.CodeStoreWrite, err, "write compiled contract %s", key)
	}
	putTotal.WithLabelValues(engine, record).Inc()
	return nil
}
