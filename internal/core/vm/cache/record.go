package cache

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/golang/snappy"

	"github.com/weisyn/vmrunner/internal/core/vm/kind"
	"github.com/weisyn/vmrunner/internal/core/vm/vmerr"
)

// 记录头格式：
//
//	magic(4) | recordVersion(1) | engineTag(1) | formatVersion(4, BE) | recordKind(1) | payload
//
// 产物 payload 为 snappy 压缩后的预处理字节码，编译失败 payload 为 JSON 序列化的 VMError。
var recordMagic = []byte("WVMA")

const (
	recordVersion   byte = 1
	headerSize           = 4 + 1 + 1 + 4 + 1
	maxDecodedBytes      = 64 << 20 // 解压后上限，防止损坏记录导致超大分配
)

// RecordKind 记录类型
type RecordKind byte

const (
	RecordArtifact     RecordKind = 1
	RecordCompileError RecordKind = 2
)

var (
	// ErrStaleRecord 记录头与当前引擎/格式版本不匹配
	ErrStaleRecord = errors.New("stale compiled contract record")
	// ErrCorruptRecord 记录无法解析
	ErrCorruptRecord = errors.New("corrupt compiled contract record")
)

// Record 解码后的缓存记录
type Record struct {
	Kind RecordKind

	// Prepared 预处理后的字节码（Kind == RecordArtifact）
	Prepared []byte

	// CompileErr 缓存的编译失败（Kind == RecordCompileError）
	CompileErr *vmerr.VMError
}

func writeHeader(buf *bytes.Buffer, engine kind.EngineKind, formatVersion uint32, rk RecordKind) {
	buf.Write(recordMagic)
	buf.WriteByte(recordVersion)
	buf.WriteByte(engine.Tag())
	var fv [4]byte
	binary.BigEndian.PutUint32(fv[:], formatVersion)
	buf.Write(fv[:])
	buf.WriteByte(byte(rk))
}

// EncodeArtifact 编码一个编译产物记录
func EncodeArtifact(engine kind.EngineKind, formatVersion uint32, prepared []byte) []byte {
	var buf bytes.Buffer
	writeHeader(&buf, engine, formatVersion, RecordArtifact)
	buf.Write(snappy.Encode(nil, prepared))
	return buf.Bytes()
}

// EncodeCompileError 编码一个编译失败记录
func EncodeCompileError(engine kind.EngineKind, formatVersion uint32, compileErr *vmerr.VMError) ([]byte, error) {
	if compileErr == nil || compileErr.Kind != vmerr.KindCompilation {
		return nil, fmt.Errorf("only compilation errors can be cached, got %v", compileErr)
	}
	payload, err := json.Marshal(compileErr)
	if err != nil {
		return nil, fmt.Errorf("序列化编译错误失败: %w", err)
	}
	var buf bytes.Buffer
	writeHeader(&buf, engine, formatVersion, RecordCompileError)
	buf.Write(payload)
	return buf.Bytes(), nil
}

// Decode 解码记录，并校验头部与期望的引擎/格式版本一致
func Decode(engine kind.EngineKind, formatVersion uint32, raw []byte) (Record, error) {
	if len(raw) < headerSize || !bytes.Equal(raw[:4], recordMagic) {
		return Record{}, fmt.Errorf("%w: bad header", ErrCorruptRecord)
	}
	if raw[4] != recordVersion {
		return Record{}, fmt.Errorf("%w: record version %d", ErrStaleRecord, raw[4])
	}
	if raw[5] != engine.Tag() {
		return Record{}, fmt.Errorf("%w: engine tag %d, want %d", ErrStaleRecord, raw[5], engine.Tag())
	}
	if fv := binary.BigEndian.Uint32(raw[6:10]); fv != formatVersion {
		return Record{}, fmt.Errorf("%w: format version %d, want %d", ErrStaleRecord, fv, formatVersion)
	}

	payload := raw[headerSize:]
	switch rk := RecordKind(raw[10]); rk {
	case RecordArtifact:
		n, err := snappy.DecodedLen(payload)
		if err != nil {
			return Record{}, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
		}
		if n > maxDecodedBytes {
			return Record{}, fmt.Errorf("%w: decoded length %d too large", ErrCorruptRecord, n)
		}
		prepared, err := snappy.Decode(nil, payload)
		if err != nil {
			return Record{}, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
		}
		return Record{Kind: RecordArtifact, Prepared: prepared}, nil

	case RecordCompileError:
		var ce vmerr.VMError
		if err := json.Unmarshal(payload, &ce); err != nil {
			return Record{}, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
		}
		if ce.Kind != vmerr.KindCompilation {
			return Record{}, fmt.Errorf("%w: cached error kind %s", ErrCorruptRecord, ce.Kind)
		}
		return Record{Kind: RecordCompileError, CompileErr: &ce}, nil

	default:
		return Record{}, fmt.Errorf("%w: record kind %d", ErrCorruptRecord, rk)
	}
}
