package logic

import (
	"crypto/sha256"

	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/sha3"

	"github.com/weisyn/vmrunner/internal/core/vm/kind"
	"github.com/weisyn/vmrunner/internal/core/vm/vmerr"
)

const (
	hashLen      = 32
	signatureLen = 64 // r ‖ s
	pubKeyLen    = 64 // 未压缩公钥去掉 0x04 前缀
)

// SHA256 对客户内存中的数据求哈希，结果写入 outPtr（32字节）
func (l *VMLogic) SHA256(mem Memory, length, ptr, outPtr uint64) *vmerr.VMError {
	if err := l.payBase(); err != nil {
		return err
	}
	data, err := l.memRead(mem, ptr, length)
	if err != nil {
		return err
	}
	if err := l.gas.PayBase(l.cfg.ExtCosts.SHA256Base); err != nil {
		return err
	}
	if err := l.gas.PayPerByte(l.cfg.ExtCosts.SHA256Byte, length); err != nil {
		return err
	}
	sum := sha256.Sum256(data)
	return l.memWrite(mem, outPtr, sum[:])
}

// Keccak256 以太坊风格的 keccak256（非 NIST SHA3）
func (l *VMLogic) Keccak256(mem Memory, length, ptr, outPtr uint64) *vmerr.VMError {
	if err := l.payBase(); err != nil {
		return err
	}
	data, err := l.memRead(mem, ptr, length)
	if err != nil {
		return err
	}
	if err := l.gas.PayBase(l.cfg.ExtCosts.Keccak256Base); err != nil {
		return err
	}
	if err := l.gas.PayPerByte(l.cfg.ExtCosts.Keccak256Byte, length); err != nil {
		return err
	}
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return l.memWrite(mem, outPtr, h.Sum(nil))
}

// Ecrecover 从签名恢复 secp256k1 公钥
//
// 成功时把 64 字节公钥写入 outPtr 并返回 1；签名无效返回 0（不是错误）。
// 仅在 EcrecoverProtocolVersion 及之后可用。
func (l *VMLogic) Ecrecover(mem Memory, hashPtr, sigPtr, v, outPtr uint64) (uint64, *vmerr.VMError) {
	if err := l.payBase(); err != nil {
		return 0, err
	}
	if err := l.requireProtocol("ecrecover", kind.EcrecoverProtocolVersion); err != nil {
		return 0, err
	}
	if err := l.gas.PayBase(l.cfg.ExtCosts.EcrecoverBase); err != nil {
		return 0, err
	}
	hash, err := l.memRead(mem, hashPtr, hashLen)
	if err != nil {
		return 0, err
	}
	sig, err := l.memRead(mem, sigPtr, signatureLen)
	if err != nil {
		return 0, err
	}
	if v > 3 {
		return 0, vmerr.Trap(vmerr.CodeHostError, "ecrecover: invalid recovery id %d", v)
	}

	// 紧凑签名格式：27 + 恢复ID ‖ r ‖ s
	compact := make([]byte, 0, 1+signatureLen)
	compact = append(compact, byte(27+v))
	compact = append(compact, sig...)

	pub, _, rerr := ecdsa.RecoverCompact(compact, hash)
	if rerr != nil {
		return 0, nil
	}
	if err := l.memWrite(mem, outPtr, pub.SerializeUncompressed()[1:1+pubKeyLen]); err != nil {
		return 0, err
	}
	return 1, nil
}
