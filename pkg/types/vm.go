// Package types 定义合约执行层共享的数据模型
//
// 本文件包含一次合约调用涉及的全部值类型：
// - ContractCode：不可变字节码 + 内容哈希
// - ExecutionContext：单次调用的临时输入
// - PromiseResult：异步跨合约调用的回传结果
// - VMOutcome：成功路径的结果包（返回值、燃烧的gas、日志、回执）
package types

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/mr-tron/base58"
)

// ProtocolVersion 协议版本号（单调递增）
type ProtocolVersion uint32

// Gas 计量单位
type Gas = uint64

// Balance 账户余额（低128位以外的部分不参与本层计算）
type Balance = uint64

// AccountID 账户标识
type AccountID = string

// CryptoHashSize 内容哈希字节数
const CryptoHashSize = 32

// CryptoHash 内容哈希（SHA-256）
type CryptoHash [CryptoHashSize]byte

// HashBytes 计算字节序列的内容哈希
func HashBytes(data []byte) CryptoHash {
	return CryptoHash(sha256.Sum256(data))
}

// CryptoHashFromBase58 解析base58编码的哈希
func CryptoHashFromBase58(s string) (CryptoHash, error) {
	var h CryptoHash
	raw, err := base58.Decode(s)
	if err != nil {
		return h, fmt.Errorf("invalid base58 hash %q: %w", s, err)
	}
	if len(raw) != CryptoHashSize {
		return h, fmt.Errorf("invalid hash length: got %d, want %d", len(raw), CryptoHashSize)
	}
	copy(h[:], raw)
	return h, nil
}

// String 返回base58文本形式
func (h CryptoHash) String() string {
	return base58.Encode(h[:])
}

// Hex 返回十六进制文本形式
func (h CryptoHash) Hex() string {
	return hex.EncodeToString(h[:])
}

// IsZero 是否为零值哈希
func (h CryptoHash) IsZero() bool {
	return h == CryptoHash{}
}

// ContractCode 合约字节码及其内容哈希
//
// 哈希在构造时计算一次，之后视为身份标识：哈希相同即视为同一份代码。
type ContractCode struct {
	code []byte
	hash CryptoHash
}

// NewContractCode 创建合约代码（拷贝输入，保证不可变）
func NewContractCode(code []byte) *ContractCode {
	buf := make([]byte, len(code))
	copy(buf, code)
	return &ContractCode{code: buf, hash: HashBytes(buf)}
}

// NewContractCodeWithHash 使用已知哈希创建合约代码（从账户存储加载时哈希已知）
func NewContractCodeWithHash(code []byte, hash CryptoHash) *ContractCode {
	buf := make([]byte, len(code))
	copy(buf, code)
	return &ContractCode{code: buf, hash: hash}
}

// Code 返回字节码（调用方不得修改）
func (c *ContractCode) Code() []byte {
	return c.code
}

// Hash 返回内容哈希
func (c *ContractCode) Hash() CryptoHash {
	return c.hash
}

// ExecutionContext 单次调用的执行上下文
//
// 每次调用重新构造，从不缓存。
type ExecutionContext struct {
	CurrentAccountID     AccountID `json:"current_account_id"`
	SignerAccountID      AccountID `json:"signer_account_id"`
	SignerAccountPK      []byte    `json:"signer_account_pk"`
	PredecessorAccountID AccountID `json:"predecessor_account_id"`

	// Input 序列化的调用参数
	Input []byte `json:"input"`

	BlockIndex     uint64 `json:"block_index"`
	BlockTimestamp uint64 `json:"block_timestamp"`
	EpochHeight    uint64 `json:"epoch_height"`

	AccountBalance       Balance `json:"account_balance"`
	AccountLockedBalance Balance `json:"account_locked_balance"`
	StorageUsage         uint64  `json:"storage_usage"`
	AttachedDeposit      Balance `json:"attached_deposit"`

	// PrepaidGas 本次调用的gas预算
	PrepaidGas Gas    `json:"prepaid_gas"`
	RandomSeed []byte `json:"random_seed"`

	// IsView 只读调用：禁止写存储与创建promise
	IsView bool `json:"is_view"`

	OutputDataReceivers []AccountID `json:"output_data_receivers"`
}

// PromiseResultStatus promise结果状态
type PromiseResultStatus uint8

const (
	PromiseNotReady PromiseResultStatus = iota
	PromiseSuccessful
	PromiseFailed
)

// String 返回状态名称
func (s PromiseResultStatus) String() string {
	switch s {
	case PromiseNotReady:
		return "not_ready"
	case PromiseSuccessful:
		return "successful"
	case PromiseFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// PromiseResult 先前发起的异步跨合约调用的结果
type PromiseResult struct {
	Status PromiseResultStatus `json:"status"`
	Data   []byte              `json:"data,omitempty"` // 仅Successful时有效
}

// PromiseResultSuccessful 构造成功结果
func PromiseResultSuccessful(data []byte) PromiseResult {
	return PromiseResult{Status: PromiseSuccessful, Data: data}
}

// ReturnDataKind 返回值类型
type ReturnDataKind uint8

const (
	ReturnDataNone ReturnDataKind = iota
	ReturnDataValue
	ReturnDataReceiptIndex
)

// ReturnData 合约返回值：无 / 字节值 / 回执索引（把结果委托给另一个promise）
type ReturnData struct {
	Kind         ReturnDataKind `json:"kind"`
	Value        []byte         `json:"value,omitempty"`
	ReceiptIndex uint64         `json:"receipt_index,omitempty"`
}

// ActionReceipt 执行期间创建的跨合约调用回执
type ActionReceipt struct {
	ReceiverID      AccountID `json:"receiver_id"`
	MethodName      string    `json:"method_name"`
	Args            []byte    `json:"args"`
	AttachedDeposit Balance   `json:"attached_deposit"`
	PrepaidGas      Gas       `json:"prepaid_gas"`
}

// VMOutcome 执行结果包
//
// 成功时单独返回；部分执行（已燃烧gas后失败）时与错误一起返回。
type VMOutcome struct {
	Balance        Balance         `json:"balance"`
	StorageUsage   uint64          `json:"storage_usage"`
	ReturnData     ReturnData      `json:"return_data"`
	BurntGas       Gas             `json:"burnt_gas"`
	UsedGas        Gas             `json:"used_gas"`
	Logs           []string        `json:"logs"`
	ActionReceipts []ActionReceipt `json:"action_receipts"`
}
