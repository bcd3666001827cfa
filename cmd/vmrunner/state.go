package main

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/weisyn/vmrunner/pkg/interfaces/vm"
	"github.com/weisyn/vmrunner/pkg/types"
)

// stateFile 合约存储快照（键为十六进制）
type stateFile struct {
	Storage map[string][]byte `json:"storage"`
}

// fileExternal 基于本地JSON快照的宿主状态
//
// run 命令单线程使用，不加锁。回执只在结果中体现，不写回快照。
type fileExternal struct {
	path    string
	storage map[string][]byte
	dataSeq uint64

	receiptSeq uint64
}

var _ vm.External = (*fileExternal)(nil)

// loadState 读取快照；path 为空或文件不存在时从空状态开始
func loadState(path string) (*fileExternal, error) {
	e := &fileExternal{path: path, storage: make(map[string][]byte)}
	if path == "" {
		return e, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return e, nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取状态文件失败: %w", err)
	}
	var sf stateFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("解析状态文件失败: %w", err)
	}
	for k, v := range sf.Storage {
		key, err := hex.DecodeString(k)
		if err != nil {
			return nil, fmt.Errorf("状态文件中的键 %q 不是十六进制: %w", k, err)
		}
		e.storage[string(key)] = v
	}
	return e, nil
}

// save 写回快照
func (e *fileExternal) save() error {
	if e.path == "" {
		return nil
	}
	sf := stateFile{Storage: make(map[string][]byte, len(e.storage))}
	for k, v := range e.storage {
		sf.Storage[hex.EncodeToString([]byte(k))] = v
	}
	data, err := json.MarshalIndent(sf, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(e.path, data, 0o644)
}

// usage 存储占用（键长+值长之和）
func (e *fileExternal) usage() uint64 {
	var n uint64
	for k, v := range e.storage {
		n += uint64(len(k) + len(v))
	}
	return n
}

func (e *fileExternal) StorageSet(key, value []byte) error {
	e.storage[string(key)] = append([]byte(nil), value...)
	return nil
}

func (e *fileExternal) StorageGet(key []byte) ([]byte, bool, error) {
	v, ok := e.storage[string(key)]
	return v, ok, nil
}

func (e *fileExternal) StorageRemove(key []byte) error {
	delete(e.storage, string(key))
	return nil
}

func (e *fileExternal) StorageHasKey(key []byte) (bool, error) {
	_, ok := e.storage[string(key)]
	return ok, nil
}

// CreateReceipt 回执由执行结果携带，这里只分配索引
func (e *fileExternal) CreateReceipt(receiverID types.AccountID, methodName string, args []byte, attachedDeposit types.Balance, prepaidGas types.Gas) (uint64, error) {
	idx := e.receiptSeq
	e.receiptSeq++
	return idx, nil
}

func (e *fileExternal) GenerateDataID() types.CryptoHash {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], e.dataSeq)
	e.dataSeq++
	return types.HashBytes(buf[:])
}
