package types

import (
	"encoding/json"
)

// ExtCostsConfig 宿主函数的gas成本表
//
// 只列出本层宿主函数实际使用的条目，完整成本表由协议参数表提供。
type ExtCostsConfig struct {
	Base                 Gas `json:"base"`
	ContractCompileBase  Gas `json:"contract_compile_base"`
	ContractCompileBytes Gas `json:"contract_compile_bytes"`
	ReadMemoryBase       Gas `json:"read_memory_base"`
	ReadMemoryByte       Gas `json:"read_memory_byte"`
	WriteMemoryBase      Gas `json:"write_memory_base"`
	WriteMemoryByte      Gas `json:"write_memory_byte"`
	LogBase              Gas `json:"log_base"`
	LogByte              Gas `json:"log_byte"`
	StorageWriteBase     Gas `json:"storage_write_base"`
	StorageWriteKeyByte  Gas `json:"storage_write_key_byte"`
	StorageWriteValByte  Gas `json:"storage_write_value_byte"`
	StorageReadBase      Gas `json:"storage_read_base"`
	StorageReadKeyByte   Gas `json:"storage_read_key_byte"`
	StorageReadValByte   Gas `json:"storage_read_value_byte"`
	StorageRemoveBase    Gas `json:"storage_remove_base"`
	StorageHasKeyBase    Gas `json:"storage_has_key_base"`
	PromiseResultBase    Gas `json:"promise_result_base"`
	PromiseAndBase       Gas `json:"promise_and_base"`
	PromiseReturn        Gas `json:"promise_return"`
	SHA256Base           Gas `json:"sha256_base"`
	SHA256Byte           Gas `json:"sha256_byte"`
	Keccak256Base        Gas `json:"keccak256_base"`
	Keccak256Byte        Gas `json:"keccak256_byte"`
	EcrecoverBase        Gas `json:"ecrecover_base"`
}

// VMLimitConfig 执行资源限制
type VMLimitConfig struct {
	MaxGasBurnt                   Gas    `json:"max_gas_burnt"`
	MaxStackHeight                uint32 `json:"max_stack_height"`
	InitialMemoryPages            uint32 `json:"initial_memory_pages"`
	MaxMemoryPages                uint32 `json:"max_memory_pages"`
	MaxContractSize               uint64 `json:"max_contract_size"`
	MaxFunctionsNumberPerContract uint64 `json:"max_functions_number_per_contract"`
	MaxArgumentsLength            uint64 `json:"max_arguments_length"`
	MaxReturnDataLength           uint64 `json:"max_return_data_length"`
	MaxNumberLogs                 uint64 `json:"max_number_logs"`
	MaxTotalLogLength             uint64 `json:"max_total_log_length"`
	MaxLengthStorageKey           uint64 `json:"max_length_storage_key"`
	MaxLengthStorageValue         uint64 `json:"max_length_storage_value"`
	MaxPromisesPerFunctionCall    uint64 `json:"max_promises_per_function_call"`
}

// VMConfig 执行配置
//
// 由协议版本固定，影响编译产物，因此其规范序列化是缓存键的一部分。
type VMConfig struct {
	ExtCosts      ExtCostsConfig `json:"ext_costs"`
	GrowMemCost   uint32         `json:"grow_mem_cost"`
	RegularOpCost uint32         `json:"regular_op_cost"`
	Limits        VMLimitConfig  `json:"limits"`
}

// CanonicalBytes 返回规范序列化结果
//
// 结构体字段顺序固定、无map，encoding/json 的输出是确定的。
func (c *VMConfig) CanonicalBytes() []byte {
	b, err := json.Marshal(c)
	if err != nil {
		// 纯值结构体不会序列化失败
		panic(err)
	}
	return b
}

// DefaultVMConfig 返回默认执行配置
func DefaultVMConfig() *VMConfig {
	return &VMConfig{
		ExtCosts: ExtCostsConfig{
			Base:                 264_768_111,
			ContractCompileBase:  35_445_963,
			ContractCompileBytes: 216_750,
			ReadMemoryBase:       2_609_863_200,
			ReadMemoryByte:       3_801_333,
			WriteMemoryBase:      2_803_794_861,
			WriteMemoryByte:      2_723_772,
			LogBase:              3_543_313_050,
			LogByte:              13_198_791,
			StorageWriteBase:     64_196_736_000,
			StorageWriteKeyByte:  70_482_867,
			StorageWriteValByte:  310_377_390,
			StorageReadBase:      56_356_845_750,
			StorageReadKeyByte:   30_952_533,
			StorageReadValByte:   5_611_005,
			StorageRemoveBase:    53_473_030_500,
			StorageHasKeyBase:    54_039_896_625,
			PromiseResultBase:    1_500_000_000,
			PromiseAndBase:       1_465_013_400,
			PromiseReturn:        560_152_386,
			SHA256Base:           4_540_970_250,
			SHA256Byte:           24_117_351,
			Keccak256Base:        5_879_491_275,
			Keccak256Byte:        21_471_105,
			EcrecoverBase:        278_821_988_457,
		},
		GrowMemCost:   1,
		RegularOpCost: 3_856_371,
		Limits: VMLimitConfig{
			MaxGasBurnt:                   200_000_000_000_000,
			MaxStackHeight:                16 * 1024,
			InitialMemoryPages:            1024,
			MaxMemoryPages:                2048,
			MaxContractSize:               4 * 1024 * 1024,
			MaxFunctionsNumberPerContract: 10_000,
			MaxArgumentsLength:            4 * 1024 * 1024,
			MaxReturnDataLength:           4 * 1024 * 1024,
			MaxNumberLogs:                 100,
			MaxTotalLogLength:             16 * 1024,
			MaxLengthStorageKey:           4 * 1024 * 1024,
			MaxLengthStorageValue:         4 * 1024 * 1024,
			MaxPromisesPerFunctionCall:    64,
		},
	}
}

// TestVMConfig 返回测试用的小成本配置
func TestVMConfig() *VMConfig {
	c := DefaultVMConfig()
	c.ExtCosts = ExtCostsConfig{
		Base:                 1,
		ContractCompileBase:  100,
		ContractCompileBytes: 1,
		ReadMemoryBase:       1,
		ReadMemoryByte:       1,
		WriteMemoryBase:      1,
		WriteMemoryByte:      1,
		LogBase:              1,
		LogByte:              1,
		StorageWriteBase:     1,
		StorageWriteKeyByte:  1,
		StorageWriteValByte:  1,
		StorageReadBase:      1,
		StorageReadKeyByte:   1,
		StorageReadValByte:   1,
		StorageRemoveBase:    1,
		StorageHasKeyBase:    1,
		PromiseResultBase:    1,
		PromiseAndBase:       1,
		PromiseReturn:        1,
		SHA256Base:           1,
		SHA256Byte:           1,
		Keccak256Base:        1,
		Keccak256Byte:        1,
		EcrecoverBase:        1,
	}
	c.RegularOpCost = 1
	c.Limits.InitialMemoryPages = 1
	c.Limits.MaxMemoryPages = 16
	return c
}

// ActionCosts 单个动作的发送/执行成本
type ActionCosts struct {
	SendSir    Gas `json:"send_sir"`
	SendNotSir Gas `json:"send_not_sir"`
	Execution  Gas `json:"execution"`
}

// RuntimeFeesConfig 运行时费用表
//
// 每次调用传入，执行期间使用，不进入编译产物。
type RuntimeFeesConfig struct {
	ActionReceiptCreation ActionCosts `json:"action_receipt_creation"`
	DataReceiptCreation   ActionCosts `json:"data_receipt_creation"`
	FunctionCall          ActionCosts `json:"function_call"`
	FunctionCallPerByte   ActionCosts `json:"function_call_per_byte"`
	Transfer              ActionCosts `json:"transfer"`
}

// DefaultRuntimeFeesConfig 返回默认费用表
func DefaultRuntimeFeesConfig() *RuntimeFeesConfig {
	return &RuntimeFeesConfig{
		ActionReceiptCreation: ActionCosts{SendSir: 108_059_500_000, SendNotSir: 108_059_500_000, Execution: 108_059_500_000},
		DataReceiptCreation:   ActionCosts{SendSir: 4_697_339_419_375, SendNotSir: 4_697_339_419_375, Execution: 4_697_339_419_375},
		FunctionCall:          ActionCosts{SendSir: 2_319_861_500_000, SendNotSir: 2_319_861_500_000, Execution: 2_319_861_500_000},
		FunctionCallPerByte:   ActionCosts{SendSir: 2_235_934, SendNotSir: 2_235_934, Execution: 2_235_934},
		Transfer:              ActionCosts{SendSir: 115_123_062_500, SendNotSir: 115_123_062_500, Execution: 115_123_062_500},
	}
}

// TestRuntimeFeesConfig 返回测试用的小费用表
func TestRuntimeFeesConfig() *RuntimeFeesConfig {
	one := ActionCosts{SendSir: 1, SendNotSir: 1, Execution: 1}
	return &RuntimeFeesConfig{
		ActionReceiptCreation: one,
		DataReceiptCreation:   one,
		FunctionCall:          one,
		FunctionCallPerByte:   one,
		Transfer:              one,
	}
}
