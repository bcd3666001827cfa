package logic

import (
	"github.com/weisyn/vmrunner/internal/core/vm/vmerr"
	"github.com/weisyn/vmrunner/pkg/types"
)

// GasCounter 一次调用的gas计数
//
// burnt：本次执行真实消耗的gas；used：burnt 加上预付给新回执的gas。
// burnt 不超过 maxGasBurnt，used 不超过 prepaidGas。
type GasCounter struct {
	burnt       types.Gas
	used        types.Gas
	maxGasBurnt types.Gas
	prepaidGas  types.Gas
	opCost      types.Gas
}

// NewGasCounter 创建计数器
//
// 只读调用没有预付gas时，以 maxGasBurnt 作为预算。
func NewGasCounter(maxGasBurnt, prepaidGas types.Gas, isView bool, regularOpCost uint32) *GasCounter {
	if isView && prepaidGas == 0 {
		prepaidGas = maxGasBurnt
	}
	return &GasCounter{
		maxGasBurnt: maxGasBurnt,
		prepaidGas:  prepaidGas,
		opCost:      types.Gas(regularOpCost),
	}
}

// Burnt 已燃烧的gas
func (g *GasCounter) Burnt() types.Gas { return g.burnt }

// Used 已使用的gas
func (g *GasCounter) Used() types.Gas { return g.used }

// PrepaidGas 本次调用的预算
func (g *GasCounter) PrepaidGas() types.Gas { return g.prepaidGas }

// PayBase 燃烧gas（同时计入 used）
func (g *GasCounter) PayBase(value types.Gas) *vmerr.VMError {
	return g.deduct(value, value)
}

// PayPerByte 按字节燃烧gas
func (g *GasCounter) PayPerByte(perByte types.Gas, n uint64) *vmerr.VMError {
	cost, ok := mulGas(perByte, n)
	if !ok {
		return g.exhaust()
	}
	return g.PayBase(cost)
}

// PayOpcodes 合约自报的指令计数
func (g *GasCounter) PayOpcodes(opcodes uint32) *vmerr.VMError {
	cost, ok := mulGas(g.opCost, uint64(opcodes))
	if !ok {
		return g.exhaust()
	}
	return g.PayBase(cost)
}

// PrepayGas 预付给新回执的gas：只计入 used，不燃烧
func (g *GasCounter) PrepayGas(value types.Gas) *vmerr.VMError {
	return g.deduct(0, value)
}

// PayActionAccumulated 创建回执时的发送成本（燃烧）与执行成本（预付）
func (g *GasCounter) PayActionAccumulated(burn, use types.Gas) *vmerr.VMError {
	total, ok := addGas(burn, use)
	if !ok {
		return g.exhaust()
	}
	return g.deduct(burn, total)
}

func (g *GasCounter) deduct(burn, use types.Gas) *vmerr.VMError {
	newBurnt, ok1 := addGas(g.burnt, burn)
	newUsed, ok2 := addGas(g.used, use)
	if ok1 && ok2 && newBurnt <= g.maxGasBurnt && newUsed <= g.prepaidGas {
		g.burnt = newBurnt
		g.used = newUsed
		return nil
	}

	overLimit := !ok1 || newBurnt > g.maxGasBurnt
	g.burnt = minGas(minGas(satAdd(g.burnt, burn), g.maxGasBurnt), g.prepaidGas)
	g.used = maxGas(minGas(satAdd(g.used, use), g.prepaidGas), g.burnt)

	if overLimit {
		return vmerr.ResourceLimit(vmerr.CodeGasLimitExceeded, "exceeded the maximum amount of gas allowed to burn per contract")
	}
	return vmerr.ResourceLimit(vmerr.CodeGasExceeded, "exceeded the prepaid gas")
}

// exhaust 成本计算溢出：视为耗尽全部预算
func (g *GasCounter) exhaust() *vmerr.VMError {
	limit := minGas(g.maxGasBurnt, g.prepaidGas)
	g.burnt = limit
	g.used = maxGas(g.used, limit)
	if g.maxGasBurnt <= g.prepaidGas {
		return vmerr.ResourceLimit(vmerr.CodeGasLimitExceeded, "exceeded the maximum amount of gas allowed to burn per contract")
	}
	return vmerr.ResourceLimit(vmerr.CodeGasExceeded, "exceeded the prepaid gas")
}

func addGas(a, b types.Gas) (types.Gas, bool) {
	s := a + b
	return s, s >= a
}

func mulGas(a types.Gas, b uint64) (types.Gas, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	p := a * b
	return p, p/b == a
}

func satAdd(a, b types.Gas) types.Gas {
	if s, ok := addGas(a, b); ok {
		return s
	}
	return ^types.Gas(0)
}

func minGas(a, b types.Gas) types.Gas {
	if a < b {
		return a
	}
	return b
}

func maxGas(a, b types.Gas) types.Gas {
	if a > b {
		return a
	}
	return b
}
