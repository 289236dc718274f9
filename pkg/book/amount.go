package book

import (
	"math/big"
	"math/bits"
)

// =============================================================================
// Amount 128 位无符号定点金额
// =============================================================================
//
// 价格 * 数量 在 int64 下可能溢出 (targetSize × maxPrice)，
// 这里用 hi/lo 两个 uint64 做累加，全程整数运算，不引入浮点。
//
// 精度与价格相同：Amount = 实际金额 * 10^d

// Amount 金额
type Amount struct {
	hi, lo uint64
}

// AmountFromUint64 构造金额
func AmountFromUint64(v uint64) Amount {
	return Amount{lo: v}
}

// MulAdd 返回 a + price*qty
// price、qty 必须非负（引擎保证）
func (a Amount) MulAdd(price Price, qty Qty) Amount {
	hi, lo := bits.Mul64(uint64(price), uint64(qty))
	var carry uint64
	a.lo, carry = bits.Add64(a.lo, lo, 0)
	a.hi, _ = bits.Add64(a.hi, hi, carry)
	return a
}

// Add 返回 a + b
func (a Amount) Add(b Amount) Amount {
	var carry uint64
	a.lo, carry = bits.Add64(a.lo, b.lo, 0)
	a.hi, _ = bits.Add64(a.hi, b.hi, carry)
	return a
}

// Cmp 比较：a<b 返回 -1，a==b 返回 0，a>b 返回 1
func (a Amount) Cmp(b Amount) int {
	switch {
	case a.hi < b.hi:
		return -1
	case a.hi > b.hi:
		return 1
	case a.lo < b.lo:
		return -1
	case a.lo > b.lo:
		return 1
	}
	return 0
}

// IsZero 是否为零
func (a Amount) IsZero() bool {
	return a.hi == 0 && a.lo == 0
}

// Uint64 低 64 位，ok=false 表示高位非零
func (a Amount) Uint64() (uint64, bool) {
	return a.lo, a.hi == 0
}

// BigInt 转成 big.Int，供格式化使用
func (a Amount) BigInt() *big.Int {
	v := new(big.Int).SetUint64(a.hi)
	v.Lsh(v, 64)
	return v.Or(v, new(big.Int).SetUint64(a.lo))
}

// String 原始定点整数（未除以 10^d）
func (a Amount) String() string {
	if a.hi == 0 {
		return new(big.Int).SetUint64(a.lo).String()
	}
	return a.BigInt().String()
}
