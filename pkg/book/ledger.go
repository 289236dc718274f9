package book

import (
	"cmp"
	"fmt"
	"iter"
	"math"
	"slices"
)

// =============================================================================
// 价格档位账本 (Price Level Ledger)
// =============================================================================
//
// 每一侧一个账本：有序连续数组 + 二分查找
//
//   买盘：价格降序（最高买价在前）
//   卖盘：价格升序（最低卖价在前）
//
// 为什么不用跳表 / 红黑树？
//   1. 更新集中在已有价位附近，大部分是对已有档位的重复修改
//   2. 连续内存，遍历 cache 友好，扫单时每一步 O(1)
//   3. 活跃价位数量远小于更新量，插入的 O(n) 搬移可以摊薄
//
// 零数量档位默认保留（避免每次全部撤单都搬移数组），
// 开启 prune 后数量归零立即删除。扫单会跳过零数量档位，两种策略结果一致。

// Level 价格档位：某一价格上所有订单剩余量之和
type Level struct {
	Price Price
	Depth Qty
}

// Ledger 单侧价格档位账本
type Ledger struct {
	levels []Level
	side   Side
	prune  bool
}

// NewLedger 创建账本
func NewLedger(side Side, pruneEmpty bool) *Ledger {
	return &Ledger{
		side:   side,
		prune:  pruneEmpty,
		levels: make([]Level, 0, 64),
	}
}

// compare 按账本方向比较，"更优"的价格排在前面
func (l *Ledger) compare(lv Level, price Price) int {
	if l.side == SideBuy {
		return cmp.Compare(price, lv.Price)
	}
	return cmp.Compare(lv.Price, price)
}

// search 二分查找价格，返回位置和是否存在
func (l *Ledger) search(price Price) (int, bool) {
	return slices.BinarySearchFunc(l.levels, price, l.compare)
}

// Upsert 在 price 档位上加 delta
// 不存在且 delta>0 时按序插入；结果为负返回 ErrNegativeDepth，溢出返回 ErrMalformedCommand，账本不变
func (l *Ledger) Upsert(price Price, delta Qty) error {
	i, found := l.search(price)
	if found {
		if delta > 0 && l.levels[i].Depth > math.MaxInt64-delta {
			return fmt.Errorf("%s level %d: depth %d, delta %d overflows: %w",
				l.side, price, l.levels[i].Depth, delta, ErrMalformedCommand)
		}
		next := l.levels[i].Depth + delta
		if next < 0 {
			return fmt.Errorf("%s level %d: depth %d, delta %d: %w",
				l.side, price, l.levels[i].Depth, delta, ErrNegativeDepth)
		}
		l.levels[i].Depth = next
		if next == 0 && l.prune {
			l.levels = slices.Delete(l.levels, i, i+1)
		}
		return nil
	}

	switch {
	case delta < 0:
		return fmt.Errorf("%s level %d: no depth, delta %d: %w", l.side, price, delta, ErrNegativeDepth)
	case delta == 0:
		return nil
	}

	l.levels = slices.Insert(l.levels, i, Level{Price: price, Depth: delta})
	return nil
}

// Depth 某价位的数量，不存在返回 0
func (l *Ledger) Depth(price Price) Qty {
	if i, found := l.search(price); found {
		return l.levels[i].Depth
	}
	return 0
}

// BestToWorst 从最优价到最差价遍历
// 就是存储顺序，惰性、可重复遍历
func (l *Ledger) BestToWorst() iter.Seq[Level] {
	return func(yield func(Level) bool) {
		for _, lv := range l.levels {
			if !yield(lv) {
				return
			}
		}
	}
}

// Best 最优价（跳过零数量档位）
func (l *Ledger) Best() (Level, bool) {
	for _, lv := range l.levels {
		if lv.Depth > 0 {
			return lv, true
		}
	}
	return Level{}, false
}

// TopN 前 n 个非空档位（拷贝）
func (l *Ledger) TopN(n int) []Level {
	out := make([]Level, 0, min(n, len(l.levels)))
	for _, lv := range l.levels {
		if len(out) >= n {
			break
		}
		if lv.Depth > 0 {
			out = append(out, lv)
		}
	}
	return out
}

// Len 档位数量（含保留的零数量档位）
func (l *Ledger) Len() int {
	return len(l.levels)
}

// Side 账本方向
func (l *Ledger) Side() Side {
	return l.side
}

// sum 所有档位数量之和
func (l *Ledger) sum() Qty {
	var total Qty
	for _, lv := range l.levels {
		total += lv.Depth
	}
	return total
}

// sorted 是否严格有序且无重复价格
func (l *Ledger) sorted() bool {
	for i := 1; i < len(l.levels); i++ {
		if l.compare(l.levels[i-1], l.levels[i].Price) >= 0 {
			return false
		}
	}
	return true
}
