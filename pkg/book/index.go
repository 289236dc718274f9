package book

import "fmt"

// =============================================================================
// 订单索引 (Order Index)
// =============================================================================
//
// OrderID → (方向, 价格, 剩余数量)
// Reduce 命令只带 ID 和数量，必须靠索引找到它挂在哪一侧、哪个价位。
//
// 剩余数量始终记录：
//   1. 可以发现"减少量超过该订单剩余量"的协议错误
//   2. 开启淘汰策略时，剩余量归零即删除条目，限制内存

// IndexEntry 索引条目
type IndexEntry struct {
	Price     Price
	Remaining Qty
	Side      Side
}

// OrderIndex 订单索引
// 只由引擎单线程访问，无锁
type OrderIndex struct {
	entries map[OrderID]IndexEntry
}

// NewOrderIndex 创建订单索引
func NewOrderIndex() *OrderIndex {
	return &OrderIndex{
		entries: make(map[OrderID]IndexEntry),
	}
}

// Put 插入或覆盖
func (ix *OrderIndex) Put(id OrderID, side Side, price Price, qty Qty) {
	ix.entries[id] = IndexEntry{Side: side, Price: price, Remaining: qty}
}

// Get 查询，不存在返回 ErrUnknownOrder
func (ix *OrderIndex) Get(id OrderID) (IndexEntry, error) {
	entry, ok := ix.entries[id]
	if !ok {
		return IndexEntry{}, fmt.Errorf("order %d: %w", id, ErrUnknownOrder)
	}
	return entry, nil
}

// setRemaining 更新剩余数量
func (ix *OrderIndex) setRemaining(id OrderID, remaining Qty) {
	entry := ix.entries[id]
	entry.Remaining = remaining
	ix.entries[id] = entry
}

// Remove 删除条目（仅淘汰策略开启时使用）
func (ix *OrderIndex) Remove(id OrderID) {
	delete(ix.entries, id)
}

// Len 条目数量（含剩余量为 0 但未淘汰的条目）
func (ix *OrderIndex) Len() int {
	return len(ix.entries)
}

// LiveCount 剩余量大于 0 的订单数
func (ix *OrderIndex) LiveCount(side Side) int {
	n := 0
	for _, e := range ix.entries {
		if e.Side == side && e.Remaining > 0 {
			n++
		}
	}
	return n
}

// liveDepth 某一侧所有订单剩余量之和，用于一致性校验
func (ix *OrderIndex) liveDepth(side Side) Qty {
	var sum Qty
	for _, e := range ix.entries {
		if e.Side == side {
			sum += e.Remaining
		}
	}
	return sum
}
