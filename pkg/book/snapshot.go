package book

// =============================================================================
// 快照（只读拷贝）
// =============================================================================
//
// 给日志、批量汇总、测试使用。快照是值拷贝，不引用引擎内部结构。

// BookSnapshot 订单簿快照
type BookSnapshot struct {
	BestBid   Price
	BestAsk   Price
	BidDepth  Qty
	AskDepth  Qty
	BidLevels int // 非空档位数
	AskLevels int
	Bids      []Level // 前 N 档
	Asks      []Level
	Orders    int // 索引条目数
	LiveBids  int // 剩余量大于 0 的订单数
	LiveAsks  int

	Events        int64
	LastTimestamp int64
	LastSide      Side
	HasBid        bool
	HasAsk        bool
}

// Snapshot 生成快照，n 为每侧返回的档位数
func (e *Engine) Snapshot(n int) BookSnapshot {
	bids := e.ledgers[sideIdx(SideBuy)]
	asks := e.ledgers[sideIdx(SideSell)]

	snap := BookSnapshot{
		BidDepth:      e.depth[sideIdx(SideBuy)],
		AskDepth:      e.depth[sideIdx(SideSell)],
		BidLevels:     countNonEmpty(bids),
		AskLevels:     countNonEmpty(asks),
		Bids:          bids.TopN(n),
		Asks:          asks.TopN(n),
		Orders:        e.index.Len(),
		LiveBids:      e.index.LiveCount(SideBuy),
		LiveAsks:      e.index.LiveCount(SideSell),
		Events:        e.eventSeq,
		LastTimestamp: e.lastTimestamp,
		LastSide:      e.lastSide,
	}

	if lv, ok := bids.Best(); ok {
		snap.BestBid, snap.HasBid = lv.Price, true
	}
	if lv, ok := asks.Best(); ok {
		snap.BestAsk, snap.HasAsk = lv.Price, true
	}
	return snap
}

// Spread 价差，任一侧为空时 ok=false
func (s BookSnapshot) Spread() (Price, bool) {
	if !s.HasBid || !s.HasAsk {
		return 0, false
	}
	return s.BestAsk - s.BestBid, true
}

func countNonEmpty(l *Ledger) int {
	n := 0
	for lv := range l.BestToWorst() {
		if lv.Depth > 0 {
			n++
		}
	}
	return n
}
