package book

import (
	"fmt"
	"iter"
)

// =============================================================================
// 扫单计算 (Sweep)
// =============================================================================
//
// 从最优价开始逐档"吃"掉 targetSize：
//   整档吃完：amount += price * depth
//   最后一档部分吃：amount += price * remaining，停止
//
// 只读投影，不修改账本。无状态，调用结束后不持有任何引用。

// Sweep 计算吃掉 targetSize 的总金额
// 档位耗尽仍未满足返回 ErrInsufficientLiquidity
func Sweep(levels iter.Seq[Level], targetSize Qty) (Amount, error) {
	var amount Amount
	remaining := targetSize

	for lv := range levels {
		if remaining <= 0 {
			break
		}
		if lv.Depth <= 0 {
			continue // 保留的零数量档位
		}
		if lv.Depth <= remaining {
			amount = amount.MulAdd(lv.Price, lv.Depth)
			remaining -= lv.Depth
			continue
		}
		amount = amount.MulAdd(lv.Price, remaining)
		remaining = 0
	}

	if remaining > 0 {
		return Amount{}, fmt.Errorf("sweep %d: %d unfilled: %w", targetSize, remaining, ErrInsufficientLiquidity)
	}
	return amount, nil
}
