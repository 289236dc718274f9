// 文件: pkg/report/record.go
// 价格冲击结果的输出格式
//
// 文本行：<timestamp> <B|S> <amount>  或  <timestamp> <B|S> NA
// 字母是扫单动作：买盘被修改时报告卖出所得 (S)，卖盘被修改时报告买入成本 (B)。

package report

import (
	"context"
	"strconv"

	"github.com/shopspring/decimal"

	"max.com/pricer/pkg/book"
)

// NotAvailable 流动性不足时的输出
const NotAvailable = "NA"

// Record 一条待输出的结果
type Record struct {
	RunID      int64
	Instrument string
	Outcome    book.Outcome
	Precision  int // 价格小数位数，金额按此位数输出
}

// Action 扫单动作
func (r Record) Action() string {
	if r.Outcome.Side == book.SideBuy {
		return "S"
	}
	return "B"
}

// Value 金额文本，恰好 Precision 位小数；不可用时为 NA
func (r Record) Value() string {
	if !r.Outcome.Available {
		return NotAvailable
	}
	return FormatAmount(r.Outcome.Amount, r.Precision)
}

// Line 文本行
func (r Record) Line() string {
	buf := make([]byte, 0, 48)
	buf = strconv.AppendInt(buf, r.Outcome.Timestamp, 10)
	buf = append(buf, ' ')
	buf = append(buf, r.Action()...)
	buf = append(buf, ' ')
	buf = append(buf, r.Value()...)
	return string(buf)
}

// FormatAmount 定点整数 → 十进制文本
func FormatAmount(a book.Amount, precision int) string {
	return decimal.NewFromBigInt(a.BigInt(), -int32(precision)).StringFixed(int32(precision))
}

// Message 序列化到 Kafka / NATS 的结构
type Message struct {
	RunID      int64  `json:"run_id,string"`
	Instrument string `json:"instrument"`
	Event      int64  `json:"event"`
	Timestamp  int64  `json:"timestamp"`
	Action     string `json:"action"`
	Available  bool   `json:"available"`
	Amount     string `json:"amount,omitempty"`
	Line       string `json:"line"`
}

// Message 转换为消息结构
func (r Record) Message() Message {
	m := Message{
		RunID:      r.RunID,
		Instrument: r.Instrument,
		Event:      r.Outcome.EventIndex,
		Timestamp:  r.Outcome.Timestamp,
		Action:     r.Action(),
		Available:  r.Outcome.Available,
		Line:       r.Line(),
	}
	if r.Outcome.Available {
		m.Amount = r.Value()
	}
	return m
}

// =============================================================================
// Reporter 接口 - 所有输出端需实现
// =============================================================================

// Reporter 结果输出端
// Report 按事件顺序被调用，返回错误时整个运行终止
type Reporter interface {
	Report(ctx context.Context, rec Record) error
	Close() error
}
