package book

import "fmt"

// =============================================================================
// 基础类型
// =============================================================================

// OrderID 订单标识
// 外部 feed 若使用字符串 ID，由解码器哈希成固定宽度整数
type OrderID uint64

// Price 定点数价格 = 十进制价格 * 10^d
// d 由 feed 在会话开始时确定，整个会话不变
type Price int64

// Qty 数量（股数）
type Qty = int64

// Side 买卖方向
// 用 int8 而不是 string：内存小、比较快
type Side int8

const (
	SideBuy  Side = 1  // 买盘 (bid)
	SideSell Side = -1 // 卖盘 (ask)，用 -1 方便取对手方向
)

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "BUY"
	case SideSell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// Valid 是否是合法方向
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// sideIdx 把方向映射成数组下标：Buy=0, Sell=1
func sideIdx(s Side) int {
	if s == SideBuy {
		return 0
	}
	return 1
}

// =============================================================================
// 命令
// =============================================================================

// CommandKind 命令类型
type CommandKind uint8

const (
	CommandAdd    CommandKind = 1 // 新增挂单
	CommandReduce CommandKind = 2 // 减少挂单数量
)

func (k CommandKind) String() string {
	switch k {
	case CommandAdd:
		return "ADD"
	case CommandReduce:
		return "REDUCE"
	default:
		return "UNKNOWN"
	}
}

// Command 引擎输入命令
// Reduce 命令只使用 Timestamp、ID、Qty 三个字段
type Command struct {
	Timestamp int64
	ID        OrderID
	Price     Price
	Qty       Qty

	Kind CommandKind
	Side Side
}

// NewAdd 构造 Add 命令
func NewAdd(ts int64, id OrderID, side Side, price Price, qty Qty) Command {
	return Command{Kind: CommandAdd, Timestamp: ts, ID: id, Side: side, Price: price, Qty: qty}
}

// NewReduce 构造 Reduce 命令
func NewReduce(ts int64, id OrderID, qty Qty) Command {
	return Command{Kind: CommandReduce, Timestamp: ts, ID: id, Qty: qty}
}

func (c Command) String() string {
	if c.Kind == CommandReduce {
		return fmt.Sprintf("Reduce{ts:%d, id:%d, qty:%d}", c.Timestamp, c.ID, c.Qty)
	}
	return fmt.Sprintf("Add{ts:%d, id:%d, %s %d@%d}", c.Timestamp, c.ID, c.Side, c.Qty, c.Price)
}

// =============================================================================
// 输出
// =============================================================================

// Outcome 每个事件产生一个结果
// Available=false 表示流动性不足 (NA)，这是正常结果，不是错误
type Outcome struct {
	EventIndex int64  // 事件序号，从 1 开始
	Timestamp  int64  // 事件时间戳
	Amount     Amount // 吃掉 targetSize 的总金额（定点数，与价格同精度）
	Side       Side   // 本次被修改的一侧
	Available  bool
}

func (o Outcome) String() string {
	if !o.Available {
		return fmt.Sprintf("Outcome{#%d ts:%d %s NA}", o.EventIndex, o.Timestamp, o.Side)
	}
	return fmt.Sprintf("Outcome{#%d ts:%d %s %s}", o.EventIndex, o.Timestamp, o.Side, o.Amount)
}
