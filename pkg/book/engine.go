package book

import (
	"errors"
	"fmt"
	"iter"
	"math"

	"go.uber.org/zap"
)

// =============================================================================
// 订单簿引擎 (Book Engine)
// =============================================================================
//
// 每个事件的状态机：
//
//   Idle → apply(event) → Updated → thresholdCheck → {Reported | NA} → Idle
//
//   ┌──────────┐     ┌────────────┐     ┌─────────────┐     ┌─────────┐
//   │ Command  │ ──► │ OrderIndex │ ──► │ Ledger(side)│ ──► │  Sweep  │ ──► Outcome
//   └──────────┘     └────────────┘     └─────────────┘     └─────────┘
//
// 单线程顺序处理：引擎独占 BookState，内部无锁。
// 每个事件恰好产生一个 Outcome，只评估被修改的那一侧。

// EngineConfig 引擎配置
type EngineConfig struct {
	TargetSize        Qty  // 每次计算要吃掉的数量，整个会话不变
	PruneEmptyLevels  bool // 档位数量归零时立即删除
	EvictFilledOrders bool // 订单剩余量归零时从索引删除
}

// DefaultEngineConfig 默认配置：保留零数量档位和已完成订单
func DefaultEngineConfig(targetSize Qty) EngineConfig {
	return EngineConfig{
		TargetSize: targetSize,
	}
}

// Validate 校验配置
func (c EngineConfig) Validate() error {
	if c.TargetSize <= 0 {
		return fmt.Errorf("target size must be positive, got %d", c.TargetSize)
	}
	return nil
}

// OutcomeHandler 结果回调，同步调用，顺序与事件一致
type OutcomeHandler func(Outcome)

// EngineStats 引擎统计
type EngineStats struct {
	Events       int64 // 已处理事件数（含失败的那一个）
	Adds         int64
	Reduces      int64
	Reports      int64 // 有金额的结果
	NotAvailable int64 // 流动性不足的结果
	Violations   int64
}

// Engine 订单簿引擎
// 【核心设计】由单个 goroutine 独占访问，无需锁
type Engine struct {
	config EngineConfig

	index   *OrderIndex
	ledgers [2]*Ledger // [0]=买盘 [1]=卖盘
	depth   [2]Qty     // 每一侧总数量

	lastSide      Side
	lastTimestamp int64
	eventSeq      int64

	// 发生协议错误后拒绝后续事件
	halted error

	handlers []OutcomeHandler
	stats    EngineStats
	logger   *zap.Logger
}

// NewEngine 创建引擎
func NewEngine(config EngineConfig, logger *zap.Logger) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Engine{
		config: config,
		index:  NewOrderIndex(),
		ledgers: [2]*Ledger{
			NewLedger(SideBuy, config.PruneEmptyLevels),
			NewLedger(SideSell, config.PruneEmptyLevels),
		},
		logger: logger,
	}, nil
}

// OnOutcome 注册结果回调
// 需要在开始处理事件之前注册
func (e *Engine) OnOutcome(handler OutcomeHandler) {
	e.handlers = append(e.handlers, handler)
}

// =============================================================================
// 事件处理
// =============================================================================

// Apply 按命令类型分发
func (e *Engine) Apply(cmd Command) (Outcome, error) {
	switch cmd.Kind {
	case CommandAdd:
		return e.ApplyAdd(cmd.Timestamp, cmd.ID, cmd.Side, cmd.Price, cmd.Qty)
	case CommandReduce:
		return e.ApplyReduce(cmd.Timestamp, cmd.ID, cmd.Qty)
	}

	if e.halted != nil {
		return Outcome{}, e.haltedErr()
	}
	e.eventSeq++
	return e.fail(cmd.Kind, cmd.ID, fmt.Errorf("command kind %d: %w", cmd.Kind, ErrMalformedCommand))
}

// ApplyAdd 新增挂单
func (e *Engine) ApplyAdd(ts int64, id OrderID, side Side, price Price, qty Qty) (Outcome, error) {
	if e.halted != nil {
		return Outcome{}, e.haltedErr()
	}
	e.eventSeq++

	switch {
	case !side.Valid():
		return e.fail(CommandAdd, id, fmt.Errorf("side %d: %w", side, ErrMalformedCommand))
	case price < 0:
		return e.fail(CommandAdd, id, fmt.Errorf("price %d: %w", price, ErrMalformedCommand))
	case qty <= 0:
		return e.fail(CommandAdd, id, fmt.Errorf("quantity %d: %w", qty, ErrMalformedCommand))
	}

	// 已完成（剩余为 0）的 ID 允许复用；仍有剩余量的 ID 再次 Add 会让旧数量无法追溯
	if entry, err := e.index.Get(id); err == nil && entry.Remaining > 0 {
		return e.fail(CommandAdd, id, fmt.Errorf("order %d still has %d resting: %w", id, entry.Remaining, ErrDuplicateOrder))
	}

	// 总量是 int64，溢出会变成负数
	i := sideIdx(side)
	if qty > math.MaxInt64-e.depth[i] {
		return e.fail(CommandAdd, id, fmt.Errorf("%s depth %d, add %d overflows: %w",
			side, e.depth[i], qty, ErrMalformedCommand))
	}

	// 1. 写索引
	e.index.Put(id, side, price, qty)

	// 2. 更新价格档位和总量
	if err := e.ledgers[i].Upsert(price, qty); err != nil {
		return e.fail(CommandAdd, id, err)
	}
	e.depth[i] += qty
	e.stats.Adds++

	// 3. 计算并输出
	return e.touch(side, ts)
}

// ApplyReduce 减少挂单数量（部分成交 / 撤单）
func (e *Engine) ApplyReduce(ts int64, id OrderID, qty Qty) (Outcome, error) {
	if e.halted != nil {
		return Outcome{}, e.haltedErr()
	}
	e.eventSeq++

	if qty <= 0 {
		return e.fail(CommandReduce, id, fmt.Errorf("quantity %d: %w", qty, ErrMalformedCommand))
	}

	// 1. 查索引
	entry, err := e.index.Get(id)
	if err != nil {
		return e.fail(CommandReduce, id, err)
	}
	if qty > entry.Remaining {
		return e.fail(CommandReduce, id, fmt.Errorf("order %d has %d resting, reduce %d: %w",
			id, entry.Remaining, qty, ErrNegativeDepth))
	}

	// 2. 先校验总量再改档位，失败时不留下半更新的状态
	i := sideIdx(entry.Side)
	if e.depth[i] < qty {
		return e.fail(CommandReduce, id, fmt.Errorf("%s depth %d, reduce %d: %w",
			entry.Side, e.depth[i], qty, ErrNegativeDepth))
	}
	if err := e.ledgers[i].Upsert(entry.Price, -qty); err != nil {
		return e.fail(CommandReduce, id, err)
	}
	e.depth[i] -= qty

	// 3. 更新订单剩余量
	remaining := entry.Remaining - qty
	if remaining == 0 && e.config.EvictFilledOrders {
		e.index.Remove(id)
	} else {
		e.index.setRemaining(id, remaining)
	}
	e.stats.Reduces++

	return e.touch(entry.Side, ts)
}

// touch 更新游标并计算被修改一侧的结果
func (e *Engine) touch(side Side, ts int64) (Outcome, error) {
	e.lastSide = side
	e.lastTimestamp = ts

	out, err := e.maybeReport(side)
	if err != nil {
		e.halted = err
		e.stats.Violations++
		e.logger.Error("book inconsistent", zap.Int64("event", e.eventSeq), zap.Error(err))
		return Outcome{}, err
	}

	for _, h := range e.handlers {
		h(out)
	}
	return out, nil
}

// maybeReport 被修改一侧总量 >= targetSize 时扫单，否则 NA
func (e *Engine) maybeReport(side Side) (Outcome, error) {
	i := sideIdx(side)
	e.stats.Events = e.eventSeq

	out := Outcome{
		EventIndex: e.eventSeq,
		Timestamp:  e.lastTimestamp,
		Side:       side,
	}

	if e.depth[i] < e.config.TargetSize {
		e.stats.NotAvailable++
		return out, nil
	}

	amount, err := Sweep(e.ledgers[i].BestToWorst(), e.config.TargetSize)
	if err != nil {
		// 总量检查通过但扫单不够，说明账本和总量已经不一致
		return out, fmt.Errorf("event %d: %s depth %d passed threshold: %w", e.eventSeq, side, e.depth[i], err)
	}

	out.Amount = amount
	out.Available = true
	e.stats.Reports++
	return out, nil
}

// fail 记录协议错误并停机
func (e *Engine) fail(kind CommandKind, id OrderID, err error) (Outcome, error) {
	pe := &ProtocolError{
		EventIndex: e.eventSeq,
		OrderID:    id,
		Kind:       kind,
		Err:        err,
	}
	e.halted = pe
	e.stats.Events = e.eventSeq
	e.stats.Violations++
	e.logger.Error("protocol violation",
		zap.Int64("event", e.eventSeq),
		zap.Uint64("order_id", uint64(id)),
		zap.Stringer("kind", kind),
		zap.Error(err),
	)
	return Outcome{}, pe
}

func (e *Engine) haltedErr() error {
	return fmt.Errorf("%w: %w", ErrHalted, e.halted)
}

// =============================================================================
// 查询方法
// =============================================================================

// TargetSize 目标数量
func (e *Engine) TargetSize() Qty {
	return e.config.TargetSize
}

// TotalDepth 某一侧总数量
func (e *Engine) TotalDepth(side Side) Qty {
	return e.depth[sideIdx(side)]
}

// Levels 某一侧档位只读视图，最优价在前
func (e *Engine) Levels(side Side) iter.Seq[Level] {
	return e.ledgers[sideIdx(side)].BestToWorst()
}

// LevelCount 某一侧存储的档位数（含零数量档位）
func (e *Engine) LevelCount(side Side) int {
	return e.ledgers[sideIdx(side)].Len()
}

// LevelDepth 某一侧某价位数量
func (e *Engine) LevelDepth(side Side, price Price) Qty {
	return e.ledgers[sideIdx(side)].Depth(price)
}

// Lookup 查询订单索引
func (e *Engine) Lookup(id OrderID) (IndexEntry, error) {
	return e.index.Get(id)
}

// LastTouched 最近一次被修改的方向和时间戳
func (e *Engine) LastTouched() (Side, int64) {
	return e.lastSide, e.lastTimestamp
}

// Halted 是否已因错误停机
func (e *Engine) Halted() bool {
	return e.halted != nil
}

// Stats 获取统计信息
func (e *Engine) Stats() EngineStats {
	return e.stats
}

// CheckInvariants 一致性校验
//  1. 每一侧 totalDepth == Σ level.depth
//  2. 每一侧 totalDepth == Σ 索引中订单剩余量
//  3. 账本严格有序、无重复价格
func (e *Engine) CheckInvariants() error {
	var errs []error
	for _, side := range []Side{SideBuy, SideSell} {
		i := sideIdx(side)
		if sum := e.ledgers[i].sum(); sum != e.depth[i] {
			errs = append(errs, fmt.Errorf("%s: total depth %d != level sum %d", side, e.depth[i], sum))
		}
		if live := e.index.liveDepth(side); live != e.depth[i] {
			errs = append(errs, fmt.Errorf("%s: total depth %d != indexed remaining %d", side, e.depth[i], live))
		}
		if !e.ledgers[i].sorted() {
			errs = append(errs, fmt.Errorf("%s: ledger not strictly sorted", side))
		}
	}
	return errors.Join(errs...)
}
