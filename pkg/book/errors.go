package book

import (
	"errors"
	"fmt"
)

// =============================================================================
// 错误定义
// =============================================================================
//
// 协议错误 (UnknownOrder / NegativeDepth / DuplicateOrder / MalformedCommand)
// 都是致命的：索引或价格档位一旦不一致，后续所有报告都不可信。
// 流动性不足 不是错误，而是 Outcome.Available=false。

var (
	ErrUnknownOrder          = errors.New("unknown order")
	ErrNegativeDepth         = errors.New("negative depth")
	ErrDuplicateOrder        = errors.New("duplicate live order")
	ErrMalformedCommand      = errors.New("malformed command")
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	ErrHalted                = errors.New("engine halted after protocol violation")
)

// ProtocolError 协议错误，带上事件序号和订单 ID
type ProtocolError struct {
	EventIndex int64
	OrderID    OrderID
	Kind       CommandKind
	Err        error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol violation at event %d (%s order %d): %v",
		e.EventIndex, e.Kind, e.OrderID, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// IsProtocolViolation 是否是协议错误
func IsProtocolViolation(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}
