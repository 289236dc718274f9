package report

import (
	"context"
	"errors"
)

// =============================================================================
// ChangeFilter - 只输出变化
// =============================================================================

// ChangeFilter 只在某一侧的输出值与上一次转发的不同时才转发
// 两侧初始值都是 NA
type ChangeFilter struct {
	next Reporter
	last map[string]string // action -> value
}

// NewChangeFilter 包装下游
func NewChangeFilter(next Reporter) *ChangeFilter {
	return &ChangeFilter{
		next: next,
		last: map[string]string{"B": NotAvailable, "S": NotAvailable},
	}
}

// Report 实现 Reporter
func (f *ChangeFilter) Report(ctx context.Context, rec Record) error {
	action, value := rec.Action(), rec.Value()
	if f.last[action] == value {
		return nil
	}
	if err := f.next.Report(ctx, rec); err != nil {
		return err
	}
	f.last[action] = value
	return nil
}

// Close 关闭下游
func (f *ChangeFilter) Close() error {
	return f.next.Close()
}

// =============================================================================
// Fanout - 多个输出端
// =============================================================================

// Fanout 依次转发到每个输出端，第一个错误立即返回
type Fanout []Reporter

// Report 实现 Reporter
func (f Fanout) Report(ctx context.Context, rec Record) error {
	for _, r := range f {
		if err := r.Report(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// Close 关闭全部，汇总错误
func (f Fanout) Close() error {
	var errs []error
	for _, r := range f {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
