// 文件: pkg/pricer/runner.go
// 单个行情流的定价循环
//
//   Source.Next → Engine.Apply → Reporter.Report → Source.Next ...
//
// 一个 goroutine 顺序执行：本事件的结果输出完成后才读下一条。
// 解码错误、协议错误、输出错误都会立即终止，出错的事件不产生输出。

package pricer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"max.com/pricer/pkg/book"
	"max.com/pricer/pkg/feed"
	"max.com/pricer/pkg/metrics"
	"max.com/pricer/pkg/report"
)

// 终止原因，用作指标标签
const (
	reasonDecode    = "decode"
	reasonProtocol  = "protocol"
	reasonInvariant = "invariant"
	reasonReport    = "report"
)

// Runner 定价循环
type Runner struct {
	Engine   *book.Engine
	Source   feed.Source
	Reporter report.Reporter

	Metrics *metrics.Metrics // 可选
	Logger  *zap.Logger      // 可选

	Instrument string
	RunID      int64
	Paranoid   bool // 每个事件后做一致性校验
}

// Summary 运行汇总
type Summary struct {
	RunID        int64
	Events       int64 // 成功处理的事件数
	Reports      int64 // 有金额的结果数
	NotAvailable int64
	Elapsed      time.Duration
	Snapshot     book.BookSnapshot
}

// Run 处理到流结束 (io.EOF)、ctx 取消或第一个错误
// ctx 取消时返回 ctx.Err()，Summary 仍然有效
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	if r.Engine == nil || r.Source == nil || r.Reporter == nil {
		return Summary{}, errors.New("runner: engine, source and reporter are required")
	}
	log := r.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.Int64("run_id", r.RunID), zap.String("instrument", r.Instrument))

	start := time.Now()
	summary := func() Summary {
		stats := r.Engine.Stats()
		return Summary{
			RunID:        r.RunID,
			Events:       stats.Reports + stats.NotAvailable,
			Reports:      stats.Reports,
			NotAvailable: stats.NotAvailable,
			Elapsed:      time.Since(start),
			Snapshot:     r.Engine.Snapshot(5),
		}
	}

	log.Info("run started", zap.Int64("target_size", r.Engine.TargetSize()))

	for {
		cmd, err := r.Source.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				log.Info("run cancelled", zap.Error(err))
				return summary(), err
			}
			r.fatal(log, reasonDecode, err)
			return summary(), fmt.Errorf("decode: %w", err)
		}

		t0 := time.Now()
		out, err := r.Engine.Apply(cmd)
		if err != nil {
			r.fatal(log, reasonProtocol, err)
			return summary(), err
		}
		elapsed := time.Since(t0)

		if r.Paranoid {
			if err := r.Engine.CheckInvariants(); err != nil {
				r.fatal(log, reasonInvariant, err)
				return summary(), fmt.Errorf("event %d: %w", out.EventIndex, err)
			}
		}

		precision, _ := r.Source.Precision()
		rec := report.Record{
			RunID:      r.RunID,
			Instrument: r.Instrument,
			Outcome:    out,
			Precision:  precision,
		}
		if err := r.Reporter.Report(ctx, rec); err != nil {
			r.fatal(log, reasonReport, err)
			return summary(), fmt.Errorf("report event %d: %w", out.EventIndex, err)
		}

		if r.Metrics != nil {
			r.Metrics.ObserveEvent(cmd, out, elapsed)
			r.Metrics.ObserveBook(r.Engine)
		}
	}

	s := summary()
	log.Info("run finished",
		zap.Int64("events", s.Events),
		zap.Int64("reports", s.Reports),
		zap.Int64("not_available", s.NotAvailable),
		zap.Duration("elapsed", s.Elapsed),
		zap.Int("orders", s.Snapshot.Orders),
	)
	return s, nil
}

func (r *Runner) fatal(log *zap.Logger, reason string, err error) {
	if r.Metrics != nil {
		r.Metrics.ObserveFatal(reason)
	}
	log.Error("run aborted", zap.String("reason", reason), zap.Error(err))
}
