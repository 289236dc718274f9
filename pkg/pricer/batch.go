// 文件: pkg/pricer/batch.go
// 批量模式：多个互不相关的行情流并行定价
// 每个流独占一个 Engine，流内仍是顺序处理

package pricer

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"max.com/pricer/pkg/book"
	"max.com/pricer/pkg/feed"
	"max.com/pricer/pkg/report"
)

// Job 一个批量任务
// Open 在工作 goroutine 里调用；返回的 Source / Reporter 实现 io.Closer 时由 RunBatch 关闭
type Job struct {
	Name string
	Open func() (feed.Source, report.Reporter, error)
}

// BatchResult 单个任务结果
type BatchResult struct {
	Name    string
	Summary Summary
	Err     error
}

// BatchConfig 批量配置
type BatchConfig struct {
	Engine     book.EngineConfig
	Workers    int
	Instrument string
	RunIDs     *report.RunIDGenerator // 可选
	Logger     *zap.Logger
}

// RunBatch 并行执行全部任务，结果顺序与 jobs 一致
// 单个任务失败不影响其他任务，错误记录在各自的 BatchResult 里
func RunBatch(ctx context.Context, jobs []Job, cfg BatchConfig) []BatchResult {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	workers := max(cfg.Workers, 1)

	type indexed struct {
		i   int
		res BatchResult
	}

	p := pool.NewWithResults[indexed]().WithMaxGoroutines(workers).WithContext(ctx)
	for i, job := range jobs {
		p.Go(func(ctx context.Context) (indexed, error) {
			s, err := runJob(ctx, job, cfg, log.With(zap.String("job", job.Name)))
			return indexed{i: i, res: BatchResult{Name: job.Name, Summary: s, Err: err}}, nil
		})
	}

	// 任务函数不返回错误
	done, _ := p.Wait()
	slices.SortFunc(done, func(a, b indexed) int { return a.i - b.i })

	results := make([]BatchResult, len(done))
	for i, d := range done {
		results[i] = d.res
	}
	return results
}

func runJob(ctx context.Context, job Job, cfg BatchConfig, log *zap.Logger) (s Summary, err error) {
	src, rep, err := job.Open()
	if err != nil {
		return Summary{}, fmt.Errorf("open %s: %w", job.Name, err)
	}
	defer func() {
		err = errors.Join(err, closeIfCloser(src), rep.Close())
	}()

	engine, err := book.NewEngine(cfg.Engine, log)
	if err != nil {
		return Summary{}, err
	}

	var runID int64
	if cfg.RunIDs != nil {
		runID = cfg.RunIDs.Next()
	}

	r := &Runner{
		Engine:     engine,
		Source:     src,
		Reporter:   rep,
		Logger:     log,
		Instrument: cfg.Instrument,
		RunID:      runID,
	}
	return r.Run(ctx)
}

func closeIfCloser(v any) error {
	if c, ok := v.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
