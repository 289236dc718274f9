package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"max.com/pricer/pkg/book"
	"max.com/pricer/pkg/config"
	"max.com/pricer/pkg/feed"
	"max.com/pricer/pkg/pricer"
	"max.com/pricer/pkg/report"
)

// batchCmd 每个文件一个独立订单簿，输出写到 <file>.out
func batchCmd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("batch", flag.ContinueOnError)
	var f runFlags
	f.register(fs)
	target := fs.Int64("target", 0, "target size")
	workers := fs.Int("workers", 0, "parallel books (default from config)")

	if err := fs.Parse(args); err != nil {
		return err
	}
	files := fs.Args()
	if len(files) == 0 {
		return errors.New("batch: no input files")
	}

	cfg, err := config.Load(f.configPath)
	if err != nil {
		return err
	}
	f.apply(fs, cfg)
	if *target > 0 {
		cfg.TargetSize = *target
	}
	if *workers > 0 {
		cfg.Batch.Workers = *workers
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	runIDs, err := report.NewRunIDGenerator(cfg.NodeID)
	if err != nil {
		return err
	}

	jobs := make([]pricer.Job, len(files))
	for i, path := range files {
		jobs[i] = pricer.Job{Name: path, Open: openBatchFile(path, cfg.OnlyChanges)}
	}

	results := pricer.RunBatch(ctx, jobs, pricer.BatchConfig{
		Engine: book.EngineConfig{
			TargetSize:        cfg.TargetSize,
			PruneEmptyLevels:  cfg.Engine.PruneEmptyLevels,
			EvictFilledOrders: cfg.Engine.EvictFilledOrders,
		},
		Workers:    cfg.Batch.Workers,
		Instrument: cfg.Instrument,
		RunIDs:     runIDs,
		Logger:     log,
	})

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
			log.Error("job failed", zap.String("job", res.Name), zap.Error(res.Err))
			continue
		}
		log.Info("job done",
			zap.String("job", res.Name),
			zap.Int64("events", res.Summary.Events),
			zap.Int64("reports", res.Summary.Reports),
			zap.Duration("elapsed", res.Summary.Elapsed),
		)
	}
	if failed > 0 {
		return fmt.Errorf("batch: %d of %d jobs failed", failed, len(results))
	}
	return nil
}

// openBatchFile .tape 按磁带读取，其余按文本
func openBatchFile(path string, onlyChanges bool) func() (feed.Source, report.Reporter, error) {
	return func() (feed.Source, report.Reporter, error) {
		var src feed.Source
		if filepath.Ext(path) == ".tape" {
			tape, err := feed.OpenTape(path)
			if err != nil {
				return nil, nil, err
			}
			src = tape
		} else {
			file, err := os.Open(path)
			if err != nil {
				return nil, nil, err
			}
			src = feed.NewReaderSource(file)
		}

		out, err := os.Create(path + ".out")
		if err != nil {
			if c, ok := src.(interface{ Close() error }); ok {
				c.Close()
			}
			return nil, nil, err
		}

		var rep report.Reporter = report.NewWriterReporter(out)
		if onlyChanges {
			rep = report.NewChangeFilter(rep)
		}
		return src, rep, nil
	}
}
