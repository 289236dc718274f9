package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"max.com/pricer/pkg/book"
	"max.com/pricer/pkg/config"
	"max.com/pricer/pkg/feed"
	"max.com/pricer/pkg/kafka"
	"max.com/pricer/pkg/metrics"
	"max.com/pricer/pkg/pricer"
	"max.com/pricer/pkg/report"
)

// runFlags run 子命令参数；只有显式给出的参数才覆盖配置
type runFlags struct {
	configPath  string
	instrument  string
	source      string
	in          string
	sinks       string
	onlyChanges bool
	prune       bool
	evict       bool
	paranoid    bool
	logLevel    string
	metricsAddr string
}

func (f *runFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.configPath, "config", "", "YAML config file")
	fs.StringVar(&f.instrument, "instrument", "", "instrument name stamped into reports")
	fs.StringVar(&f.source, "source", "", "feed source: stdin, file, tape, kafka, nats")
	fs.StringVar(&f.in, "in", "", "input path for file and tape sources")
	fs.StringVar(&f.sinks, "sinks", "", "comma separated sinks: stdout, kafka, nats, redis, mysql")
	fs.BoolVar(&f.onlyChanges, "only-changes", false, "print a line only when a side's value changes")
	fs.BoolVar(&f.prune, "prune", false, "remove price levels as soon as they reach zero")
	fs.BoolVar(&f.evict, "evict", false, "drop fully reduced orders from the index")
	fs.BoolVar(&f.paranoid, "paranoid", false, "check book invariants after every event")
	fs.StringVar(&f.logLevel, "log-level", "", "debug, info, warn, error")
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
}

// apply 把显式设置的参数写进配置
func (f *runFlags) apply(fs *flag.FlagSet, cfg *config.Config) {
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "instrument":
			cfg.Instrument = f.instrument
		case "source":
			cfg.Source.Type = f.source
		case "in":
			cfg.Source.Path = f.in
			if f.source == "" && cfg.Source.Type == "stdin" {
				cfg.Source.Type = "file"
			}
		case "sinks":
			cfg.Sinks = strings.Split(f.sinks, ",")
		case "only-changes":
			cfg.OnlyChanges = f.onlyChanges
		case "prune":
			cfg.Engine.PruneEmptyLevels = f.prune
		case "evict":
			cfg.Engine.EvictFilledOrders = f.evict
		case "paranoid":
			cfg.Engine.Paranoid = f.paranoid
		case "log-level":
			cfg.Log.Level = f.logLevel
		case "metrics-addr":
			cfg.Metrics.Addr = f.metricsAddr
		}
	})
}

// loadConfig 配置文件 + 环境变量 + 命令行 + 位置参数 target-size
func loadConfig(fs *flag.FlagSet, f *runFlags, args []string) (*config.Config, error) {
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	f.apply(fs, cfg)

	if fs.NArg() > 1 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args()[1:])
	}
	if fs.NArg() == 1 {
		n, err := strconv.ParseInt(fs.Arg(0), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("target size %q: %w", fs.Arg(0), err)
		}
		cfg.TargetSize = n
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runCmd(ctx context.Context, args []string) (err error) {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	var f runFlags
	f.register(fs)

	cfg, err := loadConfig(fs, &f, args)
	if err != nil {
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

	engine, err := book.NewEngine(book.EngineConfig{
		TargetSize:        cfg.TargetSize,
		PruneEmptyLevels:  cfg.Engine.PruneEmptyLevels,
		EvictFilledOrders: cfg.Engine.EvictFilledOrders,
	}, log)
	if err != nil {
		return err
	}

	src, closeSource, err := openSource(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, closeSource()) }()

	rep, err := openReporter(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, rep.Close()) }()

	var m *metrics.Metrics
	if cfg.Metrics.Addr != "" {
		m = metrics.New()
		m.Serve(ctx, cfg.Metrics.Addr, log)
	}

	r := &pricer.Runner{
		Engine:     engine,
		Source:     src,
		Reporter:   rep,
		Metrics:    m,
		Logger:     log,
		Instrument: cfg.Instrument,
		RunID:      runIDs.Next(),
		Paranoid:   cfg.Engine.Paranoid,
	}
	_, err = r.Run(ctx)
	return err
}

// openSource 按配置打开行情来源，返回关闭函数
func openSource(ctx context.Context, cfg *config.Config, log *zap.Logger) (feed.Source, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Source.Type {
	case "stdin":
		return feed.NewReaderSource(io.NopCloser(os.Stdin)), noop, nil

	case "file":
		file, err := os.Open(cfg.Source.Path)
		if err != nil {
			return nil, nil, err
		}
		src := feed.NewReaderSource(file)
		return src, src.Close, nil

	case "tape":
		src, err := feed.OpenTape(cfg.Source.Path)
		if err != nil {
			return nil, nil, err
		}
		return src, src.Close, nil

	case "kafka":
		cc := kafka.DefaultConsumerConfig(cfg.Kafka.Brokers, cfg.Kafka.GroupID, []string{cfg.Kafka.FeedTopic})
		src, err := feed.NewKafkaSource(ctx, cc, log)
		if err != nil {
			return nil, nil, err
		}
		return src, src.Close, nil

	case "nats":
		src, err := feed.NewNatsSource(ctx, cfg.Nats.URL, cfg.Nats.FeedSubject, log)
		if err != nil {
			return nil, nil, err
		}
		return src, src.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown source %q", cfg.Source.Type)
}
