package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"os"

	"go.uber.org/zap"

	"max.com/pricer/pkg/config"
	"max.com/pricer/pkg/feed"
)

// tapeCmd 文本行情 → 二进制磁带
func tapeCmd(ctx context.Context, args []string) (err error) {
	fs := flag.NewFlagSet("tape", flag.ContinueOnError)
	in := fs.String("in", "", "text feed (default stdin)")
	out := fs.String("out", "", "tape file to write")
	logLevel := fs.String("log-level", "info", "debug, info, warn, error")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *out == "" {
		return errors.New("tape: -out is required")
	}

	cfg := config.Default()
	cfg.Log.Level = *logLevel
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	var r io.Reader = os.Stdin
	if *in != "" {
		file, err := os.Open(*in)
		if err != nil {
			return err
		}
		defer file.Close()
		r = file
	}

	file, err := os.Create(*out)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, file.Close()) }()

	n, err := feed.Record(ctx, feed.NewReaderSource(r), file)
	if err != nil {
		return err
	}
	log.Info("tape written", zap.String("path", *out), zap.Int64("entries", n))
	return nil
}
