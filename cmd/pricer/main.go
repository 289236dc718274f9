// 文件: cmd/pricer/main.go
// 订单簿价格冲击定价器
//
// 用法:
//   pricer [run] [flags] <target-size>      定价 (默认子命令)
//   pricer tape -in feed.txt -out feed.tape  文本行情转二进制磁带
//   pricer batch [flags] -target N file...   多个行情文件并行定价

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"max.com/pricer/pkg/config"
	"max.com/pricer/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	args := os.Args[1:]
	cmd := "run"
	if len(args) > 0 {
		switch args[0] {
		case "run", "tape", "batch":
			cmd, args = args[0], args[1:]
		case "-h", "-help", "--help", "help":
			usage()
			return
		}
	}

	var err error
	switch cmd {
	case "run":
		err = runCmd(ctx, args)
	case "tape":
		err = tapeCmd(ctx, args)
	case "batch":
		err = batchCmd(ctx, args)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "pricer:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `usage:
  pricer [run] [flags] <target-size>
  pricer tape -in feed.txt -out feed.tape
  pricer batch [flags] -target N file...

run "pricer <command> -h" for flags
`)
}

// newLogger 按配置创建日志，stdout 留给价格输出
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	return log.With(zap.String("instrument", cfg.Instrument)), nil
}
