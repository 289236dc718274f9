package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"max.com/pricer/pkg/config"
	"max.com/pricer/pkg/kafka"
	"max.com/pricer/pkg/nats"
	"max.com/pricer/pkg/report"
)

// openReporter 按配置组装输出端
// 任何一个输出端打不开时关闭已打开的并返回错误
func openReporter(ctx context.Context, cfg *config.Config, log *zap.Logger) (rep report.Reporter, err error) {
	var fanout report.Fanout
	defer func() {
		if err != nil {
			_ = fanout.Close()
		}
	}()

	for _, name := range cfg.Sinks {
		r, err := openSink(ctx, name, cfg, log)
		if err != nil {
			return nil, fmt.Errorf("sink %s: %w", name, err)
		}
		fanout = append(fanout, r)
		log.Info("sink ready", zap.String("sink", name))
	}

	rep = fanout
	if len(fanout) == 1 {
		rep = fanout[0]
	}
	if cfg.OnlyChanges {
		rep = report.NewChangeFilter(rep)
	}
	return rep, nil
}

func openSink(ctx context.Context, name string, cfg *config.Config, log *zap.Logger) (report.Reporter, error) {
	switch name {
	case "stdout":
		return report.NewStdoutReporter(os.Stdout), nil

	case "kafka":
		pc := kafka.DefaultProducerConfig(cfg.Kafka.Brokers)
		pc.Compression = cfg.Kafka.Compression
		p, err := kafka.NewProducer(pc, log)
		if err != nil {
			return nil, err
		}
		return report.NewKafkaReporter(p, cfg.Kafka.ReportTopic), nil

	case "nats":
		pub, err := nats.NewPublisher(cfg.Nats.URL, log)
		if err != nil {
			return nil, err
		}
		return report.NewNatsReporter(pub, cfg.Nats.ReportSubject), nil

	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("ping redis %s: %w", cfg.Redis.Addr, err)
		}
		return report.NewRedisReporter(client, cfg.Instrument, cfg.Redis.StreamMaxLen), nil

	case "mysql":
		db, err := gorm.Open(mysql.Open(cfg.MySQL.DSN), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Warn),
		})
		if err != nil {
			return nil, fmt.Errorf("open mysql: %w", err)
		}
		if err := report.Migrate(db); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return &dbSink{GormReporter: report.NewGormReporter(db, cfg.MySQL.BatchSize), db: db}, nil
	}
	return nil, fmt.Errorf("unknown sink %q", name)
}

// dbSink 刷新剩余记录后关闭连接
type dbSink struct {
	*report.GormReporter
	db *gorm.DB
}

func (s *dbSink) Close() error {
	err := s.GormReporter.Close()
	if sqlDB, dbErr := s.db.DB(); dbErr == nil {
		err = errors.Join(err, sqlDB.Close())
	}
	return err
}
