package feed

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"max.com/pricer/pkg/kafka"
)

// KafkaSource 从 Kafka topic 读取行情
// 每条消息的 value 是一行或多行文本；topic 必须只有一个分区
type KafkaSource struct {
	*LineSource
	consumer *kafka.Consumer
}

// NewKafkaSource 创建并启动消费者
func NewKafkaSource(ctx context.Context, cfg kafka.ConsumerConfig, logger *zap.Logger) (*KafkaSource, error) {
	lines := make(chan string, 1024)

	consumer, err := kafka.NewConsumer(cfg, func(ctx context.Context, d kafka.Delivery) error {
		return forwardLines(ctx, lines, string(d.Value))
	}, logger)
	if err != nil {
		return nil, err
	}
	consumer.Start(ctx)

	return &KafkaSource{
		LineSource: NewLineSource(lines),
		consumer:   consumer,
	}, nil
}

// Close 停止消费
func (s *KafkaSource) Close() error {
	return s.consumer.Stop()
}

// forwardLines 按顺序投递，消费方跟不上时阻塞
func forwardLines(ctx context.Context, out chan<- string, payload string) error {
	for line := range strings.SplitSeq(payload, "\n") {
		select {
		case out <- line:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
