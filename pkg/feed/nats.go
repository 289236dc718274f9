package feed

import (
	"context"

	"go.uber.org/zap"

	"max.com/pricer/pkg/nats"
)

// NatsSource 从 NATS subject 读取行情，每条消息一行或多行文本
type NatsSource struct {
	*LineSource
	sub    *nats.Subscriber
	cancel context.CancelFunc
}

// NewNatsSource 连接并订阅
// 回调在 Close 之后不再阻塞在满的行缓冲上
func NewNatsSource(ctx context.Context, url, subject string, logger *zap.Logger) (*NatsSource, error) {
	ctx, cancel := context.WithCancel(ctx)
	lines := make(chan string, 1024)

	sub, err := nats.NewSubscriber(url, func(_ string, data []byte) error {
		return forwardLines(ctx, lines, string(data))
	}, logger)
	if err != nil {
		cancel()
		return nil, err
	}
	if err := sub.Subscribe(subject); err != nil {
		cancel()
		sub.Close()
		return nil, err
	}

	return &NatsSource{
		LineSource: NewLineSource(lines),
		sub:        sub,
		cancel:     cancel,
	}, nil
}

// Close 先解除回调阻塞再取消订阅
func (s *NatsSource) Close() error {
	s.cancel()
	return s.sub.Close()
}
