// 文件: pkg/nats/publisher.go
// NATS 发布者
// 轻量级替代 Kafka，适合本地开发

package nats

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Publisher NATS 发布者
type Publisher struct {
	conn   *nats.Conn
	logger *zap.Logger
}

// Connect 连接 NATS，断线自动重连并记日志
func Connect(url, name string, logger *zap.Logger) (*nats.Conn, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return conn, nil
}

// NewPublisher 创建发布者
func NewPublisher(url string, logger *zap.Logger) (*Publisher, error) {
	conn, err := Connect(url, "pricer-publisher", logger)
	if err != nil {
		return nil, err
	}
	return NewPublisherWithConn(conn, logger), nil
}

// NewPublisherWithConn 使用已有连接
func NewPublisherWithConn(conn *nats.Conn, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{conn: conn, logger: logger.Named("nats.publisher")}
}

// Publish 发布 JSON 消息
func (p *Publisher) Publish(subject string, data any) error {
	bytes, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return p.conn.Publish(subject, bytes)
}

// PublishRaw 发布原始消息
func (p *Publisher) PublishRaw(subject string, data []byte) error {
	return p.conn.Publish(subject, data)
}

// Flush 等待服务器确认已收到的消息
func (p *Publisher) Flush(timeout time.Duration) error {
	return p.conn.FlushTimeout(timeout)
}

// Close 排空后关闭连接
func (p *Publisher) Close() error {
	if err := p.conn.Drain(); err != nil {
		p.logger.Warn("drain failed", zap.Error(err))
		p.conn.Close()
		return err
	}
	return nil
}
