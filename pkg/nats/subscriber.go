// 文件: pkg/nats/subscriber.go
// NATS 订阅者

package nats

import (
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// MessageHandler 消息处理函数
type MessageHandler func(subject string, data []byte) error

// Subscriber NATS 订阅者
// 同一订阅的回调在单个 goroutine 里按到达顺序执行
type Subscriber struct {
	conn    *nats.Conn
	subs    []*nats.Subscription
	handler MessageHandler
	logger  *zap.Logger
}

// NewSubscriber 创建订阅者
func NewSubscriber(url string, handler MessageHandler, logger *zap.Logger) (*Subscriber, error) {
	conn, err := Connect(url, "pricer-subscriber", logger)
	if err != nil {
		return nil, err
	}
	return NewSubscriberWithConn(conn, handler, logger), nil
}

// NewSubscriberWithConn 使用已有连接
func NewSubscriberWithConn(conn *nats.Conn, handler MessageHandler, logger *zap.Logger) *Subscriber {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Subscriber{
		conn:    conn,
		handler: handler,
		logger:  logger.Named("nats.subscriber"),
	}
}

// Subscribe 订阅主题
func (s *Subscriber) Subscribe(subjects ...string) error {
	for _, subject := range subjects {
		sub, err := s.conn.Subscribe(subject, s.dispatch)
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", subject, err)
		}
		// 行情不能丢：不限制待处理消息数
		if err := sub.SetPendingLimits(-1, -1); err != nil {
			return fmt.Errorf("pending limits %s: %w", subject, err)
		}
		s.subs = append(s.subs, sub)
	}
	return nil
}

func (s *Subscriber) dispatch(msg *nats.Msg) {
	if err := s.handler(msg.Subject, msg.Data); err != nil {
		s.logger.Error("handle error", zap.String("subject", msg.Subject), zap.Error(err))
	}
}

// Close 取消订阅并关闭连接
func (s *Subscriber) Close() error {
	for _, sub := range s.subs {
		if err := sub.Unsubscribe(); err != nil {
			s.logger.Warn("unsubscribe failed", zap.String("subject", sub.Subject), zap.Error(err))
		}
	}
	s.conn.Close()
	return nil
}
