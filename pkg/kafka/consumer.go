// 文件: pkg/kafka/consumer.go
// Kafka 消费者，用于读取行情
//
// 行情必须来自单分区 topic，分区内顺序即事件顺序。
// handler 返回错误时停止消费，不再标记该消息。

package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

// ConsumerConfig 消费者配置
type ConsumerConfig struct {
	Brokers       []string `yaml:"brokers"`
	GroupID       string   `yaml:"group_id"`
	Topics        []string `yaml:"topics"`
	OffsetInitial int64    `yaml:"offset_initial"` // -1=newest, -2=oldest
	AutoCommit    bool     `yaml:"auto_commit"`
}

// DefaultConsumerConfig 默认配置：从最早的消息开始重放
func DefaultConsumerConfig(brokers []string, groupID string, topics []string) ConsumerConfig {
	return ConsumerConfig{
		Brokers:       brokers,
		GroupID:       groupID,
		Topics:        topics,
		OffsetInitial: sarama.OffsetOldest,
		AutoCommit:    true,
	}
}

// Delivery 收到的消息
type Delivery struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
}

// MessageHandler 消息处理函数
type MessageHandler func(ctx context.Context, d Delivery) error

// Consumer 消费者组封装
type Consumer struct {
	client  sarama.ConsumerGroup
	topics  []string
	handler MessageHandler
	logger  *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
	errMu  sync.Mutex
	err    error
}

// NewConsumer 创建消费者
func NewConsumer(cfg ConsumerConfig, handler MessageHandler, logger *zap.Logger) (*Consumer, error) {
	if len(cfg.Brokers) == 0 || len(cfg.Topics) == 0 {
		return nil, errors.New("kafka consumer: brokers and topics are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	sc := sarama.NewConfig()
	sc.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	sc.Consumer.Offsets.Initial = cfg.OffsetInitial
	sc.Consumer.Offsets.AutoCommit.Enable = cfg.AutoCommit

	client, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, sc)
	if err != nil {
		return nil, fmt.Errorf("create consumer group: %w", err)
	}

	return &Consumer{
		client:  client,
		topics:  cfg.Topics,
		handler: handler,
		logger:  logger.Named("kafka.consumer"),
	}, nil
}

// Start 启动消费，ctx 取消或 handler 出错时结束
func (c *Consumer) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		h := &groupHandler{handler: c.handler}
		for {
			err := c.client.Consume(ctx, c.topics, h)
			if h.err != nil {
				c.setErr(h.err)
				c.cancel()
				return
			}
			if err != nil {
				c.logger.Warn("consume error", zap.Error(err))
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()
}

// Err handler 返回的第一个错误
func (c *Consumer) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

func (c *Consumer) setErr(err error) {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	if c.err == nil {
		c.err = err
	}
}

// Stop 停止消费
func (c *Consumer) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	return c.client.Close()
}

// =============================================================================
// sarama.ConsumerGroupHandler 实现
// =============================================================================

type groupHandler struct {
	handler MessageHandler
	err     error
}

func (h *groupHandler) Setup(_ sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(_ sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		d := Delivery{
			Topic:     msg.Topic,
			Partition: msg.Partition,
			Offset:    msg.Offset,
			Key:       msg.Key,
			Value:     msg.Value,
		}
		if err := h.handler(session.Context(), d); err != nil {
			h.err = fmt.Errorf("topic %s offset %d: %w", msg.Topic, msg.Offset, err)
			return h.err
		}
		session.MarkMessage(msg, "")
	}
	return nil
}
