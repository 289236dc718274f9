package report

import (
	"context"
	"encoding/json"
	"time"

	"max.com/pricer/pkg/kafka"
	"max.com/pricer/pkg/nats"
)

// =============================================================================
// KafkaReporter
// =============================================================================

// kafkaMessage 实现 kafka.Message
// key 用 instrument：同一品种的结果进同一分区，保持顺序
type kafkaMessage struct {
	topic string
	rec   Record
}

func (m kafkaMessage) Topic() string { return m.topic }
func (m kafkaMessage) Key() string   { return m.rec.Instrument }
func (m kafkaMessage) Value() ([]byte, error) {
	return json.Marshal(m.rec.Message())
}

// producer 抽象，便于测试
type producer interface {
	Send(msg kafka.Message) error
	Close() error
}

// KafkaReporter 发布到 Kafka
type KafkaReporter struct {
	producer producer
	topic    string
}

// NewKafkaReporter 创建
func NewKafkaReporter(p *kafka.Producer, topic string) *KafkaReporter {
	return &KafkaReporter{producer: p, topic: topic}
}

// Report 实现 Reporter
func (r *KafkaReporter) Report(_ context.Context, rec Record) error {
	return r.producer.Send(kafkaMessage{topic: r.topic, rec: rec})
}

// Close 关闭生产者，等待在途消息
func (r *KafkaReporter) Close() error {
	return r.producer.Close()
}

// =============================================================================
// NatsReporter
// =============================================================================

// NatsReporter 发布到 NATS subject
type NatsReporter struct {
	pub     *nats.Publisher
	subject string
}

// NewNatsReporter 创建
func NewNatsReporter(pub *nats.Publisher, subject string) *NatsReporter {
	return &NatsReporter{pub: pub, subject: subject}
}

// Report 实现 Reporter
func (r *NatsReporter) Report(_ context.Context, rec Record) error {
	return r.pub.Publish(r.subject, rec.Message())
}

// Close 刷新后关闭连接
func (r *NatsReporter) Close() error {
	if err := r.pub.Flush(5 * time.Second); err != nil {
		r.pub.Close()
		return err
	}
	return r.pub.Close()
}
