package report

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// =============================================================================
// RedisReporter
// =============================================================================
//
// Key 设计：
//   pricer:{instrument}:latest   Hash    field=B|S  value=最新一行
//   pricer:{instrument}:impacts  Stream  每条结果一个 entry，近似裁剪到 MaxLen

// RedisReporter 写最新值和历史流
type RedisReporter struct {
	client    *redis.Client
	latestKey string
	streamKey string
	streamMax int64
}

// NewRedisReporter 创建
func NewRedisReporter(client *redis.Client, instrument string, streamMax int64) *RedisReporter {
	return &RedisReporter{
		client:    client,
		latestKey: LatestKey(instrument),
		streamKey: StreamKey(instrument),
		streamMax: streamMax,
	}
}

// LatestKey 最新值 Hash 的 key
func LatestKey(instrument string) string {
	return fmt.Sprintf("pricer:%s:latest", instrument)
}

// StreamKey 历史 Stream 的 key
func StreamKey(instrument string) string {
	return fmt.Sprintf("pricer:%s:impacts", instrument)
}

// Report 实现 Reporter，HSET 与 XADD 放在同一个 MULTI 里
func (r *RedisReporter) Report(ctx context.Context, rec Record) error {
	line := rec.Line()
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, r.latestKey, rec.Action(), line)
		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: r.streamKey,
			MaxLen: r.streamMax,
			Approx: true,
			Values: map[string]any{
				"run":    rec.RunID,
				"event":  rec.Outcome.EventIndex,
				"ts":     rec.Outcome.Timestamp,
				"action": rec.Action(),
				"value":  rec.Value(),
			},
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis report event %d: %w", rec.Outcome.EventIndex, err)
	}
	return nil
}

// Close 关闭客户端
func (r *RedisReporter) Close() error {
	return r.client.Close()
}
