package report

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"max.com/pricer/pkg/book"
)

func setupRedis(t *testing.T) *redis.Client {
	// 假设本地 Redis 运行在 localhost:6379
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 15})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("skipping test; redis not available: %v", err)
	}
	client.FlushDB(context.Background())
	return client
}

func TestRedisReporter(t *testing.T) {
	client := setupRedis(t)
	r := NewRedisReporter(client, "TEST", 1000)
	ctx := context.Background()

	require.NoError(t, r.Report(ctx, rec(1, book.SideBuy, 100, true)))
	require.NoError(t, r.Report(ctx, rec(2, book.SideSell, 0, false)))
	require.NoError(t, r.Report(ctx, rec(3, book.SideBuy, 200, true)))

	latest, err := client.HGetAll(ctx, LatestKey("TEST")).Result()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"S": "3 S 2.00", "B": "2 B NA"}, latest)

	entries, err := client.XRange(ctx, StreamKey("TEST"), "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "NA", entries[1].Values["value"])
	assert.Equal(t, "1.00", entries[0].Values["value"])

	require.NoError(t, r.Close())
}
