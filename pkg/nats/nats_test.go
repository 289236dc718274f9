package nats

import (
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupNats(t *testing.T) *nats.Conn {
	// 假设本地 NATS 运行在 localhost:4222
	conn, err := nats.Connect(nats.DefaultURL, nats.Timeout(500*time.Millisecond))
	if err != nil {
		t.Skipf("skipping test; nats not available: %v", err)
	}
	return conn
}

func TestPublishSubscribe_PreservesOrder(t *testing.T) {
	subConn := setupNats(t)
	pubConn := setupNats(t)

	var (
		mu  sync.Mutex
		got []string
	)
	sub := NewSubscriberWithConn(subConn, func(_ string, data []byte) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, string(data))
		return nil
	}, nil)
	require.NoError(t, sub.Subscribe("pricer.test.order"))
	require.NoError(t, subConn.Flush())
	defer sub.Close()

	pub := NewPublisherWithConn(pubConn, nil)
	want := []string{"1", "2", "3", "4", "5"}
	for _, v := range want {
		require.NoError(t, pub.PublishRaw("pricer.test.order", []byte(v)))
	}
	require.NoError(t, pub.Flush(time.Second))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == len(want)
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Equal(t, want, got)
	mu.Unlock()
	require.NoError(t, pub.Close())
}
