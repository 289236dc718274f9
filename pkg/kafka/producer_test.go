package kafka

import (
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testMessage struct {
	value string
	err   error
}

func (m testMessage) Topic() string { return "pricer.test" }
func (m testMessage) Key() string   { return "k" }
func (m testMessage) Value() ([]byte, error) {
	return []byte(m.value), m.err
}

func TestProducer_Send(t *testing.T) {
	mp := mocks.NewAsyncProducer(t, nil)
	mp.ExpectInputWithCheckerFunctionAndSucceed(func(v []byte) error {
		if string(v) != "hello" {
			return errors.New("unexpected value " + string(v))
		}
		return nil
	})

	p := newProducer(mp, nil)
	require.NoError(t, p.Send(testMessage{value: "hello"}))
	require.NoError(t, p.Close())

	assert.Equal(t, int64(1), p.Stats().SentCount)
	assert.Zero(t, p.Stats().ErrorCount)
}

func TestProducer_ErrorsAreCounted(t *testing.T) {
	mp := mocks.NewAsyncProducer(t, nil)
	mp.ExpectInputAndFail(sarama.ErrOutOfBrokers)

	p := newProducer(mp, nil)
	require.NoError(t, p.SendRaw("pricer.test", "k", []byte("x")))

	assert.Eventually(t, func() bool {
		return p.Stats().ErrorCount == 1
	}, time.Second, 10*time.Millisecond)
	_ = p.Close()
}

func TestProducer_SerializeErrorAndClosed(t *testing.T) {
	p := newProducer(mocks.NewAsyncProducer(t, nil), nil)

	err := p.Send(testMessage{err: errors.New("bad")})
	assert.ErrorContains(t, err, "serialize message")

	require.NoError(t, p.Close())
	assert.ErrorIs(t, p.SendRaw("t", "k", nil), ErrProducerClosed)
	assert.NoError(t, p.Close(), "second close is a no-op")
}

func TestProducerConfig_Sarama(t *testing.T) {
	cfg := DefaultProducerConfig([]string{"localhost:9092"})
	cfg.RequiredAcks = -1
	cfg.Compression = "zstd"

	sc := cfg.saramaConfig()
	assert.Equal(t, sarama.WaitForAll, sc.Producer.RequiredAcks)
	assert.Equal(t, sarama.CompressionZSTD, sc.Producer.Compression)
	assert.Equal(t, 1, sc.Net.MaxOpenRequests)
}
