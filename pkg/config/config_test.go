package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsAndYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pricer.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
instrument: XYZ
target_size: 200
sinks: [stdout, redis]
engine:
  prune_empty_levels: true
source:
  type: file
  path: feed.txt
redis:
  addr: redis:6379
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "XYZ", cfg.Instrument)
	assert.Equal(t, int64(200), cfg.TargetSize)
	assert.Equal(t, []string{"stdout", "redis"}, cfg.Sinks)
	assert.True(t, cfg.Engine.PruneEmptyLevels)
	assert.False(t, cfg.Engine.EvictFilledOrders)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	// 文件未覆盖的字段保留默认值
	assert.Equal(t, int64(100000), cfg.Redis.StreamMaxLen)
	assert.Equal(t, "pricer.impacts", cfg.Kafka.ReportTopic)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PRICER_TARGET_SIZE", "50")
	t.Setenv("PRICER_SINKS", "stdout, kafka")
	t.Setenv("PRICER_ONLY_CHANGES", "true")
	t.Setenv("PRICER_KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, int64(50), cfg.TargetSize)
	assert.Equal(t, []string{"stdout", "kafka"}, cfg.Sinks)
	assert.True(t, cfg.OnlyChanges)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.HasSink("kafka"))
}

func TestLoad_BadEnv(t *testing.T) {
	t.Setenv("PRICER_TARGET_SIZE", "lots")
	_, err := Load("")
	assert.ErrorContains(t, err, "PRICER_TARGET_SIZE")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"zero target", func(c *Config) { c.TargetSize = 0 }, "target size"},
		{"unknown source", func(c *Config) { c.Source.Type = "ftp" }, "unknown source"},
		{"file without path", func(c *Config) { c.Source.Type = "file" }, "needs a path"},
		{"unknown sink", func(c *Config) { c.Sinks = []string{"fax"} }, "unknown sink"},
		{"mysql without dsn", func(c *Config) { c.Sinks = []string{"mysql"} }, "mysql.dsn"},
		{"node id", func(c *Config) { c.NodeID = 2048 }, "node id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.TargetSize = 1
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.errMsg)
		})
	}
}
