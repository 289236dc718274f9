// 文件: pkg/config/config.go
// 配置加载
//
// 优先级 (低 → 高):
//   Default() → YAML 文件 → .env / PRICER_* 环境变量 → 命令行参数 (cmd 里处理)

package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config 全部配置
type Config struct {
	Instrument string   `yaml:"instrument"`
	TargetSize int64    `yaml:"target_size"`
	NodeID     int64    `yaml:"node_id"` // 雪花节点 ID (0-1023)
	Sinks      []string `yaml:"sinks"`   // stdout, kafka, nats, redis, mysql

	// 只在某一侧的值变化时输出
	OnlyChanges bool `yaml:"only_changes"`

	Engine  EngineConfig  `yaml:"engine"`
	Source  SourceConfig  `yaml:"source"`
	Batch   BatchConfig   `yaml:"batch"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
	Kafka   KafkaConfig   `yaml:"kafka"`
	Nats    NatsConfig    `yaml:"nats"`
	Redis   RedisConfig   `yaml:"redis"`
	MySQL   MySQLConfig   `yaml:"mysql"`
}

// EngineConfig 订单簿策略
type EngineConfig struct {
	PruneEmptyLevels  bool `yaml:"prune_empty_levels"`
	EvictFilledOrders bool `yaml:"evict_filled_orders"`
	Paranoid          bool `yaml:"paranoid"` // 每个事件后做一致性校验
}

// SourceConfig 行情来源
type SourceConfig struct {
	Type string `yaml:"type"` // stdin, file, tape, kafka, nats
	Path string `yaml:"path"`
}

// BatchConfig 批量模式
type BatchConfig struct {
	Workers int `yaml:"workers"`
}

// LogConfig 日志
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json, console
}

// MetricsConfig 指标，Addr 为空时不启动 HTTP 服务
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// KafkaConfig Kafka
type KafkaConfig struct {
	Brokers     []string `yaml:"brokers"`
	GroupID     string   `yaml:"group_id"`
	FeedTopic   string   `yaml:"feed_topic"`
	ReportTopic string   `yaml:"report_topic"`
	Compression string   `yaml:"compression"`
}

// NatsConfig NATS
type NatsConfig struct {
	URL           string `yaml:"url"`
	FeedSubject   string `yaml:"feed_subject"`
	ReportSubject string `yaml:"report_subject"`
}

// RedisConfig Redis
type RedisConfig struct {
	Addr         string `yaml:"addr"`
	Password     string `yaml:"password"`
	DB           int    `yaml:"db"`
	StreamMaxLen int64  `yaml:"stream_max_len"`
}

// MySQLConfig MySQL
type MySQLConfig struct {
	DSN       string `yaml:"dsn"`
	BatchSize int    `yaml:"batch_size"`
}

// Default 默认配置
func Default() *Config {
	return &Config{
		Instrument: "DEFAULT",
		Sinks:      []string{"stdout"},
		Source:     SourceConfig{Type: "stdin"},
		Batch:      BatchConfig{Workers: 4},
		Log:        LogConfig{Level: "info", Format: "json"},
		Kafka: KafkaConfig{
			Brokers:     []string{"localhost:9092"},
			GroupID:     "pricer",
			FeedTopic:   "pricer.feed",
			ReportTopic: "pricer.impacts",
			Compression: "snappy",
		},
		Nats: NatsConfig{
			URL:           "nats://localhost:4222",
			FeedSubject:   "pricer.feed",
			ReportSubject: "pricer.impacts",
		},
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			StreamMaxLen: 100000,
		},
		MySQL: MySQLConfig{BatchSize: 500},
	}
}

// Load 加载配置；path 为空时只用默认值和环境变量
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	_ = godotenv.Load() // .env 不存在时忽略

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	var errs []error
	envString("PRICER_INSTRUMENT", &c.Instrument)
	errs = append(errs, envInt64("PRICER_TARGET_SIZE", &c.TargetSize))
	errs = append(errs, envInt64("PRICER_NODE_ID", &c.NodeID))
	envList("PRICER_SINKS", &c.Sinks)
	errs = append(errs, envBool("PRICER_ONLY_CHANGES", &c.OnlyChanges))

	errs = append(errs, envBool("PRICER_PRUNE_EMPTY_LEVELS", &c.Engine.PruneEmptyLevels))
	errs = append(errs, envBool("PRICER_EVICT_FILLED_ORDERS", &c.Engine.EvictFilledOrders))
	errs = append(errs, envBool("PRICER_PARANOID", &c.Engine.Paranoid))

	envString("PRICER_SOURCE", &c.Source.Type)
	envString("PRICER_SOURCE_PATH", &c.Source.Path)
	envString("PRICER_LOG_LEVEL", &c.Log.Level)
	envString("PRICER_LOG_FORMAT", &c.Log.Format)
	envString("PRICER_METRICS_ADDR", &c.Metrics.Addr)

	envList("PRICER_KAFKA_BROKERS", &c.Kafka.Brokers)
	envString("PRICER_NATS_URL", &c.Nats.URL)
	envString("PRICER_REDIS_ADDR", &c.Redis.Addr)
	envString("PRICER_REDIS_PASSWORD", &c.Redis.Password)
	envString("PRICER_MYSQL_DSN", &c.MySQL.DSN)
	return errors.Join(errs...)
}

// Validate 校验
func (c *Config) Validate() error {
	var errs []error
	if c.TargetSize <= 0 {
		errs = append(errs, fmt.Errorf("target size must be positive, got %d", c.TargetSize))
	}
	if c.NodeID < 0 || c.NodeID > 1023 {
		errs = append(errs, fmt.Errorf("node id %d out of range 0-1023", c.NodeID))
	}
	if !slices.Contains([]string{"stdin", "file", "tape", "kafka", "nats"}, c.Source.Type) {
		errs = append(errs, fmt.Errorf("unknown source %q", c.Source.Type))
	}
	if (c.Source.Type == "file" || c.Source.Type == "tape") && c.Source.Path == "" {
		errs = append(errs, fmt.Errorf("source %s needs a path", c.Source.Type))
	}
	if len(c.Sinks) == 0 {
		errs = append(errs, errors.New("at least one sink is required"))
	}
	for _, s := range c.Sinks {
		if !slices.Contains([]string{"stdout", "kafka", "nats", "redis", "mysql"}, s) {
			errs = append(errs, fmt.Errorf("unknown sink %q", s))
		}
	}
	if slices.Contains(c.Sinks, "mysql") && c.MySQL.DSN == "" {
		errs = append(errs, errors.New("mysql sink needs mysql.dsn"))
	}
	if c.Batch.Workers <= 0 {
		errs = append(errs, fmt.Errorf("batch workers must be positive, got %d", c.Batch.Workers))
	}
	return errors.Join(errs...)
}

// HasSink 是否启用某个输出端
func (c *Config) HasSink(name string) bool {
	return slices.Contains(c.Sinks, name)
}

// =============================================================================
// 环境变量辅助函数
// =============================================================================

func envString(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func envList(key string, dst *[]string) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	var out []string
	for part := range strings.SplitSeq(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*dst = out
}

func envInt64(key string, dst *int64) error {
	v, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func envBool(key string, dst *bool) error {
	v, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}
