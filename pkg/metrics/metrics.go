// 文件: pkg/metrics/metrics.go
// Prometheus 指标
// 使用独立 Registry，不注册到全局默认 Registry

package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"max.com/pricer/pkg/book"
)

const namespace = "pricer"

// Metrics 定价器指标
type Metrics struct {
	Registry *prometheus.Registry

	Events       *prometheus.CounterVec // kind=ADD|REDUCE
	Outcomes     *prometheus.CounterVec // action=B|S, available=true|false
	Depth        *prometheus.GaugeVec   // side=BUY|SELL
	Levels       *prometheus.GaugeVec   // side=BUY|SELL
	ApplyLatency prometheus.Histogram   // 单个事件的处理耗时
	Fatal        *prometheus.CounterVec // reason=protocol|decode|report
}

// New 创建并注册全部指标
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Book events applied, by kind",
		}, []string{"kind"}),
		Outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outcomes_total",
			Help:      "Price impact outcomes, by sweep action and availability",
		}, []string{"action", "available"}),
		Depth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "side_depth",
			Help:      "Total resting quantity per side",
		}, []string{"side"}),
		Levels: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "side_levels",
			Help:      "Price levels stored per side, zero-depth levels included",
		}, []string{"side"}),
		ApplyLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "apply_seconds",
			Help:      "Time to apply one event and compute its outcome",
			Buckets:   prometheus.ExponentialBuckets(1e-7, 4, 10),
		}),
		Fatal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fatal_errors_total",
			Help:      "Errors that stopped a run, by reason",
		}, []string{"reason"}),
	}

	m.Registry.MustRegister(
		m.Events, m.Outcomes, m.Depth, m.Levels, m.ApplyLatency, m.Fatal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveEvent 记录一个已处理事件
func (m *Metrics) ObserveEvent(cmd book.Command, out book.Outcome, elapsed time.Duration) {
	m.Events.WithLabelValues(cmd.Kind.String()).Inc()
	action := "B"
	if out.Side == book.SideBuy {
		action = "S"
	}
	available := "false"
	if out.Available {
		available = "true"
	}
	m.Outcomes.WithLabelValues(action, available).Inc()
	m.ApplyLatency.Observe(elapsed.Seconds())
}

// ObserveBook 更新两侧深度
func (m *Metrics) ObserveBook(e *book.Engine) {
	for _, side := range []book.Side{book.SideBuy, book.SideSell} {
		m.Depth.WithLabelValues(side.String()).Set(float64(e.TotalDepth(side)))
		m.Levels.WithLabelValues(side.String()).Set(float64(e.LevelCount(side)))
	}
}

// ObserveFatal 记录终止原因
func (m *Metrics) ObserveFatal(reason string) {
	m.Fatal.WithLabelValues(reason).Inc()
}

// Serve 在 addr 上提供 /metrics，ctx 取消时关闭
func (m *Metrics) Serve(ctx context.Context, addr string, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	go func() {
		logger.Info("metrics listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", zap.Error(err))
		}
	}()
}
