package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rushairer/batchinsert"
)

// 确保PrometheusMetrics实现了MetricsReporter接口
var _ batchinsert.MetricsReporter = (*PrometheusMetrics)(nil)

// PrometheusMetrics Prometheus指标收集器，实现MetricsReporter接口
type PrometheusMetrics struct {
	database string

	// 插入执行指标
	executeDuration *prometheus.HistogramVec
	executeTotal    *prometheus.CounterVec
	batchSize       prometheus.Histogram
	recordsInserted *prometheus.CounterVec
	stagingRows     *prometheus.HistogramVec
	inflight        prometheus.Gauge

	// 基准测试指标
	strategyDuration *prometheus.GaugeVec
	strategyRecords  *prometheus.GaugeVec
	strategyRPS      *prometheus.GaugeVec

	// 错误指标
	errorTotal *prometheus.CounterVec

	registry        *prometheus.Registry
	mu              sync.RWMutex
	currentStrategy string
}

// NewPrometheusMetrics 创建Prometheus指标收集器，database 作为所有插入指标的标签
func NewPrometheusMetrics(database string) *PrometheusMetrics {
	registry := prometheus.NewRegistry()

	pm := &PrometheusMetrics{
		database: database,

		executeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "batchinsert_execute_duration_seconds",
				Help:    "Duration of insert calls in seconds",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~32s
			},
			[]string{"database", "table", "path", "status", "strategy"},
		),

		executeTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "batchinsert_execute_total",
				Help: "Total number of insert calls",
			},
			[]string{"database", "table", "path", "status", "strategy"},
		),

		batchSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "batchinsert_batch_size",
				Help:    "Number of items per insert call",
				Buckets: prometheus.ExponentialBuckets(1, 2, 15), // 1 to ~16k
			},
		),

		recordsInserted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "batchinsert_records_inserted_total",
				Help: "Total number of rows committed or handed to an external transaction",
			},
			[]string{"database", "table", "strategy"},
		),

		stagingRows: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "batchinsert_staging_rows",
				Help:    "Rows read back from staging tables",
				Buckets: prometheus.ExponentialBuckets(1, 2, 15),
			},
			[]string{"database", "table"},
		),

		inflight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "batchinsert_inflight",
				Help: "Insert calls currently running",
			},
		),

		strategyDuration: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "batchinsert_strategy_duration_seconds",
				Help: "Wall time of a benchmark strategy run",
			},
			[]string{"database", "strategy"},
		),

		strategyRecords: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "batchinsert_strategy_records",
				Help: "Records inserted by a benchmark strategy run",
			},
			[]string{"database", "strategy"},
		),

		strategyRPS: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "batchinsert_strategy_rps",
				Help: "Records per second achieved by a benchmark strategy run",
			},
			[]string{"database", "strategy"},
		),

		errorTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "batchinsert_errors_total",
				Help: "Total number of errors by kind (final:* / retry:*)",
			},
			[]string{"database", "table", "kind"},
		),

		registry: registry,
	}

	// 注册所有指标
	registry.MustRegister(
		pm.executeDuration,
		pm.executeTotal,
		pm.batchSize,
		pm.recordsInserted,
		pm.stagingRows,
		pm.inflight,
		pm.strategyDuration,
		pm.strategyRecords,
		pm.strategyRPS,
		pm.errorTotal,
	)

	return pm
}

// Registry 返回内部注册表
func (pm *PrometheusMetrics) Registry() *prometheus.Registry {
	return pm.registry
}

// Handler 返回 /metrics 处理器
func (pm *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(pm.registry, promhttp.HandlerOpts{})
}

// SetCurrentStrategy 设置当前策略（用于标签）
func (pm *PrometheusMetrics) SetCurrentStrategy(strategy string) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.currentStrategy = strategy
}

func (pm *PrometheusMetrics) getCurrentStrategy() string {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	if pm.currentStrategy == "" {
		return "none"
	}
	return pm.currentStrategy
}

func (pm *PrometheusMetrics) ObserveExecuteDuration(table, path string, n int, d time.Duration, status string) {
	strategy := pm.getCurrentStrategy()
	pm.executeDuration.WithLabelValues(pm.database, table, path, status, strategy).Observe(d.Seconds())
	pm.executeTotal.WithLabelValues(pm.database, table, path, status, strategy).Inc()
	if status == "success" {
		pm.recordsInserted.WithLabelValues(pm.database, table, strategy).Add(float64(n))
	}
}

func (pm *PrometheusMetrics) ObserveBatchSize(n int) {
	pm.batchSize.Observe(float64(n))
}

func (pm *PrometheusMetrics) ObserveStagingRows(table string, n int) {
	pm.stagingRows.WithLabelValues(pm.database, table).Observe(float64(n))
}

func (pm *PrometheusMetrics) IncInflight() { pm.inflight.Inc() }
func (pm *PrometheusMetrics) DecInflight() { pm.inflight.Dec() }

func (pm *PrometheusMetrics) IncError(table, kind string) {
	pm.errorTotal.WithLabelValues(pm.database, table, kind).Inc()
}

// StrategyResult 一次基准策略运行的结果
type StrategyResult struct {
	Strategy string        `json:"strategy"`
	Records  int64         `json:"records"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// RecordsPerSecond 吞吐量；耗时为 0 时返回 0
func (r StrategyResult) RecordsPerSecond() float64 {
	if r.Duration <= 0 {
		return 0
	}
	return float64(r.Records) / r.Duration.Seconds()
}

// RecordStrategyResult 记录基准策略结果
func (pm *PrometheusMetrics) RecordStrategyResult(result StrategyResult) {
	pm.strategyDuration.WithLabelValues(pm.database, result.Strategy).Set(result.Duration.Seconds())
	pm.strategyRecords.WithLabelValues(pm.database, result.Strategy).Set(float64(result.Records))
	pm.strategyRPS.WithLabelValues(pm.database, result.Strategy).Set(result.RecordsPerSecond())
}
