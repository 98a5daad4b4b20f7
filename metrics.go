package batchinsert

import "time"

// 插入路径标签
const (
	PathPlain   = "plain"
	PathCapture = "capture"
)

// MetricsReporter 性能监控报告器接口
type MetricsReporter interface {
	// ObserveExecuteDuration 一次 Insert 调用的耗时，status 为 success/fail
	ObserveExecuteDuration(table, path string, n int, d time.Duration, status string)
	// ObserveBatchSize 批次大小
	ObserveBatchSize(n int)
	// ObserveStagingRows 从暂存表读回的行数
	ObserveStagingRows(table string, n int)
	// IncInflight / DecInflight 在途调用数
	IncInflight()
	DecInflight()
	// IncError kind 形如 "final:integrity"、"retry:deadlock"
	IncError(table, kind string)
}

// NoopMetricsReporter 默认的空实现
type NoopMetricsReporter struct{}

func NewNoopMetricsReporter() *NoopMetricsReporter { return &NoopMetricsReporter{} }

func (NoopMetricsReporter) ObserveExecuteDuration(table, path string, n int, d time.Duration, status string) {
}
func (NoopMetricsReporter) ObserveBatchSize(n int)                 {}
func (NoopMetricsReporter) ObserveStagingRows(table string, n int) {}
func (NoopMetricsReporter) IncInflight()                           {}
func (NoopMetricsReporter) DecInflight()                           {}
func (NoopMetricsReporter) IncError(table, kind string)            {}
