package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ClientCollector SDK 侧指标，注册在调用方提供的 Registerer 上。nil 接收者安全。
type ClientCollector struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	retries  *prometheus.CounterVec
}

// NewClientCollector 注册 client_requests_total、client_request_duration_seconds 与 client_retries_total
func NewClientCollector(namespace string, reg prometheus.Registerer) *ClientCollector {
	f := newFactory(namespace, reg)
	return &ClientCollector{
		requests: f.counter("client_requests_total", "Logical SDK calls by operation and outcome", "operation", "status"),
		duration: f.histogram("client_request_duration_seconds", "SDK call latency, retries included",
			[]float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}, "operation"),
		retries: f.counter("client_retries_total", "Retried SDK attempts by operation", "operation"),
	}
}

// RecordRequest 记录一次逻辑调用（含重试）
func (c *ClientCollector) RecordRequest(operation, status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.requests.WithLabelValues(operation, status).Inc()
	c.duration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordRetry 记录一次重试
func (c *ClientCollector) RecordRetry(operation string) {
	if c == nil {
		return
	}
	c.retries.WithLabelValues(operation).Inc()
}
