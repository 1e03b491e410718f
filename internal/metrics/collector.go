// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"database/sql"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 服务端指标
// =============================================================================

// Collector 服务端指标。所有 Record 方法对 nil 接收者安全，未配置指标时组件可直接持有 nil。
type Collector struct {
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	httpBodySize *prometheus.HistogramVec

	llmRequests *prometheus.CounterVec
	llmDuration *prometheus.HistogramVec
	llmTokens   *prometheus.CounterVec
	llmBreaker  *prometheus.GaugeVec

	structureAttempts *prometheus.HistogramVec
	generations       *prometheus.CounterVec

	cacheLookups *prometheus.CounterVec

	dbConnections *prometheus.GaugeVec
	dbWaits       *prometheus.GaugeVec
	dbQueries     *prometheus.HistogramVec
}

// NewCollector 在 reg 上注册服务端指标。reg 为 nil 时使用 prometheus.DefaultRegisterer。
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	f := newFactory(namespace, reg)
	c := &Collector{
		httpRequests: f.counter("http_requests_total", "HTTP requests by route pattern and status class", "method", "path", "status"),
		httpDuration: f.histogram("http_request_duration_seconds", "HTTP request latency", prometheus.DefBuckets, "method", "path"),
		httpBodySize: f.histogram("http_body_size_bytes", "HTTP request and response body sizes",
			prometheus.ExponentialBuckets(128, 4, 8), "path", "direction"),

		llmRequests: f.counter("llm_requests_total", "LLM completions by provider, model and outcome", "provider", "model", "status"),
		llmDuration: f.histogram("llm_request_duration_seconds", "LLM completion latency",
			[]float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 120}, "provider", "model"),
		llmTokens:  f.counter("llm_tokens_total", "Tokens reported by providers", "provider", "model", "type"),
		llmBreaker: f.gauge("llm_circuit_state", "Provider circuit breaker state: 0 closed, 1 open, 2 half-open", "provider"),

		structureAttempts: f.histogram("structure_attempts", "LLM turns per structuring request, repairs included",
			[]float64{1, 2, 3, 4, 5}, "status"),
		generations: f.counter("model_generations_total", "Model generation requests by outcome", "status"),

		cacheLookups: f.counter("cache_lookups_total", "Structured result cache lookups; tier is local, redis or miss", "tier"),

		dbConnections: f.gauge("db_connections", "Database pool connections by state", "database", "state"),
		dbWaits:       f.gauge("db_wait_count", "Cumulative waits for a pooled connection", "database"),
		dbQueries:     f.histogram("db_query_duration_seconds", "Database statement latency", prometheus.DefBuckets, "database", "operation"),
	}

	if logger != nil {
		logger.Debug("metrics collector registered", zap.String("namespace", namespace))
	}
	return c
}

// RecordHTTPRequest path 应为路由模板而非原始 URL
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration, requestSize, responseSize int64) {
	if c == nil {
		return
	}
	c.httpRequests.WithLabelValues(method, path, statusClass(status)).Inc()
	c.httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	c.httpBodySize.WithLabelValues(path, "request").Observe(float64(requestSize))
	c.httpBodySize.WithLabelValues(path, "response").Observe(float64(responseSize))
}

// RecordLLMRequest 记录一次 provider 调用及其 token 用量
func (c *Collector) RecordLLMRequest(provider, model, status string, duration time.Duration, promptTokens, completionTokens int) {
	if c == nil {
		return
	}
	c.llmRequests.WithLabelValues(provider, model, status).Inc()
	c.llmDuration.WithLabelValues(provider, model).Observe(duration.Seconds())
	if promptTokens > 0 {
		c.llmTokens.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		c.llmTokens.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
	}
}

// RecordStructure 记录一次结构化请求消耗的 LLM 轮数
func (c *Collector) RecordStructure(status string, attempts int) {
	if c == nil {
		return
	}
	c.structureAttempts.WithLabelValues(status).Observe(float64(attempts))
}

// RecordGeneration 记录模型生成结果
func (c *Collector) RecordGeneration(status string) {
	if c == nil {
		return
	}
	c.generations.WithLabelValues(status).Inc()
}

// RecordBreakerState state 取 circuitbreaker.State 的数值
func (c *Collector) RecordBreakerState(provider string, state int) {
	if c == nil {
		return
	}
	c.llmBreaker.WithLabelValues(provider).Set(float64(state))
}

// RecordCacheHit tier 为命中的缓存层
func (c *Collector) RecordCacheHit(tier string) {
	if c == nil {
		return
	}
	c.cacheLookups.WithLabelValues(tier).Inc()
}

// RecordCacheMiss 两层都未命中
func (c *Collector) RecordCacheMiss() {
	if c == nil {
		return
	}
	c.cacheLookups.WithLabelValues("miss").Inc()
}

// RecordDBStats 记录连接池快照
func (c *Collector) RecordDBStats(database string, stats sql.DBStats) {
	if c == nil {
		return
	}
	c.dbConnections.WithLabelValues(database, "open").Set(float64(stats.OpenConnections))
	c.dbConnections.WithLabelValues(database, "in_use").Set(float64(stats.InUse))
	c.dbConnections.WithLabelValues(database, "idle").Set(float64(stats.Idle))
	c.dbWaits.WithLabelValues(database).Set(float64(stats.WaitCount))
}

// RecordDBQuery 记录一条语句的耗时
func (c *Collector) RecordDBQuery(database, operation string, duration time.Duration) {
	if c == nil {
		return
	}
	c.dbQueries.WithLabelValues(database, operation).Observe(duration.Seconds())
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// StatusLabel 将错误转换为 status 标签
func StatusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func statusClass(code int) string {
	if code < 100 || code > 599 {
		return "unknown"
	}
	return strconv.Itoa(code/100) + "xx"
}

// factory 带命名空间的 promauto 封装
type factory struct {
	promauto.Factory
	namespace string
}

func newFactory(namespace string, reg prometheus.Registerer) factory {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return factory{Factory: promauto.With(reg), namespace: namespace}
}

func (f factory) counter(name, help string, labels ...string) *prometheus.CounterVec {
	return f.NewCounterVec(prometheus.CounterOpts{Namespace: f.namespace, Name: name, Help: help}, labels)
}

func (f factory) gauge(name, help string, labels ...string) *prometheus.GaugeVec {
	return f.NewGaugeVec(prometheus.GaugeOpts{Namespace: f.namespace, Name: name, Help: help}, labels)
}

func (f factory) histogram(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return f.NewHistogramVec(prometheus.HistogramOpts{Namespace: f.namespace, Name: name, Help: help, Buckets: buckets}, labels)
}
