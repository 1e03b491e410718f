package client

import (
	"net/http"
	"time"

	"github.com/BaSui01/schemaforge/api"
	"github.com/BaSui01/schemaforge/config"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// settings 构造 Client 时的可选项
type settings struct {
	cfg        config.ClientConfig
	httpClient *http.Client
	logger     *zap.Logger
	registerer prometheus.Registerer
}

// Option 配置 Client
type Option func(*settings)

// WithConfig 整体替换客户端配置，之后的选项仍可覆盖单个字段
func WithConfig(cfg config.ClientConfig) Option {
	return func(s *settings) { s.cfg = cfg }
}

// WithAPIKey 设置 API Key
func WithAPIKey(key string) Option {
	return func(s *settings) { s.cfg.APIKey = key }
}

// WithAPIBase 设置服务地址，如 http://localhost:8000
func WithAPIBase(base string) Option {
	return func(s *settings) { s.cfg.APIBase = base }
}

// WithDefaultModel 设置默认模型（provider:model）
func WithDefaultModel(model string) Option {
	return func(s *settings) { s.cfg.DefaultModel = model }
}

// WithTimeout 设置单次 HTTP 尝试的超时
func WithTimeout(d time.Duration) Option {
	return func(s *settings) { s.cfg.Timeout = d }
}

// WithMaxRetries 设置最大重试次数（0 表示不重试）
func WithMaxRetries(n int) Option {
	return func(s *settings) { s.cfg.MaxRetries = n }
}

// WithRetryDelay 设置首次重试前的等待时间
func WithRetryDelay(d time.Duration) Option {
	return func(s *settings) { s.cfg.RetryDelay = d }
}

// WithRetryJitter 开关 ±25% 重试抖动
func WithRetryJitter(enabled bool) Option {
	return func(s *settings) { s.cfg.RetryJitter = enabled }
}

// WithVerbose 未提供 logger 时使用 zap 开发模式日志
func WithVerbose(enabled bool) Option {
	return func(s *settings) { s.cfg.Verbose = enabled }
}

// WithLogger 设置日志器
func WithLogger(logger *zap.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// WithHTTPClient 使用自定义 http.Client，此时 WithTimeout 不生效
func WithHTTPClient(hc *http.Client) Option {
	return func(s *settings) { s.httpClient = hc }
}

// WithCAFile 额外信任 PEM 文件中的 CA，服务使用自签名证书时设置
func WithCAFile(path string) Option {
	return func(s *settings) { s.cfg.CAFile = path }
}

// WithRateLimit 客户端侧限流，rps <= 0 关闭
func WithRateLimit(rps float64, burst int) Option {
	return func(s *settings) {
		s.cfg.RateLimitRPS = rps
		s.cfg.RateLimitBurst = burst
	}
}

// WithMaxConcurrency 设置 StructureAll 的最大并发
func WithMaxConcurrency(n int) Option {
	return func(s *settings) { s.cfg.MaxConcurrency = n }
}

// WithMetrics 在 reg 上注册客户端 Prometheus 指标
func WithMetrics(reg prometheus.Registerer) Option {
	return func(s *settings) { s.registerer = reg }
}

// =============================================================================
// 🧩 单次调用选项
// =============================================================================

// StructureOption 配置单次结构化调用
type StructureOption func(*api.StructureRequest)

// WithSystemPrompt 覆盖默认系统提示词
func WithSystemPrompt(prompt string) StructureOption {
	return func(r *api.StructureRequest) { r.SystemPrompt = prompt }
}

// WithModel 覆盖本次调用的模型
func WithModel(model string) StructureOption {
	return func(r *api.StructureRequest) { r.Model = model }
}

// WithSchemaDescription 在提示词中包含模型与字段描述
func WithSchemaDescription(include bool) StructureOption {
	return func(r *api.StructureRequest) { r.IncludeSchemaDescription = include }
}

// WithSchemaName 覆盖提示词中的目标模型名
func WithSchemaName(name string) StructureOption {
	return func(r *api.StructureRequest) { r.SchemaName = name }
}
