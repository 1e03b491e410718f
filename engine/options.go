package engine

import (
	"go.uber.org/zap"

	"github.com/BaSui01/schemaforge/cache"
	"github.com/BaSui01/schemaforge/config"
	"github.com/BaSui01/schemaforge/internal/metrics"
	"github.com/BaSui01/schemaforge/store"
	"github.com/BaSui01/schemaforge/structured"
)

// Options 引擎参数
type Options struct {
	DefaultModel      string
	MaxRepairAttempts int
	// 0 表示不限制
	MaxContentTokens int
	Temperature      float32
	MaxTokens        int
	CodePackage      string
	UseTiktoken      bool
}

// OptionsFromConfig 从配置构建引擎参数
func OptionsFromConfig(cfg config.EngineConfig, tok config.TokenizerConfig) Options {
	return Options{
		DefaultModel:      cfg.DefaultModel,
		MaxRepairAttempts: cfg.MaxRepairAttempts,
		MaxContentTokens:  cfg.MaxContentTokens,
		Temperature:       cfg.Temperature,
		MaxTokens:         cfg.MaxTokens,
		CodePackage:       cfg.CodePackage,
		UseTiktoken:       tok.UseTiktoken,
	}
}

// Option 可选依赖
type Option func(*deps)

type deps struct {
	cache     cache.ResultCache
	store     store.ModelStore
	metrics   *metrics.Collector
	validator structured.SchemaValidator
	logger    *zap.Logger
}

// WithCache 启用结构化结果缓存
func WithCache(c cache.ResultCache) Option {
	return func(d *deps) { d.cache = c }
}

// WithStore 生成成功后写入模型存储
func WithStore(s store.ModelStore) Option {
	return func(d *deps) { d.store = s }
}

// WithMetrics 设置指标收集器
func WithMetrics(m *metrics.Collector) Option {
	return func(d *deps) { d.metrics = m }
}

// WithValidator 替换默认的 schema 校验器
func WithValidator(v structured.SchemaValidator) Option {
	return func(d *deps) { d.validator = v }
}

// WithLogger 设置日志
func WithLogger(l *zap.Logger) Option {
	return func(d *deps) { d.logger = l }
}

func buildDeps(component string, opts []Option) deps {
	d := deps{}
	for _, opt := range opts {
		opt(&d)
	}
	if d.validator == nil {
		d.validator = structured.NewValidator()
	}
	if d.logger == nil {
		d.logger = zap.NewNop()
	}
	d.logger = d.logger.With(zap.String("component", component))
	return d
}

func (o Options) attempts() int {
	if o.MaxRepairAttempts < 0 {
		return 1
	}
	return o.MaxRepairAttempts + 1
}
