package providers

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/schemaforge/llm"
	"github.com/BaSui01/schemaforge/llm/circuitbreaker"
	"github.com/BaSui01/schemaforge/types"
)

// GuardedProvider 用熔断器包裹 Completion。熔断打开时不访问上游，
// 直接返回 SERVICE_UNAVAILABLE；HealthCheck 同时反映熔断状态。
type GuardedProvider struct {
	llm.Provider
	breaker *circuitbreaker.Breaker
}

var _ llm.Provider = (*GuardedProvider)(nil)

// NewGuardedProvider cfg 零值字段使用 circuitbreaker 默认值
func NewGuardedProvider(inner llm.Provider, cfg circuitbreaker.Config, logger *zap.Logger) *GuardedProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "circuit_breaker"), zap.String("provider", inner.Name()))
	return &GuardedProvider{Provider: inner, breaker: circuitbreaker.New(cfg, logger)}
}

func (p *GuardedProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	resp, err := circuitbreaker.Execute(ctx, p.breaker, func(ctx context.Context) (*llm.ChatResponse, error) {
		return p.Provider.Completion(ctx, req)
	})
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return nil, types.NewError(types.ErrServiceUnavailable,
			fmt.Sprintf("provider %s temporarily unavailable", p.Name())).
			WithCause(err).
			WithProvider(p.Name())
	}
	return resp, err
}

// HealthCheck 熔断打开时报告不健康，不探测上游
func (p *GuardedProvider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	if p.breaker.State() == circuitbreaker.StateOpen {
		return &llm.HealthStatus{Healthy: false}, nil
	}
	return p.Provider.HealthCheck(ctx)
}

// State 当前熔断状态
func (p *GuardedProvider) State() circuitbreaker.State { return p.breaker.State() }
