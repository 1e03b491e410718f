package providers

import (
	"context"

	"go.uber.org/zap"

	"github.com/BaSui01/schemaforge/llm"
	"github.com/BaSui01/schemaforge/retry"
)

// RetryableProvider 对可重试错误（429、5xx、超时）按退避策略重放 Completion。
// HealthCheck 不重试。
type RetryableProvider struct {
	llm.Provider
	retryer retry.Retryer
	logger  *zap.Logger
}

var _ llm.Provider = (*RetryableProvider)(nil)

// NewRetryableProvider logger 可为 nil
func NewRetryableProvider(inner llm.Provider, policy *retry.Policy, logger *zap.Logger) *RetryableProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "retrying_provider"), zap.String("provider", inner.Name()))
	return &RetryableProvider{
		Provider: inner,
		retryer:  retry.NewBackoffRetryer(policy, logger),
		logger:   logger,
	}
}

func (p *RetryableProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	return retry.DoWithResult(ctx, p.retryer, func(ctx context.Context, attempt int) (*llm.ChatResponse, error) {
		resp, err := p.Provider.Completion(ctx, req)
		if err != nil {
			p.logger.Debug("completion attempt failed", zap.Int("attempt", attempt), zap.Error(err))
		}
		return resp, err
	})
}
