package engine

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/BaSui01/schemaforge/internal/metrics"
	"github.com/BaSui01/schemaforge/internal/telemetry"
	"github.com/BaSui01/schemaforge/llm"
	"github.com/BaSui01/schemaforge/types"
)

// caller 封装模型解析与单次 LLM 调用
type caller struct {
	registry *llm.Registry
	opts     Options
	metrics  *metrics.Collector
	logger   *zap.Logger
}

func (c *caller) resolve(model string) (llm.Provider, llm.ModelID, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		model = c.opts.DefaultModel
	}
	if model == "" {
		return nil, llm.ModelID{}, types.NewInvalidRequestError("no model specified and no default model configured")
	}
	return c.registry.Resolve(model)
}

func (c *caller) complete(ctx context.Context, p llm.Provider, mid llm.ModelID, messages []llm.Message) (*llm.ChatResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "llm.completion",
		attribute.String("llm.provider", p.Name()),
		attribute.String("llm.model", mid.Model),
	)
	start := time.Now()
	resp, err := p.Completion(ctx, &llm.ChatRequest{
		Model:          mid.Model,
		Messages:       messages,
		MaxTokens:      c.opts.MaxTokens,
		Temperature:    c.opts.Temperature,
		ResponseFormat: llm.JSONObjectFormat,
	})
	telemetry.EndSpan(span, err)

	var usage llm.ChatUsage
	if resp != nil {
		usage = resp.Usage
	}
	c.metrics.RecordLLMRequest(p.Name(), mid.Model, metrics.StatusLabel(err), time.Since(start),
		usage.PromptTokens, usage.CompletionTokens)
	telemetry.RecordTokens(ctx, p.Name(), mid.Model, usage.PromptTokens, usage.CompletionTokens)

	if err != nil {
		c.logger.Warn("llm completion failed",
			zap.String("provider", p.Name()),
			zap.String("model", mid.Model),
			zap.Error(err))
		if _, ok := types.AsError(err); ok {
			return nil, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, types.NewTimeoutError("request canceled or timed out").WithCause(err)
		}
		return nil, types.WrapError(err, types.ErrUpstreamError, "llm completion failed").
			WithHTTPStatus(types.DefaultHTTPStatus(types.ErrUpstreamError)).
			WithProvider(p.Name())
	}
	return resp, nil
}
