package types

import "context"

// ctxKey 以类型参数区分，避免与其他包的 context key 冲突
type ctxKey[T any] struct{ name string }

var (
	requestIDKey = ctxKey[string]{"request_id"}
	traceIDKey   = ctxKey[string]{"trace_id"}
	llmModelKey  = ctxKey[string]{"llm_model"}
	apiKeyIDKey  = ctxKey[string]{"api_key_id"}
)

func (k ctxKey[T]) with(ctx context.Context, v T) context.Context {
	return context.WithValue(ctx, k, v)
}

func (k ctxKey[T]) get(ctx context.Context) (T, bool) {
	v, ok := ctx.Value(k).(T)
	return v, ok
}

// getString 空串视为未设置
func getString(ctx context.Context, k ctxKey[string]) (string, bool) {
	v, ok := k.get(ctx)
	return v, ok && v != ""
}

// WithRequestID 由 RequestID 中间件写入，响应外壳与日志读取
func WithRequestID(ctx context.Context, id string) context.Context { return requestIDKey.with(ctx, id) }

func RequestID(ctx context.Context) (string, bool) { return getString(ctx, requestIDKey) }

func WithTraceID(ctx context.Context, id string) context.Context { return traceIDKey.with(ctx, id) }

func TraceID(ctx context.Context) (string, bool) { return getString(ctx, traceIDKey) }

// WithLLMModel 记录实际调用的 "provider:model"
func WithLLMModel(ctx context.Context, model string) context.Context {
	return llmModelKey.with(ctx, model)
}

func LLMModel(ctx context.Context) (string, bool) { return getString(ctx, llmModelKey) }

// WithAPIKeyID 记录通过认证的凭据标识（API key 前缀或 JWT subject）
func WithAPIKeyID(ctx context.Context, id string) context.Context { return apiKeyIDKey.with(ctx, id) }

func APIKeyID(ctx context.Context) (string, bool) { return getString(ctx, apiKeyIDKey) }
