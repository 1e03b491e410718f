package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/schemaforge/config"
	"github.com/BaSui01/schemaforge/internal/tlsutil"
	"github.com/BaSui01/schemaforge/llm"
	"github.com/BaSui01/schemaforge/llm/providers"
	"github.com/BaSui01/schemaforge/types"
)

const (
	defaultTimeout    = 60 * time.Second
	defaultChatPath   = "/v1/chat/completions"
	defaultModelsPath = "/v1/models"
	fallbackModel     = "gpt-4o-mini"
)

// Config OpenAI 兼容服务商配置
type Config struct {
	// ProviderName 出现在 "provider:model" 标识中
	ProviderName string
	// APIKey 为空时不发送认证头
	APIKey string

	BaseURL      string
	DefaultModel string
	// Timeout 单次 HTTP 请求超时，默认 60s
	Timeout time.Duration
	// EndpointPath 默认 /v1/chat/completions
	EndpointPath string
	// ModelsEndpoint 健康检查路径，默认 /v1/models
	ModelsEndpoint string
	// JSONMode 请求未指定 response_format 时发送 json_object
	JSONMode bool
	// SetAuth 自定义认证头，默认 Authorization: Bearer
	SetAuth func(h http.Header, apiKey string)
}

// FromProviderConfig 把配置文件条目转成 Config
func FromProviderConfig(pc config.ProviderConfig) Config {
	return Config{
		ProviderName: pc.Name,
		APIKey:       pc.APIKey,
		BaseURL:      pc.BaseURL,
		DefaultModel: pc.DefaultModel,
		Timeout:      pc.Timeout,
		EndpointPath: pc.EndpointPath,
		JSONMode:     pc.JSONMode,
	}
}

func bearer(h http.Header, apiKey string) {
	if apiKey != "" {
		h.Set("Authorization", "Bearer "+apiKey)
	}
}

// Provider 基于 net/http 的 llm.Provider 实现，适用于 OpenAI、DeepSeek、
// Ollama、vLLM 等兼容 chat completions 接口的服务
type Provider struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

var _ llm.Provider = (*Provider)(nil)

func New(cfg Config, logger *zap.Logger) *Provider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = defaultChatPath
	}
	if cfg.ModelsEndpoint == "" {
		cfg.ModelsEndpoint = defaultModelsPath
	}
	if cfg.SetAuth == nil {
		cfg.SetAuth = bearer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		cfg:    cfg,
		client: tlsutil.NewHTTPClient(cfg.Timeout, nil, 0),
		logger: logger.With(zap.String("component", "provider"), zap.String("provider", cfg.ProviderName)),
	}
}

func (p *Provider) Name() string { return p.cfg.ProviderName }

// send 发出请求；非 2xx 时关闭响应体并返回分类后的错误
func (p *Provider) send(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(p.cfg.BaseURL, "/")+path, rd)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	p.cfg.SetAuth(req.Header, p.cfg.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, ctx.Err()
		}
		return nil, providers.NetworkError(err, p.Name())
	}
	if resp.StatusCode >= http.StatusBadRequest {
		defer resp.Body.Close()
		return nil, providers.StatusError(resp.StatusCode, providers.UpstreamMessage(resp.Body), p.Name())
	}
	return resp, nil
}

// HealthCheck 请求模型列表接口
func (p *Provider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	start := time.Now()
	resp, err := p.send(ctx, http.MethodGet, p.cfg.ModelsEndpoint, nil)
	status := &llm.HealthStatus{Healthy: err == nil, Latency: time.Since(start)}
	if err != nil {
		return status, err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return status, nil
}

func (p *Provider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	if req == nil || len(req.Messages) == 0 {
		return nil, types.NewInvalidRequestError("chat request has no messages").WithProvider(p.Name())
	}
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	wire := providers.EncodeRequest(req, p.cfg.DefaultModel, fallbackModel)
	if wire.ResponseFormat == nil && p.cfg.JSONMode {
		wire.ResponseFormat = llm.JSONObjectFormat
	}
	payload, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("encode chat request: %w", err)
	}

	start := time.Now()
	resp, err := p.send(ctx, http.MethodPost, p.cfg.EndpointPath, payload)
	if err != nil {
		p.logger.Warn("completion failed", zap.String("model", wire.Model), zap.Error(err))
		return nil, err
	}
	defer resp.Body.Close()

	var reply providers.WireResponse
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, providers.MalformedReply("invalid completion response: "+err.Error(), p.Name())
	}
	if len(reply.Choices) == 0 {
		return nil, providers.MalformedReply("completion response has no choices", p.Name())
	}

	out := reply.Decode(p.Name())
	if out.Model == "" {
		out.Model = wire.Model
	}
	p.logger.Debug("completion done",
		zap.String("model", out.Model),
		zap.Int("total_tokens", out.Usage.TotalTokens),
		zap.Duration("latency", time.Since(start)))
	return out, nil
}
