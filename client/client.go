package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/BaSui01/schemaforge/api"
	"github.com/BaSui01/schemaforge/config"
	"github.com/BaSui01/schemaforge/internal/metrics"
	"github.com/BaSui01/schemaforge/internal/telemetry"
	"github.com/BaSui01/schemaforge/internal/tlsutil"
	"github.com/BaSui01/schemaforge/retry"
	"github.com/BaSui01/schemaforge/structured"
	"github.com/BaSui01/schemaforge/types"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// maxRetryDelay 单次重试等待上限
	maxRetryDelay = 30 * time.Second
	// maxResponseBytes 响应体读取上限
	maxResponseBytes = 32 << 20
	userAgent        = "schemaforge-go"
)

// Client SchemaForge 结构化服务客户端，可并发使用
type Client struct {
	cfg        config.ClientConfig
	baseURL    *url.URL
	httpClient *http.Client
	limiter    *rate.Limiter
	metrics    *metrics.ClientCollector
	validator  structured.SchemaValidator
	logger     *zap.Logger
}

// New 创建客户端。未设置的字段取 config.DefaultClientConfig 的默认值。
func New(opts ...Option) (*Client, error) {
	s := &settings{cfg: config.DefaultClientConfig()}
	for _, opt := range opts {
		opt(s)
	}
	return build(s)
}

// NewFromEnv 以 SCHEMAFORGE_CLIENT_* 环境变量为基础创建客户端，opts 可覆盖
func NewFromEnv(opts ...Option) (*Client, error) {
	cfg, err := config.LoadClientConfig()
	if err != nil {
		return nil, err
	}
	return New(append([]Option{WithConfig(cfg)}, opts...)...)
}

func build(s *settings) (*Client, error) {
	if err := s.cfg.Validate(); err != nil {
		return nil, err
	}
	base, err := url.Parse(strings.TrimRight(s.cfg.APIBase, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("client config: invalid api_base %q", s.cfg.APIBase)
	}

	logger := s.logger
	if logger == nil {
		logger = zap.NewNop()
		if s.cfg.Verbose {
			if dev, err := zap.NewDevelopment(); err == nil {
				logger = dev
			}
		}
	}
	logger = logger.With(zap.String("component", "schemaforge_client"))

	maxConcurrency := s.cfg.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = config.DefaultClientConfig().MaxConcurrency
	}
	hc := s.httpClient
	if hc == nil {
		tlsCfg, err := tlsutil.ClientConfig(s.cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("client config: %w", err)
		}
		hc = tlsutil.NewHTTPClient(s.cfg.Timeout, tlsCfg, maxConcurrency)
	}

	c := &Client{
		cfg:        s.cfg,
		baseURL:    base,
		httpClient: hc,
		validator:  structured.NewValidator(),
		logger:     logger,
	}
	c.cfg.MaxConcurrency = maxConcurrency
	if s.cfg.RateLimitRPS > 0 {
		burst := s.cfg.RateLimitBurst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(s.cfg.RateLimitRPS), burst)
	}
	if s.registerer != nil {
		c.metrics = metrics.NewClientCollector("schemaforge_sdk", s.registerer)
	}
	return c, nil
}

// Config 返回客户端配置副本
func (c *Client) Config() config.ClientConfig { return c.cfg }

// =============================================================================
// 🔌 传输层
// =============================================================================

// call 发送一次逻辑调用（含重试）并把信封中的 data 解码到 out。
// 同一逻辑调用的所有尝试共享一个 X-Request-ID。
func (c *Client) call(ctx context.Context, op, method, path string, body, out any) (err error) {
	requestID := uuid.NewString()
	ctx, span := telemetry.StartSpan(ctx, "schemaforge.client."+op,
		attribute.String("schemaforge.request_id", requestID),
	)
	start := time.Now()
	defer func() {
		telemetry.EndSpan(span, err)
		c.metrics.RecordRequest(op, metrics.StatusLabel(err), time.Since(start))
	}()

	var payload []byte
	if body != nil {
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("encode %s request: %w", op, err)
		}
	}

	logger := c.logger.With(zap.String("op", op), zap.String("request_id", requestID))
	policy := &retry.Policy{
		MaxRetries:   c.cfg.MaxRetries,
		InitialDelay: c.cfg.RetryDelay,
		MaxDelay:     maxRetryDelay,
		Multiplier:   2,
		Jitter:       c.cfg.RetryJitter,
		Classifier:   isRetryable,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			c.metrics.RecordRetry(op)
			logger.Info("retrying request",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(err),
			)
		},
	}
	retryer := retry.NewBackoffRetryer(policy, logger)

	env, err := retry.DoWithResult(ctx, retryer, func(ctx context.Context, attempt int) (*api.RawResponse, error) {
		return c.attempt(ctx, method, path, payload, requestID, logger)
	})
	if err != nil {
		return err
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return types.NewError(types.ErrUpstreamError, "decode "+op+" response").WithCause(err)
		}
	}
	return nil
}

func (c *Client) attempt(ctx context.Context, method, path string, payload []byte, requestID string, logger *zap.Logger) (*api.RawResponse, error) {
	resp, data, err := c.send(ctx, method, path, payload, requestID)
	if err != nil {
		return nil, err
	}

	env := &api.RawResponse{}
	if jsonErr := json.Unmarshal(data, env); jsonErr != nil {
		env = nil
	}
	if resp.StatusCode >= http.StatusBadRequest || env == nil || !env.Success {
		if env == nil && resp.StatusCode < http.StatusBadRequest {
			return nil, types.NewError(types.ErrUpstreamError, "response is not a SchemaForge envelope").
				WithHTTPStatus(http.StatusBadGateway)
		}
		apiErr := newAPIError(resp, env)
		logger.Debug("request failed",
			zap.Int("status", resp.StatusCode),
			zap.String("code", string(apiErr.Code())),
		)
		return nil, apiErr
	}
	return env, nil
}

// send 执行一次 HTTP 请求并读取响应体
func (c *Client) send(ctx context.Context, method, path string, payload []byte, requestID string) (*http.Response, []byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, nil, err
		}
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, body)
	if err != nil {
		return nil, nil, fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent+"/"+telemetry.BuildVersion())
	if requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		req.Header.Set("X-API-Key", c.cfg.APIKey)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, nil, ctxErr
		}
		return nil, nil, retry.WrapRetryable(fmt.Errorf("%s %s: %w", method, path, err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, nil, retry.WrapRetryable(fmt.Errorf("read response: %w", err))
	}
	return resp, data, nil
}

// isRetryable 网络错误与 429/5xx 可重试，调用方取消不重试
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	return retry.IsRetryable(err)
}
