package providers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/BaSui01/schemaforge/types"
)

// statusOverloaded 部分服务商用于表示模型过载
const statusOverloaded = 529

type classification struct {
	code      types.ErrorCode
	retryable bool
}

var statusClasses = map[int]classification{
	http.StatusUnauthorized:          {types.ErrUnauthorized, false},
	http.StatusForbidden:             {types.ErrForbidden, false},
	http.StatusNotFound:              {types.ErrModelNotFound, false},
	http.StatusRequestTimeout:        {types.ErrUpstreamTimeout, true},
	http.StatusTooManyRequests:       {types.ErrRateLimited, true},
	http.StatusBadGateway:            {types.ErrUpstreamError, true},
	http.StatusServiceUnavailable:    {types.ErrUpstreamError, true},
	http.StatusGatewayTimeout:        {types.ErrUpstreamTimeout, true},
	statusOverloaded:                 {types.ErrModelOverloaded, true},
	http.StatusBadRequest:            {types.ErrInvalidRequest, false},
	http.StatusRequestEntityTooLarge: {types.ErrInvalidRequest, false},
}

// 400/413 的正文关键字细分，按顺序匹配
var bodyHints = []struct {
	code     types.ErrorCode
	keywords []string
}{
	{types.ErrContextTooLong, []string{"context length", "context_length", "too many tokens"}},
	{types.ErrQuotaExceeded, []string{"quota", "credit"}},
	{types.ErrContentFiltered, []string{"content_filter", "content policy"}},
}

// StatusError 把上游非 2xx 响应转成 *types.Error。
// 429、408、5xx 可重试；其余 4xx 不可重试。
func StatusError(status int, msg, provider string) *types.Error {
	c, ok := statusClasses[status]
	if !ok {
		c = classification{types.ErrUpstreamError, status >= http.StatusInternalServerError}
	}
	if c.code == types.ErrInvalidRequest {
		lower := strings.ToLower(msg)
	hints:
		for _, h := range bodyHints {
			for _, kw := range h.keywords {
				if strings.Contains(lower, kw) {
					c.code = h.code
					break hints
				}
			}
		}
	}
	return types.NewError(c.code, msg).
		WithHTTPStatus(status).
		WithRetryable(c.retryable).
		WithProvider(provider)
}

// NetworkError 连接层失败一律可重试，超时映射为 ErrUpstreamTimeout
func NetworkError(err error, provider string) *types.Error {
	code, status := types.ErrUpstreamError, http.StatusBadGateway
	var te interface{ Timeout() bool }
	if errors.As(err, &te) && te.Timeout() {
		code, status = types.ErrUpstreamTimeout, http.StatusGatewayTimeout
	}
	return types.NewError(code, err.Error()).
		WithHTTPStatus(status).
		WithRetryable(true).
		WithProvider(provider).
		WithCause(err)
}

// MalformedReply 上游返回 2xx 但正文不可用
func MalformedReply(msg, provider string) *types.Error {
	return types.NewError(types.ErrUpstreamError, msg).
		WithHTTPStatus(http.StatusBadGateway).
		WithRetryable(true).
		WithProvider(provider)
}

// UpstreamMessage 从错误响应体中提取可读消息，
// 优先取 OpenAI 风格的 error.message，否则返回原文
func UpstreamMessage(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 64<<10))
	if err != nil {
		return "unreadable error response"
	}
	var e WireError
	if json.Unmarshal(data, &e) == nil && e.Error.Message != "" {
		if e.Error.Type == "" {
			return e.Error.Message
		}
		return e.Error.Message + " (type: " + e.Error.Type + ")"
	}
	return strings.TrimSpace(string(data))
}
