package client

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/BaSui01/schemaforge/api"
	"github.com/BaSui01/schemaforge/types"
)

// ErrGenerationFailed 模型生成失败，GenerationResult 的访问器同样返回此错误
var ErrGenerationFailed = errors.New("schemaforge: model generation failed")

// APIError 服务端返回的错误
type APIError struct {
	StatusCode int
	RequestID  string
	Err        *types.Error

	retryAfter time.Duration
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("schemaforge: %s (HTTP %d): %s", e.Err.Code, e.StatusCode, e.Err.Message)
	if e.RequestID != "" {
		msg += " [request_id=" + e.RequestID + "]"
	}
	return msg
}

// Unwrap 暴露 *types.Error，以便 types.IsErrorCode 等判断
func (e *APIError) Unwrap() error { return e.Err }

// Code 返回错误码
func (e *APIError) Code() types.ErrorCode { return e.Err.Code }

// Retryable 429、5xx 或服务端显式标记时可重试
func (e *APIError) Retryable() bool {
	return e.Err.Retryable ||
		e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode >= http.StatusInternalServerError
}

// RetryAfter 实现 retry.RetryAfterer
func (e *APIError) RetryAfter() time.Duration { return e.retryAfter }

func newAPIError(resp *http.Response, env *api.RawResponse) *APIError {
	requestID := resp.Header.Get("X-Request-ID")
	var te *types.Error
	if env != nil && env.Error != nil {
		te = env.Error.ToError(resp.StatusCode)
		if env.RequestID != "" {
			requestID = env.RequestID
		}
	} else {
		code := codeForStatus(resp.StatusCode)
		te = types.NewError(code, http.StatusText(resp.StatusCode)).WithHTTPStatus(resp.StatusCode)
	}
	return &APIError{
		StatusCode: resp.StatusCode,
		RequestID:  requestID,
		Err:        te,
		retryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
	}
}

// codeForStatus 响应体不是错误信封时按状态码推断错误码
func codeForStatus(status int) types.ErrorCode {
	switch {
	case status == http.StatusUnauthorized:
		return types.ErrUnauthorized
	case status == http.StatusForbidden:
		return types.ErrForbidden
	case status == http.StatusNotFound:
		return types.ErrNotFound
	case status == http.StatusTooManyRequests:
		return types.ErrRateLimited
	case status == http.StatusGatewayTimeout:
		return types.ErrUpstreamTimeout
	case status == http.StatusServiceUnavailable:
		return types.ErrServiceUnavailable
	case status >= 500:
		return types.ErrUpstreamError
	default:
		return types.ErrInvalidRequest
	}
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
