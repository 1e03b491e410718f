package types

import (
	"context"
	"errors"
	"net/http"
)

// ErrorCode 跨 SDK、服务端与 provider 统一的错误码，出现在响应外壳的 error.code 中
type ErrorCode string

// 请求与上游
const (
	ErrInvalidRequest     ErrorCode = "INVALID_REQUEST"
	ErrUnauthorized       ErrorCode = "UNAUTHORIZED"
	ErrForbidden          ErrorCode = "FORBIDDEN"
	ErrNotFound           ErrorCode = "NOT_FOUND"
	ErrRateLimited        ErrorCode = "RATE_LIMITED"
	ErrQuotaExceeded      ErrorCode = "QUOTA_EXCEEDED"
	ErrModelNotFound      ErrorCode = "MODEL_NOT_FOUND"
	ErrContextTooLong     ErrorCode = "CONTEXT_TOO_LONG"
	ErrContentFiltered    ErrorCode = "CONTENT_FILTERED"
	ErrModelOverloaded    ErrorCode = "MODEL_OVERLOADED"
	ErrTimeout            ErrorCode = "TIMEOUT"
	ErrUpstreamTimeout    ErrorCode = "UPSTREAM_TIMEOUT"
	ErrUpstreamError      ErrorCode = "UPSTREAM_ERROR"
	ErrServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	ErrInternalError      ErrorCode = "INTERNAL_ERROR"
)

// 结构化与模型生成
const (
	ErrSchemaInvalid    ErrorCode = "SCHEMA_INVALID"
	ErrValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrExtractionFailed ErrorCode = "EXTRACTION_FAILED"
	ErrGenerationFailed ErrorCode = "GENERATION_FAILED"
	ErrTokenizerError   ErrorCode = "TOKENIZER_ERROR"
	ErrStorageFailure   ErrorCode = "STORAGE_FAILURE"
)

var codeStatus = map[ErrorCode]int{
	ErrInvalidRequest:     http.StatusBadRequest,
	ErrSchemaInvalid:      http.StatusBadRequest,
	ErrUnauthorized:       http.StatusUnauthorized,
	ErrForbidden:          http.StatusForbidden,
	ErrNotFound:           http.StatusNotFound,
	ErrModelNotFound:      http.StatusNotFound,
	ErrContextTooLong:     http.StatusRequestEntityTooLarge,
	ErrValidationFailed:   http.StatusUnprocessableEntity,
	ErrExtractionFailed:   http.StatusUnprocessableEntity,
	ErrGenerationFailed:   http.StatusUnprocessableEntity,
	ErrContentFiltered:    http.StatusUnprocessableEntity,
	ErrRateLimited:        http.StatusTooManyRequests,
	ErrQuotaExceeded:      http.StatusTooManyRequests,
	ErrTimeout:            http.StatusGatewayTimeout,
	ErrUpstreamTimeout:    http.StatusGatewayTimeout,
	ErrUpstreamError:      http.StatusBadGateway,
	ErrServiceUnavailable: http.StatusServiceUnavailable,
	ErrModelOverloaded:    http.StatusServiceUnavailable,
}

// DefaultHTTPStatus 错误码的默认状态码，未知码为 500
func DefaultHTTPStatus(code ErrorCode) int {
	if s, ok := codeStatus[code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// Error 携带错误码、HTTP 状态、可重试标记与来源 provider。
// With* 方法原地修改并返回自身，便于链式构造。
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	Provider   string    `json:"provider,omitempty"`
	Cause      error     `json:"-"`
}

func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

func (e *Error) Error() string {
	s := "[" + string(e.Code) + "] " + e.Message
	if e.Cause != nil {
		s += ": " + e.Cause.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Cause }

func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

func (e *Error) WithProvider(provider string) *Error {
	e.Provider = provider
	return e
}

// =============================================================================
// 🔍 错误链查询
// =============================================================================

// AsError 取错误链上第一个 *Error
func AsError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

func IsErrorCode(err error, code ErrorCode) bool {
	e, ok := AsError(err)
	return ok && e.Code == code
}

// IsRetryable *Error 看 Retryable；其余错误只有超时可重试，取消不重试
func IsRetryable(err error) bool {
	if e, ok := AsError(err); ok {
		return e.Retryable
	}
	return err != nil && errors.Is(err, context.DeadlineExceeded)
}

// HTTPStatusFor 优先取显式状态码，其次按错误码，非 *Error 为 500
func HTTPStatusFor(err error) int {
	e, ok := AsError(err)
	switch {
	case !ok:
		return http.StatusInternalServerError
	case e.HTTPStatus != 0:
		return e.HTTPStatus
	}
	return DefaultHTTPStatus(e.Code)
}

// WrapError 已是 *Error 时原样返回，否则用 code 与 message 包装
func WrapError(err error, code ErrorCode, message string) *Error {
	if err == nil {
		return nil
	}
	if e, ok := AsError(err); ok {
		return e
	}
	return NewError(code, message).WithCause(err)
}

// =============================================================================
// 🧱 常用构造
// =============================================================================

func NewInvalidRequestError(message string) *Error {
	return NewError(ErrInvalidRequest, message).WithHTTPStatus(http.StatusBadRequest)
}

func NewNotFoundError(message string) *Error {
	return NewError(ErrNotFound, message).WithHTTPStatus(http.StatusNotFound)
}

// NewTimeoutError 可重试
func NewTimeoutError(message string) *Error {
	return NewError(ErrTimeout, message).WithHTTPStatus(http.StatusGatewayTimeout).WithRetryable(true)
}

// NewRateLimitError 可重试
func NewRateLimitError(message string) *Error {
	return NewError(ErrRateLimited, message).WithHTTPStatus(http.StatusTooManyRequests).WithRetryable(true)
}

// NewInternalError 对外只暴露 message，cause 仅用于日志
func NewInternalError(message string, cause error) *Error {
	return NewError(ErrInternalError, message).WithHTTPStatus(http.StatusInternalServerError).WithCause(cause)
}
