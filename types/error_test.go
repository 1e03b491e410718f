package types

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_ChainingAndHelpers(t *testing.T) {
	t.Parallel()

	root := errors.New("root")
	err := NewError(ErrUpstreamError, "upstream failed").
		WithCause(root).
		WithHTTPStatus(502).
		WithRetryable(true).
		WithProvider("openai")

	assert.True(t, IsErrorCode(err, ErrUpstreamError))
	assert.True(t, IsRetryable(err))
	assert.ErrorIs(t, err, root)
	assert.Equal(t, "[UPSTREAM_ERROR] upstream failed: root", err.Error())
	assert.Equal(t, "openai", err.Provider)
}

func TestAsError_WrappedChain(t *testing.T) {
	t.Parallel()

	inner := NewRateLimitError("slow down")
	wrapped := fmt.Errorf("call failed: %w", inner)

	got, ok := AsError(wrapped)
	require.True(t, ok)
	assert.Same(t, inner, got)
	assert.True(t, IsErrorCode(wrapped, ErrRateLimited))
	assert.True(t, IsRetryable(wrapped))
	assert.Equal(t, http.StatusTooManyRequests, HTTPStatusFor(wrapped))
}

func TestIsRetryable_PlainErrors(t *testing.T) {
	t.Parallel()

	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(errors.New("boom")))
	assert.False(t, IsRetryable(context.Canceled))
	assert.True(t, IsRetryable(fmt.Errorf("wrap: %w", context.DeadlineExceeded)))
}

func TestWrapError(t *testing.T) {
	t.Parallel()

	assert.Nil(t, WrapError(nil, ErrInternalError, "x"))

	existing := NewInvalidRequestError("bad")
	assert.Same(t, existing, WrapError(fmt.Errorf("ctx: %w", existing), ErrInternalError, "x"))

	plain := errors.New("disk full")
	wrapped := WrapError(plain, ErrStorageFailure, "save failed")
	assert.Equal(t, ErrStorageFailure, wrapped.Code)
	assert.ErrorIs(t, wrapped, plain)
}

func TestDefaultHTTPStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrInvalidRequest, http.StatusBadRequest},
		{ErrSchemaInvalid, http.StatusBadRequest},
		{ErrUnauthorized, http.StatusUnauthorized},
		{ErrForbidden, http.StatusForbidden},
		{ErrModelNotFound, http.StatusNotFound},
		{ErrContextTooLong, http.StatusRequestEntityTooLarge},
		{ErrGenerationFailed, http.StatusUnprocessableEntity},
		{ErrValidationFailed, http.StatusUnprocessableEntity},
		{ErrRateLimited, http.StatusTooManyRequests},
		{ErrUpstreamTimeout, http.StatusGatewayTimeout},
		{ErrUpstreamError, http.StatusBadGateway},
		{ErrModelOverloaded, http.StatusServiceUnavailable},
		{ErrNotFound, http.StatusNotFound},
		{ErrorCode("UNKNOWN"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, DefaultHTTPStatus(tt.code))
		})
	}
}

func TestHTTPStatusFor_NonTyped(t *testing.T) {
	t.Parallel()
	assert.Equal(t, http.StatusInternalServerError, HTTPStatusFor(errors.New("x")))
	assert.Equal(t, 418, HTTPStatusFor(NewError(ErrInternalError, "tea").WithHTTPStatus(418)))
}

func TestContextHelpers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	_, ok := RequestID(ctx)
	assert.False(t, ok)

	ctx = WithRequestID(ctx, "req-1")
	ctx = WithTraceID(ctx, "trace-1")
	ctx = WithLLMModel(ctx, "openai:gpt-4")
	ctx = WithAPIKeyID(ctx, "key-1")

	v, ok := RequestID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "req-1", v)
	v, _ = TraceID(ctx)
	assert.Equal(t, "trace-1", v)
	v, _ = LLMModel(ctx)
	assert.Equal(t, "openai:gpt-4", v)
	v, _ = APIKeyID(ctx)
	assert.Equal(t, "key-1", v)

	_, ok = RequestID(WithRequestID(context.Background(), ""))
	assert.False(t, ok)
}
