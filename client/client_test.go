package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BaSui01/schemaforge/api"
	"github.com/BaSui01/schemaforge/retry"
	"github.com/BaSui01/schemaforge/structured"
	"github.com/BaSui01/schemaforge/testutil"
	"github.com/BaSui01/schemaforge/testutil/fixtures"
	"github.com/BaSui01/schemaforge/types"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeService 记录请求并按 handler 返回响应
type fakeService struct {
	server *httptest.Server

	mu       sync.Mutex
	requests []*http.Request
	bodies   [][]byte
	calls    atomic.Int32
}

func newFakeService(t *testing.T, handler func(w http.ResponseWriter, r *http.Request, n int)) *fakeService {
	t.Helper()
	f := &fakeService{}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.requests = append(f.requests, r.Clone(context.Background()))
		f.bodies = append(f.bodies, body)
		f.mu.Unlock()
		r.Body = io.NopCloser(bytes.NewReader(body))
		handler(w, r, int(f.calls.Add(1)))
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeService) request(i int) (*http.Request, []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[i], f.bodies[i]
}

func writeData(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(api.Response{Success: true, Data: data, Timestamp: time.Now()})
}

func writeErr(w http.ResponseWriter, status int, code types.ErrorCode, msg string, retryable bool) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(api.Response{
		Error:     &api.ErrorInfo{Code: string(code), Message: msg, Retryable: retryable},
		Timestamp: time.Now(),
		RequestID: "srv-req",
	})
}

func structureData(data string) api.StructureResponse {
	return api.StructureResponse{Data: json.RawMessage(data), Model: "mock:test-model", Attempts: 1}
}

func newTestClient(t *testing.T, base string, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{
		WithAPIBase(base),
		WithAPIKey("sk-test"),
		WithRetryDelay(time.Millisecond),
		WithRetryJitter(false),
	}, opts...)
	c, err := New(opts...)
	require.NoError(t, err)
	return c
}

// =============================================================================
// 🧪 构造
// =============================================================================

func TestNew(t *testing.T) {
	c, err := New()
	require.NoError(t, err)
	cfg := c.Config()
	assert.Equal(t, "http://localhost:8000", cfg.APIBase)
	assert.Equal(t, "openai:gpt-4o-mini", cfg.DefaultModel)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 8, cfg.MaxConcurrency)

	_, err = New(WithAPIBase("not a url"))
	assert.Error(t, err)

	_, err = New(WithMaxRetries(-1))
	assert.Error(t, err)
}

func TestNewFromEnv(t *testing.T) {
	t.Setenv("SCHEMAFORGE_CLIENT_API_BASE", "http://structurer.internal:9000")
	t.Setenv("SCHEMAFORGE_CLIENT_DEFAULT_MODEL", "anthropic:claude-3-haiku")

	c, err := NewFromEnv(WithAPIKey("override"))
	require.NoError(t, err)
	assert.Equal(t, "http://structurer.internal:9000", c.Config().APIBase)
	assert.Equal(t, "anthropic:claude-3-haiku", c.Config().DefaultModel)
	assert.Equal(t, "override", c.Config().APIKey)
}

// =============================================================================
// 🧪 Structure
// =============================================================================

func TestStructure_Success(t *testing.T) {
	svc := newFakeService(t, func(w http.ResponseWriter, r *http.Request, _ int) {
		writeData(w, http.StatusOK, structureData(fixtures.ProductJSON))
	})
	c := newTestClient(t, svc.server.URL)

	product, err := Structure[fixtures.Product](testutil.TestContext(t), c, fixtures.ProductText,
		WithSystemPrompt("be precise"), WithSchemaDescription(true))
	require.NoError(t, err)
	assert.Equal(t, "Aurora desk lamp", product.Name)
	assert.Equal(t, 49.9, product.Price)
	assert.Equal(t, []string{"reading", "office"}, product.Tags)

	req, body := svc.request(0)
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/api/v1/structure", req.URL.Path)
	assert.Equal(t, "Bearer sk-test", req.Header.Get("Authorization"))
	assert.Equal(t, "sk-test", req.Header.Get("X-API-Key"))
	assert.NotEmpty(t, req.Header.Get("X-Request-ID"))

	var sent api.StructureRequest
	require.NoError(t, json.Unmarshal(body, &sent))
	assert.Equal(t, fixtures.ProductText, sent.Content)
	assert.Equal(t, "openai:gpt-4o-mini", sent.Model)
	assert.Equal(t, "Product", sent.SchemaName)
	assert.Equal(t, "be precise", sent.SystemPrompt)
	assert.True(t, sent.IncludeSchemaDescription)
	require.NotNil(t, sent.Schema)
	assert.True(t, sent.Schema.IsRequired("currency"))
}

func TestStructure_ModelOverride(t *testing.T) {
	svc := newFakeService(t, func(w http.ResponseWriter, r *http.Request, _ int) {
		writeData(w, http.StatusOK, structureData(fixtures.ProductJSON))
	})
	c := newTestClient(t, svc.server.URL, WithDefaultModel("openai:gpt-4o"))

	_, err := Structure[fixtures.Product](testutil.TestContext(t), c, fixtures.ProductText, WithModel("mock:other"))
	require.NoError(t, err)

	_, body := svc.request(0)
	var sent api.StructureRequest
	require.NoError(t, json.Unmarshal(body, &sent))
	assert.Equal(t, "mock:other", sent.Model)
}

func TestStructure_RetriesTransientFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		code   types.ErrorCode
	}{
		{"service unavailable", http.StatusServiceUnavailable, types.ErrServiceUnavailable},
		{"rate limited", http.StatusTooManyRequests, types.ErrRateLimited},
		{"upstream error", http.StatusBadGateway, types.ErrUpstreamError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newFakeService(t, func(w http.ResponseWriter, r *http.Request, n int) {
				if n < 3 {
					writeErr(w, tt.status, tt.code, "try again", false)
					return
				}
				writeData(w, http.StatusOK, structureData(fixtures.ProductJSON))
			})
			c := newTestClient(t, svc.server.URL)

			product, err := Structure[fixtures.Product](testutil.TestContext(t), c, fixtures.ProductText)
			require.NoError(t, err)
			assert.Equal(t, "USD", product.Currency)
			assert.Equal(t, int32(3), svc.calls.Load())

			first, _ := svc.request(0)
			last, _ := svc.request(2)
			assert.Equal(t, first.Header.Get("X-Request-ID"), last.Header.Get("X-Request-ID"))
		})
	}
}

func TestStructure_DoesNotRetryClientErrors(t *testing.T) {
	svc := newFakeService(t, func(w http.ResponseWriter, r *http.Request, _ int) {
		writeErr(w, http.StatusBadRequest, types.ErrSchemaInvalid, "schema must be an object", false)
	})
	c := newTestClient(t, svc.server.URL)

	_, err := Structure[fixtures.Product](testutil.TestContext(t), c, fixtures.ProductText)
	require.Error(t, err)
	assert.Equal(t, int32(1), svc.calls.Load())

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, types.ErrSchemaInvalid, apiErr.Code())
	assert.Equal(t, "srv-req", apiErr.RequestID)
	assert.False(t, apiErr.Retryable())
	assert.True(t, types.IsErrorCode(err, types.ErrSchemaInvalid))
	assert.Contains(t, err.Error(), "HTTP 400")
}

func TestStructure_RetriesExhausted(t *testing.T) {
	svc := newFakeService(t, func(w http.ResponseWriter, r *http.Request, _ int) {
		writeErr(w, http.StatusServiceUnavailable, types.ErrServiceUnavailable, "down", true)
	})
	c := newTestClient(t, svc.server.URL, WithMaxRetries(2))

	_, err := Structure[fixtures.Product](testutil.TestContext(t), c, fixtures.ProductText)
	require.Error(t, err)
	assert.Equal(t, int32(3), svc.calls.Load())

	var exhausted *retry.ExhaustedError
	require.True(t, errors.As(err, &exhausted))
	assert.Equal(t, 3, exhausted.Attempts)
	assert.True(t, types.IsErrorCode(err, types.ErrServiceUnavailable))
}

func TestStructure_RetriesNonEnvelopeGatewayErrors(t *testing.T) {
	svc := newFakeService(t, func(w http.ResponseWriter, r *http.Request, n int) {
		if n == 1 {
			http.Error(w, "bad gateway", http.StatusBadGateway)
			return
		}
		writeData(w, http.StatusOK, structureData(fixtures.ProductJSON))
	})
	c := newTestClient(t, svc.server.URL)

	_, err := Structure[fixtures.Product](testutil.TestContext(t), c, fixtures.ProductText)
	require.NoError(t, err)
	assert.Equal(t, int32(2), svc.calls.Load())
}

func TestStructure_ClientSideValidation(t *testing.T) {
	svc := newFakeService(t, func(w http.ResponseWriter, r *http.Request, _ int) {
		writeData(w, http.StatusOK, structureData(fixtures.ProductJSONInvalid))
	})
	c := newTestClient(t, svc.server.URL)

	_, err := Structure[fixtures.Product](testutil.TestContext(t), c, fixtures.ProductText)
	var verrs *structured.ValidationErrors
	require.True(t, errors.As(err, &verrs), "got %v", err)
	assert.Contains(t, verrs.Error(), "currency")
	assert.Equal(t, int32(1), svc.calls.Load())
}

func TestStructure_RejectsBlankContentLocally(t *testing.T) {
	svc := newFakeService(t, func(w http.ResponseWriter, r *http.Request, _ int) {
		writeData(w, http.StatusOK, structureData(fixtures.ProductJSON))
	})
	c := newTestClient(t, svc.server.URL)

	_, err := Structure[fixtures.Product](testutil.TestContext(t), c, "   ")
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidRequest))

	_, err = c.StructureRaw(testutil.TestContext(t), fixtures.ProductText, nil)
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidRequest))

	assert.Zero(t, svc.calls.Load())
}

func TestStructure_ContextCancelStopsRetries(t *testing.T) {
	svc := newFakeService(t, func(w http.ResponseWriter, r *http.Request, _ int) {
		writeErr(w, http.StatusServiceUnavailable, types.ErrServiceUnavailable, "down", true)
	})
	c := newTestClient(t, svc.server.URL, WithRetryDelay(time.Hour), WithMaxRetries(5))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := Structure[fixtures.Product](ctx, c, fixtures.ProductText)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(1), svc.calls.Load())
}

func TestStructureWithResponse(t *testing.T) {
	svc := newFakeService(t, func(w http.ResponseWriter, r *http.Request, _ int) {
		resp := structureData(fixtures.ProductJSON)
		resp.Attempts = 2
		resp.Usage = api.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}
		writeData(w, http.StatusOK, resp)
	})
	c := newTestClient(t, svc.server.URL)

	resp, err := c.StructureWithResponse(testutil.TestContext(t), fixtures.ProductText, fixtures.ProductSchema())
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Attempts)
	assert.Equal(t, 15, resp.Usage.TotalTokens)
	assert.JSONEq(t, fixtures.ProductJSON, string(resp.Data))
}

// =============================================================================
// 🧪 Async / All
// =============================================================================

func TestStructureAsync(t *testing.T) {
	release := make(chan struct{})
	svc := newFakeService(t, func(w http.ResponseWriter, r *http.Request, _ int) {
		<-release
		writeData(w, http.StatusOK, structureData(fixtures.ProductJSON))
	})
	c := newTestClient(t, svc.server.URL)
	ctx := testutil.TestContext(t)

	f := StructureAsync[fixtures.Product](ctx, c, fixtures.ProductText)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err := f.Await(cancelled)
	assert.ErrorIs(t, err, context.Canceled)

	close(release)
	select {
	case <-f.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("future did not complete")
	}
	product, err := f.Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Aurora desk lamp", product.Name)
}

func TestStructureAll_PropagatesFirstError(t *testing.T) {
	svc := newFakeService(t, func(w http.ResponseWriter, r *http.Request, _ int) {
		writeErr(w, http.StatusUnprocessableEntity, types.ErrExtractionFailed, "nothing to extract", false)
	})
	c := newTestClient(t, svc.server.URL)

	results, err := StructureAll[fixtures.Product](testutil.TestContext(t), c, []string{"a", "b"})
	assert.Nil(t, results)
	assert.True(t, types.IsErrorCode(err, types.ErrExtractionFailed))
	assert.Contains(t, err.Error(), "item ")
}

func TestStructureAll_Empty(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:1")
	results, err := StructureAll[fixtures.Product](testutil.TestContext(t), c, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

// =============================================================================
// 🧪 GenerateModel
// =============================================================================

func personModels(t *testing.T) map[string]*structured.JSONSchema {
	t.Helper()
	var reply struct {
		Models map[string]*structured.JSONSchema `json:"models"`
	}
	require.NoError(t, json.Unmarshal([]byte(fixtures.PersonModelsReply), &reply))
	for name, s := range reply.Models {
		s.Title = name
	}
	return reply.Models
}

func TestGenerateModel_Success(t *testing.T) {
	models := personModels(t)
	svc := newFakeService(t, func(w http.ResponseWriter, r *http.Request, _ int) {
		writeData(w, http.StatusOK, api.GenerateModelResponse{
			Success:   true,
			ModelName: "Person",
			MainModel: "Person",
			Models:    models,
			Code:      "package models\n\ntype Person struct{}\n",
			Model:     "mock:test-model",
			Usage:     &api.Usage{TotalTokens: 42},
		})
	})
	c := newTestClient(t, svc.server.URL)

	result, err := c.GenerateModel(testutil.TestContext(t), api.GenerateModelRequest{
		SampleData:  fixtures.PersonSample,
		ModelName:   "Person",
		Description: "people",
	})
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, 42, result.Usage.TotalTokens)

	all, err := result.Models()
	require.NoError(t, err)
	assert.Contains(t, all, "Person")
	assert.Contains(t, all, "Address")

	names, err := result.ModelNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"Address", "Person"}, names)

	main, err := result.MainModel()
	require.NoError(t, err)
	assert.Equal(t, "Person", main.Title)

	code, err := result.Code()
	require.NoError(t, err)
	assert.Contains(t, code, "type Person struct")

	_, err = result.Schema("Missing")
	assert.Error(t, err)

	bundled, err := result.BundledSchema()
	require.NoError(t, err)
	assert.Contains(t, bundled.Defs, "Address")

	_, body := svc.request(0)
	var sent api.GenerateModelRequest
	require.NoError(t, json.Unmarshal(body, &sent))
	assert.Equal(t, "openai:gpt-4o-mini", sent.Model)
	assert.Equal(t, "people", sent.Description)
}

func TestGenerateModel_Failure(t *testing.T) {
	svc := newFakeService(t, func(w http.ResponseWriter, r *http.Request, _ int) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(api.Response{
			Data: api.GenerateModelResponse{ModelName: "Person", Error: "main model missing"},
			Error: &api.ErrorInfo{
				Code:    string(types.ErrGenerationFailed),
				Message: "main model missing",
			},
		})
	})
	c := newTestClient(t, svc.server.URL)

	result, err := c.GenerateModel(testutil.TestContext(t), api.GenerateModelRequest{
		SampleData: fixtures.PersonSample,
		ModelName:  "Person",
	})
	require.Error(t, err)
	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Equal(t, "main model missing", result.Error)
	assert.ErrorIs(t, err, ErrGenerationFailed)
	assert.Equal(t, int32(1), svc.calls.Load())

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)

	_, err = result.Models()
	assert.ErrorIs(t, err, ErrGenerationFailed)
	_, err = result.MainModel()
	assert.ErrorIs(t, err, ErrGenerationFailed)
	_, err = result.Code()
	assert.ErrorIs(t, err, ErrGenerationFailed)
	_, err = result.Schema("Person")
	assert.ErrorIs(t, err, ErrGenerationFailed)
	_, err = result.BundledSchema()
	assert.ErrorIs(t, err, ErrGenerationFailed)
}

func TestGenerateModel_InvalidRequest(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:1")

	result, err := c.GenerateModel(testutil.TestContext(t), api.GenerateModelRequest{ModelName: "Person"})
	require.Error(t, err)
	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidRequest))
}

// =============================================================================
// 🧪 注册表与健康检查
// =============================================================================

func TestGetModel_NotFound(t *testing.T) {
	svc := newFakeService(t, func(w http.ResponseWriter, r *http.Request, _ int) {
		writeErr(w, http.StatusNotFound, types.ErrNotFound, "model not found", false)
	})
	c := newTestClient(t, svc.server.URL)

	_, err := c.GetModel(testutil.TestContext(t), "Ghost")
	assert.True(t, types.IsErrorCode(err, types.ErrNotFound))
	req, _ := svc.request(0)
	assert.Equal(t, "/api/v1/models/Ghost", req.URL.Path)

	_, err = c.GetModel(testutil.TestContext(t), "")
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidRequest))
}

func TestHealth(t *testing.T) {
	svc := newFakeService(t, func(w http.ResponseWriter, r *http.Request, _ int) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(api.HealthStatus{
			Status: "unhealthy",
			Checks: map[string]api.CheckResult{"database": {Status: "unhealthy", Message: "connection refused"}},
		})
	})
	c := newTestClient(t, svc.server.URL)

	status, err := c.Health(testutil.TestContext(t))
	require.NoError(t, err)
	assert.Equal(t, "unhealthy", status.Status)
	assert.Equal(t, "connection refused", status.Checks["database"].Message)
}

// =============================================================================
// 🧪 指标与限流
// =============================================================================

func TestClientMetrics(t *testing.T) {
	svc := newFakeService(t, func(w http.ResponseWriter, r *http.Request, n int) {
		if n == 1 {
			writeErr(w, http.StatusServiceUnavailable, types.ErrServiceUnavailable, "down", true)
			return
		}
		writeData(w, http.StatusOK, structureData(fixtures.ProductJSON))
	})
	reg := prometheus.NewRegistry()
	c := newTestClient(t, svc.server.URL, WithMetrics(reg))

	_, err := Structure[fixtures.Product](testutil.TestContext(t), c, fixtures.ProductText)
	require.NoError(t, err)

	expected := `
# HELP schemaforge_sdk_client_requests_total Logical SDK calls by operation and outcome
# TYPE schemaforge_sdk_client_requests_total counter
schemaforge_sdk_client_requests_total{operation="structure",status="success"} 1
# HELP schemaforge_sdk_client_retries_total Retried SDK attempts by operation
# TYPE schemaforge_sdk_client_retries_total counter
schemaforge_sdk_client_retries_total{operation="structure"} 1
`
	assert.NoError(t, promtest.GatherAndCompare(reg, strings.NewReader(expected),
		"schemaforge_sdk_client_requests_total", "schemaforge_sdk_client_retries_total"))
}

func TestClientRateLimit(t *testing.T) {
	svc := newFakeService(t, func(w http.ResponseWriter, r *http.Request, _ int) {
		writeData(w, http.StatusOK, api.ModelList{})
	})
	c := newTestClient(t, svc.server.URL, WithRateLimit(20, 1))
	ctx := testutil.TestContext(t)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := c.ListModels(ctx)
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}
