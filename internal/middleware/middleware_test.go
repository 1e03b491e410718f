package middleware

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/BaSui01/schemaforge/api"
	"github.com/BaSui01/schemaforge/config"
	"github.com/BaSui01/schemaforge/internal/metrics"
	"github.com/BaSui01/schemaforge/types"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte("ok"))
})

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp api.RawResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.NotNil(t, resp.Error)
	return resp.Error.Code
}

// =============================================================================
// 🧪 基础中间件
// =============================================================================

func TestSecurityHeaders_ChainedWithRequestID(t *testing.T) {
	handler := Chain(okHandler, SecurityHeaders(), RequestID())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}

func TestRequestID(t *testing.T) {
	var seen string
	handler := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = types.RequestID(r.Context())
	}))

	t.Run("generated", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Len(t, seen, 36)
		assert.Equal(t, seen, w.Header().Get(RequestIDHeader))
	})

	t.Run("propagated", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set(RequestIDHeader, "client-abc")
		handler.ServeHTTP(w, r)
		assert.Equal(t, "client-abc", seen)
	})

	t.Run("invalid replaced", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set(RequestIDHeader, strings.Repeat("x", 200))
		handler.ServeHTTP(w, r)
		assert.Len(t, seen, 36)
	})
}

func TestRecovery(t *testing.T) {
	handler := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), RequestID(), Recovery(zap.NewNop()))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, string(types.ErrInternalError), errorCode(t, w))
}

func TestRequestLogger_DoesNotAlterResponse(t *testing.T) {
	handler := RequestLogger(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, w.Code)
}

func TestMaxBody(t *testing.T) {
	handler := MaxBody(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("small")))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("much too large")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	// 未声明长度的请求体由 MaxBytesReader 截断
	r := httptest.NewRequest(http.MethodPost, "/", io.NopCloser(strings.NewReader("much too large")))
	r.ContentLength = -1
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

// =============================================================================
// 📊 Metrics / Tracing
// =============================================================================

func TestMetrics_UsesRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector("test", reg, zap.NewNop())

	r := chi.NewRouter()
	r.Use(Metrics(collector))
	r.Get("/api/v1/models/{name}", okHandler)

	for _, name := range []string{"Person", "Address", "Invoice"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/models/"+name, nil))
		require.Equal(t, http.StatusOK, w.Code)
	}

	expected := `
# HELP test_http_requests_total HTTP requests by route pattern and status class
# TYPE test_http_requests_total counter
test_http_requests_total{method="GET",path="/api/v1/models/{name}",status="2xx"} 3
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "test_http_requests_total"))
}

func TestOTelTracing(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	var traceID string
	r := chi.NewRouter()
	r.Use(OTelTracing())
	r.Post("/api/v1/structure", func(w http.ResponseWriter, r *http.Request) {
		traceID, _ = types.TraceID(r.Context())
		w.WriteHeader(http.StatusBadGateway)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/structure", nil))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "POST /api/v1/structure", spans[0].Name())
	assert.Equal(t, spans[0].SpanContext().TraceID().String(), traceID)
	assert.Equal(t, "Error", spans[0].Status().Code.String())
}

// =============================================================================
// 🔐 Auth
// =============================================================================

func signJWT(t *testing.T, secret string, claims jwt.RegisteredClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestAuth(t *testing.T) {
	cfg := config.AuthConfig{
		APIKeys:   []string{"sk-test-1", "sk-test-2"},
		JWTSecret: "jwt-secret",
		JWTIssuer: "schemaforge",
	}
	var keyID string
	handler := Auth(cfg, DefaultSkipPaths, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		keyID, _ = types.APIKeyID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	valid := signJWT(t, "jwt-secret", jwt.RegisteredClaims{
		Subject:   "svc-a",
		Issuer:    "schemaforge",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	expired := signJWT(t, "jwt-secret", jwt.RegisteredClaims{
		Subject:   "svc-a",
		Issuer:    "schemaforge",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	})
	wrongSecret := signJWT(t, "other", jwt.RegisteredClaims{
		Issuer:    "schemaforge",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})

	tests := []struct {
		name       string
		path       string
		headers    map[string]string
		wantStatus int
		wantKeyID  string
	}{
		{"skip path", "/health", nil, http.StatusOK, ""},
		{"missing", "/api/v1/structure", nil, http.StatusUnauthorized, ""},
		{"x-api-key", "/api/v1/structure", map[string]string{APIKeyHeader: "sk-test-2"}, http.StatusOK, "key:"},
		{"bearer key", "/api/v1/structure", map[string]string{"Authorization": "Bearer sk-test-1"}, http.StatusOK, "key:"},
		{"wrong key", "/api/v1/structure", map[string]string{APIKeyHeader: "sk-nope"}, http.StatusUnauthorized, ""},
		{"jwt", "/api/v1/structure", map[string]string{"Authorization": "Bearer " + valid}, http.StatusOK, "jwt:svc-a"},
		{"expired jwt", "/api/v1/structure", map[string]string{"Authorization": "Bearer " + expired}, http.StatusUnauthorized, ""},
		{"jwt wrong secret", "/api/v1/structure", map[string]string{"Authorization": "Bearer " + wrongSecret}, http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keyID = ""
			r := httptest.NewRequest(http.MethodPost, tt.path, nil)
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, r)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusUnauthorized {
				assert.Equal(t, string(types.ErrUnauthorized), errorCode(t, w))
			}
			assert.True(t, strings.HasPrefix(keyID, tt.wantKeyID), "key id %q", keyID)
			assert.NotContains(t, keyID, "sk-test")
		})
	}
}

func TestAuth_DisabledWithoutCredentials(t *testing.T) {
	handler := Auth(config.AuthConfig{}, nil, zap.NewNop())(okHandler)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/structure", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

// =============================================================================
// 🚦 RateLimiter / CORS
// =============================================================================

func TestRateLimiter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	handler := RateLimiter(ctx, 1, 2, zap.NewNop())(okHandler)

	send := func(addr string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = addr
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		return w
	}

	assert.Equal(t, http.StatusOK, send("10.0.0.1:1000").Code)
	assert.Equal(t, http.StatusOK, send("10.0.0.1:1001").Code)
	w := send("10.0.0.1:1002")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	assert.Equal(t, string(types.ErrRateLimited), errorCode(t, w))

	// 其它 IP 不受影响
	assert.Equal(t, http.StatusOK, send("10.0.0.2:1000").Code)
}

func TestRateLimiter_Disabled(t *testing.T) {
	handler := RateLimiter(context.Background(), 0, 0, zap.NewNop())(okHandler)
	for i := 0; i < 20; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}
}

func TestCORS(t *testing.T) {
	handler := CORS([]string{"https://app.example.com"})(okHandler)

	r := httptest.NewRequest(http.MethodOptions, "/api/v1/structure", nil)
	r.Header.Set("Origin", "https://app.example.com")
	r.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	r = httptest.NewRequest(http.MethodGet, "/health", nil)
	r.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	w = httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodGet, "/health", nil)
	r.Header.Set("Origin", "https://app.example.com")
	CORS(nil)(okHandler).ServeHTTP(w, r)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

// =============================================================================
// 📜 OpenAPI
// =============================================================================

func TestOpenAPIValidator(t *testing.T) {
	doc, err := api.LoadSpec()
	require.NoError(t, err)
	mw, err := OpenAPIValidator(doc, zap.NewNop())
	require.NoError(t, err)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_, _ = w.Write(body)
	}))

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{"valid structure", http.MethodPost, "/api/v1/structure", `{"content":"x","schema":{"type":"object"}}`, http.StatusOK},
		{"missing schema", http.MethodPost, "/api/v1/structure", `{"content":"x"}`, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/api/v1/structure", `{"content":"x","schema":{},"extra":1}`, http.StatusBadRequest},
		{"bad model name", http.MethodPost, "/api/v1/generate-model", `{"sample_data":"x","model_name":"1bad"}`, http.StatusBadRequest},
		{"valid generate", http.MethodPost, "/api/v1/generate-model", `{"sample_data":"x","model_name":"Person"}`, http.StatusOK},
		{"undeclared path", http.MethodGet, "/metrics", ``, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			if tt.body != "" {
				r.Header.Set("Content-Type", "application/json")
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, r)

			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.wantStatus == http.StatusOK {
				// 校验后请求体仍可被下游读取
				assert.Equal(t, tt.body, w.Body.String())
			}
		})
	}
}
