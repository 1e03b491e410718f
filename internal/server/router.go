package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/BaSui01/schemaforge/api"
	"github.com/BaSui01/schemaforge/api/handlers"
	"github.com/BaSui01/schemaforge/config"
	"github.com/BaSui01/schemaforge/internal/metrics"
	"github.com/BaSui01/schemaforge/internal/middleware"
	"github.com/BaSui01/schemaforge/store"
	"github.com/BaSui01/schemaforge/types"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// RouterDeps 构建 API 路由所需的依赖
type RouterDeps struct {
	Server     config.ServerConfig
	Auth       config.AuthConfig
	Structurer handlers.Structurer
	Generator  handlers.ModelGenerator
	// Store 为 nil 时不注册 /api/v1/models 路由
	Store   store.ModelStore
	Health  *handlers.HealthHandler
	Metrics *metrics.Collector
	// ValidateRequests 按 OpenAPI 文档校验请求
	ValidateRequests bool
	Logger           *zap.Logger
}

// NewRouter 构建 API 路由。ctx 控制限流器后台清理的生命周期。
func NewRouter(ctx context.Context, d RouterDeps) (http.Handler, error) {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if d.Health == nil {
		d.Health = handlers.NewHealthHandler("", logger)
	}

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(),
		middleware.Recovery(logger),
		middleware.OTelTracing(),
		middleware.RequestLogger(logger),
		middleware.Metrics(d.Metrics),
		middleware.SecurityHeaders(),
		middleware.CORS(d.Server.CORSAllowedOrigins),
	)

	r.Get("/health", d.Health.HandleHealth)
	r.Get("/healthz", d.Health.HandleHealthz)
	r.Get("/ready", d.Health.HandleReady)
	r.Get("/version", d.Health.HandleVersion)
	r.Get("/openapi.json", handlers.OpenAPIHandler(logger))

	var validator middleware.Middleware
	if d.ValidateRequests {
		doc, err := api.LoadSpec()
		if err != nil {
			return nil, err
		}
		if validator, err = middleware.OpenAPIValidator(doc, logger); err != nil {
			return nil, fmt.Errorf("build openapi validator: %w", err)
		}
	}

	r.Route("/api/v1", func(ar chi.Router) {
		ar.Use(
			middleware.RateLimiter(ctx, d.Server.RateLimitRPS, d.Server.RateLimitBurst, logger),
			middleware.MaxBody(d.Server.MaxBodyBytes),
			middleware.Auth(d.Auth, nil, logger),
		)
		if validator != nil {
			ar.Use(validator)
		}

		ar.Method(http.MethodPost, "/structure", handlers.NewStructureHandler(d.Structurer, d.Server.MaxBodyBytes, logger))
		ar.Method(http.MethodPost, "/generate-model", handlers.NewGenerateHandler(d.Generator, d.Server.MaxBodyBytes, logger))

		if d.Store != nil {
			models := handlers.NewModelsHandler(d.Store, logger)
			ar.Get("/models", models.HandleList)
			ar.Get("/models/{name}", models.HandleGet)
		}
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		handlers.WriteError(w, r, types.NewNotFoundError("route "+r.URL.Path+" not found"), nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		handlers.WriteStatus(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method "+r.Method+" not allowed", nil)
	})

	return r, nil
}

// MetricsHandler 返回 /metrics 处理器，gatherer 为 nil 时使用默认注册表
func MetricsHandler(gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return mux
}
