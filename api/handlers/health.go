package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/schemaforge/api"
	"github.com/BaSui01/schemaforge/llm"
)

// checkTimeout 一轮依赖检查的总时限
const checkTimeout = 5 * time.Second

// HealthCheck 单个依赖的探测
type HealthCheck interface {
	Name() string
	Check(ctx context.Context) error
}

// HealthHandler 提供存活、就绪与版本端点，就绪检查并发执行全部依赖探测
type HealthHandler struct {
	version string
	logger  *zap.Logger

	mu     sync.RWMutex
	checks []HealthCheck
}

func NewHealthHandler(version string, logger *zap.Logger) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{version: version, logger: logger.With(zap.String("handler", "health"))}
}

// RegisterCheck 可在服务运行期间调用
func (h *HealthHandler) RegisterCheck(c HealthCheck) {
	h.mu.Lock()
	h.checks = append(h.checks, c)
	h.mu.Unlock()
}

// HandleHealth GET /health，附带版本与各项检查结果
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.report(w, r)
}

// HandleReady GET /ready
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	h.report(w, r)
}

// HandleHealthz GET /healthz，只说明进程存活，不触达依赖
func (h *HealthHandler) HandleHealthz(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, api.HealthStatus{Status: "healthy", Timestamp: time.Now().UTC()})
}

func (h *HealthHandler) HandleVersion(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, r, api.VersionInfo{Version: h.version, GoVersion: runtime.Version()})
}

func (h *HealthHandler) report(w http.ResponseWriter, r *http.Request) {
	status := h.evaluate(r.Context())
	code := http.StatusOK
	if status.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	WriteJSON(w, code, status)
}

func (h *HealthHandler) evaluate(ctx context.Context) api.HealthStatus {
	h.mu.RLock()
	checks := append([]HealthCheck(nil), h.checks...)
	h.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	var mu sync.Mutex
	results := make(map[string]api.CheckResult, len(checks))
	var g errgroup.Group
	for _, c := range checks {
		g.Go(func() error {
			start := time.Now()
			err := c.Check(ctx)
			res := api.CheckResult{Status: "pass", Latency: time.Since(start).String()}
			if err != nil {
				res.Status, res.Message = "fail", err.Error()
				h.logger.Warn("health check failed", zap.String("check", c.Name()), zap.Error(err))
			}
			mu.Lock()
			results[c.Name()] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	status := api.HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   h.version,
		Checks:    results,
	}
	for _, res := range results {
		if res.Status != "pass" {
			status.Status = "unhealthy"
			break
		}
	}
	return status
}

// =============================================================================
// 🔧 内置检查
// =============================================================================

// Probe 以函数实现的检查，用于数据库、Redis 等只需 Ping 的依赖
type Probe struct {
	name string
	fn   func(ctx context.Context) error
}

func NewProbe(name string, fn func(ctx context.Context) error) *Probe {
	return &Probe{name: name, fn: fn}
}

func (p *Probe) Name() string                    { return p.name }
func (p *Probe) Check(ctx context.Context) error { return p.fn(ctx) }

// ProviderHealthCheck 探测注册表中的默认 provider
type ProviderHealthCheck struct {
	registry *llm.Registry
}

func NewProviderHealthCheck(registry *llm.Registry) *ProviderHealthCheck {
	return &ProviderHealthCheck{registry: registry}
}

func (c *ProviderHealthCheck) Name() string { return "llm_provider" }

func (c *ProviderHealthCheck) Check(ctx context.Context) error {
	name := c.registry.Default()
	if name == "" {
		return errors.New("no provider registered")
	}
	p, ok := c.registry.Get(name)
	if !ok {
		return fmt.Errorf("default provider %q is not registered", name)
	}
	hs, err := p.HealthCheck(ctx)
	switch {
	case err != nil:
		return fmt.Errorf("%s: %w", name, err)
	case !hs.Healthy:
		return fmt.Errorf("%s reports unhealthy", name)
	}
	return nil
}
