package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/schemaforge/config"
)

// Config 单个监听端口的参数
type Config struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	MaxHeaderBytes  int
	ShutdownTimeout time.Duration
	// TLS 非 nil 时以 HTTPS 监听
	TLS *tls.Config
}

// DefaultConfig 写超时留给较慢的模型调用
func DefaultConfig() Config {
	return Config{
		Addr:            ":8000",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    2 * time.Minute,
		IdleTimeout:     2 * time.Minute,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: 30 * time.Second,
	}
}

// ConfigFor 以 DefaultConfig 为底，覆盖 cfg 中的非零超时
func ConfigFor(cfg config.ServerConfig, port int) Config {
	c := DefaultConfig()
	c.Addr = fmt.Sprintf(":%d", port)
	for _, o := range []struct {
		dst *time.Duration
		src time.Duration
	}{
		{&c.ReadTimeout, cfg.ReadTimeout},
		{&c.WriteTimeout, cfg.WriteTimeout},
		{&c.IdleTimeout, cfg.IdleTimeout},
		{&c.ShutdownTimeout, cfg.ShutdownTimeout},
	} {
		if o.src > 0 {
			*o.dst = o.src
		}
	}
	return c
}

// =============================================================================
// 🌐 Manager
// =============================================================================

// Manager 管理一个 http.Server：非阻塞启动，Serve 的异常退出经 Errors 通知，
// 关闭后不可再次启动
type Manager struct {
	name   string
	cfg    Config
	srv    *http.Server
	logger *zap.Logger
	errs   chan error

	mu       sync.RWMutex
	listener net.Listener
	stopped  bool
}

// NewManager name 出现在日志与错误中，如 "api"、"metrics"
func NewManager(name string, handler http.Handler, cfg Config, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		name: name,
		cfg:  cfg,
		srv: &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
			MaxHeaderBytes:    cfg.MaxHeaderBytes,
		},
		logger: logger.With(zap.String("component", "http_server"), zap.String("server", name)),
		errs:   make(chan error, 1),
	}
}

func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case m.stopped:
		return fmt.Errorf("%s server: already shut down", m.name)
	case m.listener != nil:
		return fmt.Errorf("%s server: already started", m.name)
	}

	ln, err := net.Listen("tcp", m.cfg.Addr)
	if err != nil {
		return fmt.Errorf("%s server: listen %s: %w", m.name, m.cfg.Addr, err)
	}
	if m.cfg.TLS != nil {
		ln = tls.NewListener(ln, m.cfg.TLS)
	}
	m.listener = ln
	m.logger.Info("listening", zap.String("addr", ln.Addr().String()), zap.Bool("tls", m.cfg.TLS != nil))

	go func() {
		err := m.srv.Serve(ln)
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return
		}
		m.logger.Error("serve failed", zap.Error(err))
		select {
		case m.errs <- err:
		default:
		}
	}()
	return nil
}

// Shutdown 等待进行中的请求，最多 ShutdownTimeout；重复调用无副作用
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return nil
	}
	m.stopped = true

	ctx, cancel := context.WithTimeout(ctx, m.cfg.ShutdownTimeout)
	defer cancel()
	if err := m.srv.Shutdown(ctx); err != nil {
		m.logger.Error("shutdown incomplete", zap.Error(err))
		return fmt.Errorf("%s server: shutdown: %w", m.name, err)
	}
	m.logger.Info("stopped")
	return nil
}

// Errors 至多投递一次 Serve 的异常退出
func (m *Manager) Errors() <-chan error { return m.errs }

// Addr 启动后返回实际监听地址（端口 0 时可取得分配的端口）
func (m *Manager) Addr() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.listener == nil {
		return m.cfg.Addr
	}
	return m.listener.Addr().String()
}

func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listener != nil && !m.stopped
}
