package server

import (
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BaSui01/schemaforge/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte("ok"))
})

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	cfg.ShutdownTimeout = 5 * time.Second
	return cfg
}

func TestDefaultConfig_Values(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, ":8000", cfg.Addr)
	assert.Equal(t, 30*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 1<<20, cfg.MaxHeaderBytes)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
}

func TestConfigFor(t *testing.T) {
	cfg := ConfigFor(config.ServerConfig{ReadTimeout: 5 * time.Second}, 9091)
	assert.Equal(t, ":9091", cfg.Addr)
	assert.Equal(t, 5*time.Second, cfg.ReadTimeout)
	assert.Equal(t, DefaultConfig().WriteTimeout, cfg.WriteTimeout)
}

func TestManager_StartAndShutdown(t *testing.T) {
	m := NewManager("api", okHandler, testConfig(), zap.NewNop())
	assert.False(t, m.IsRunning())

	require.NoError(t, m.Start())
	assert.True(t, m.IsRunning())

	resp, err := http.Get("http://" + m.Addr() + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "ok", string(body))

	require.NoError(t, m.Shutdown(context.Background()))
	assert.False(t, m.IsRunning())

	// 幂等
	assert.NoError(t, m.Shutdown(context.Background()))
	// 关闭后不可重启
	assert.Error(t, m.Start())
}

func TestManager_ServesTLS(t *testing.T) {
	// 借用 httptest 的自签名证书，其客户端已信任该证书
	ts := httptest.NewTLSServer(okHandler)
	defer ts.Close()

	cfg := testConfig()
	cfg.TLS = &tls.Config{Certificates: ts.TLS.Certificates, MinVersion: tls.VersionTLS12}
	m := NewManager("api", okHandler, cfg, zap.NewNop())
	require.NoError(t, m.Start())
	defer m.Shutdown(context.Background())

	resp, err := ts.Client().Get("https://" + m.Addr() + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "ok", string(body))

	// 明文请求被拒绝
	plain, err := http.Get("http://" + m.Addr() + "/")
	if err == nil {
		plain.Body.Close()
		assert.Equal(t, http.StatusBadRequest, plain.StatusCode)
	}
}

func TestManager_DoubleStart(t *testing.T) {
	m := NewManager("api", okHandler, testConfig(), nil)
	require.NoError(t, m.Start())
	t.Cleanup(func() { _ = m.Shutdown(context.Background()) })

	assert.Error(t, m.Start())
}

func TestManager_ListenError(t *testing.T) {
	first := NewManager("api", okHandler, testConfig(), nil)
	require.NoError(t, first.Start())
	t.Cleanup(func() { _ = first.Shutdown(context.Background()) })

	cfg := testConfig()
	cfg.Addr = first.Addr()
	second := NewManager("api", okHandler, cfg, nil)
	assert.Error(t, second.Start())
}

func TestGroup_RunUntilCancelled(t *testing.T) {
	api := NewManager("api", okHandler, testConfig(), nil)
	metricsSrv := NewManager("metrics", MetricsHandler(nil), testConfig(), nil)
	g := NewGroup(zap.NewNop(), api, metricsSrv)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- g.Run(ctx) }()

	require.Eventually(t, func() bool { return api.IsRunning() && metricsSrv.IsRunning() }, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get("http://" + metricsSrv.Addr() + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("group did not stop")
	}
	assert.False(t, api.IsRunning())
	assert.False(t, metricsSrv.IsRunning())
}

func TestGroup_StartFailureShutsDownOthers(t *testing.T) {
	busy := NewManager("busy", okHandler, testConfig(), nil)
	require.NoError(t, busy.Start())
	t.Cleanup(func() { _ = busy.Shutdown(context.Background()) })

	ok := NewManager("api", okHandler, testConfig(), nil)
	cfg := testConfig()
	cfg.Addr = busy.Addr()
	clash := NewManager("metrics", okHandler, cfg, nil)

	err := NewGroup(nil, ok, clash).Run(context.Background())
	assert.Error(t, err)
	assert.False(t, ok.IsRunning())
}
