package tlsutil

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"
)

// =============================================================================
// 🔒 TLS 配置
// =============================================================================

// aeadSuites TLS 1.2 下允许的密码套件，TLS 1.3 套件由标准库固定
var aeadSuites = []uint16{
	tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
	tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
}

// Hardened 返回 TLS 1.2+、仅 AEAD 套件的基础配置。
// 每次调用返回新实例，调用方可以自由修改。
func Hardened() *tls.Config {
	return &tls.Config{
		MinVersion:   tls.VersionTLS12,
		CipherSuites: append([]uint16(nil), aeadSuites...),
	}
}

// ClientConfig 出站连接配置。caFile 非空时额外信任其中的 PEM 证书，
// 用于自签名部署的 SchemaForge 服务或私有 LLM 网关。
func ClientConfig(caFile string) (*tls.Config, error) {
	cfg := Hardened()
	if caFile == "" {
		return cfg, nil
	}

	pem, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("read ca file: %w", err)
	}
	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		pool = x509.NewCertPool()
	}
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("ca file %s contains no PEM certificates", caFile)
	}
	cfg.RootCAs = pool
	return cfg, nil
}

// ServerConfig 入站连接配置，certFile 与 keyFile 必须同时提供
func ServerConfig(certFile, keyFile string) (*tls.Config, error) {
	if certFile == "" || keyFile == "" {
		return nil, errors.New("tls: both cert file and key file are required")
	}
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("load key pair: %w", err)
	}
	cfg := Hardened()
	cfg.Certificates = []tls.Certificate{cert}
	cfg.NextProtos = []string{"h2", "http/1.1"}
	return cfg, nil
}

// =============================================================================
// 🌐 HTTP 客户端
// =============================================================================

// Transport 返回使用 tlsCfg 的 http.Transport，tlsCfg 为 nil 时使用 Hardened。
// maxConnsPerHost > 0 时同时作为空闲连接上限，匹配客户端并发度。
func Transport(tlsCfg *tls.Config, maxConnsPerHost int) *http.Transport {
	if tlsCfg == nil {
		tlsCfg = Hardened()
	}
	tr := &http.Transport{
		Proxy:           http.ProxyFromEnvironment,
		TLSClientConfig: tlsCfg,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	if maxConnsPerHost > 0 {
		tr.MaxConnsPerHost = maxConnsPerHost
		tr.MaxIdleConnsPerHost = maxConnsPerHost
	}
	return tr
}

// NewHTTPClient 返回带超时的 HTTP 客户端
func NewHTTPClient(timeout time.Duration, tlsCfg *tls.Config, maxConnsPerHost int) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: Transport(tlsCfg, maxConnsPerHost),
	}
}
