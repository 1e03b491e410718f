package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BaSui01/schemaforge/config"
	"github.com/BaSui01/schemaforge/internal/tlsutil"
)

const dialTimeout = 5 * time.Second

// ErrClosed Close 之后的 Ping 返回该错误
var ErrClosed = errors.New("redis connection is closed")

// Conn 共享的 Redis 连接，带后台探活
type Conn struct {
	client *redis.Client
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
	cancel context.CancelFunc
	done   chan struct{}
}

// Dial 建立连接并 Ping 校验；probeEvery > 0 时后台定期探活，失败只记日志
func Dial(cfg config.RedisConfig, probeEvery time.Duration, logger *zap.Logger) (*Conn, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := &redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	}
	if cfg.TLS {
		opts.TLSConfig = tlsutil.Hardened()
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("dial redis %s: %w", cfg.Addr, err)
	}

	probeCtx, stop := context.WithCancel(context.Background())
	c := &Conn{
		client: client,
		logger: logger.With(zap.String("component", "redis")),
		cancel: stop,
		done:   make(chan struct{}),
	}
	if probeEvery > 0 {
		go c.probe(probeCtx, probeEvery)
	} else {
		close(c.done)
	}

	c.logger.Info("redis connected", zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB), zap.Bool("tls", cfg.TLS))
	return c, nil
}

// Client 供结果缓存的 Redis 层使用
func (c *Conn) Client() redis.UniversalClient { return c.client }

func (c *Conn) Ping(ctx context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	return c.client.Ping(ctx).Err()
}

// Close 停止探活并关闭连接，可重复调用
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	<-c.done
	c.logger.Info("redis connection closed")
	return c.client.Close()
}

func (c *Conn) probe(ctx context.Context, every time.Duration) {
	defer close(c.done)
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		pingCtx, cancel := context.WithTimeout(ctx, dialTimeout)
		if err := c.Ping(pingCtx); err != nil && ctx.Err() == nil {
			c.logger.Warn("redis probe failed", zap.Error(err))
		}
		cancel()
	}
}
