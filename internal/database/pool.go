package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/schemaforge/config"
)

const (
	defaultMaxIdleConns    = 5
	defaultMaxOpenConns    = 25
	defaultConnMaxLifetime = time.Hour
	defaultProbeInterval   = 30 * time.Second
	probeTimeout           = 5 * time.Second
)

// ErrPoolClosed Close 之后的 Ping 返回该错误
var ErrPoolClosed = errors.New("database pool is closed")

// PoolConfig 连接池参数
type PoolConfig struct {
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	// ProbeInterval 后台探活间隔，<= 0 时不探活
	ProbeInterval time.Duration
	// OnStats 在创建时与每次探活成功后收到连接池快照
	OnStats func(sql.DBStats)
}

// PoolConfigFrom 从数据库配置提取连接池参数，零值字段取默认
func PoolConfigFrom(cfg config.DatabaseConfig) PoolConfig {
	orInt := func(v, def int) int {
		if v > 0 {
			return v
		}
		return def
	}
	lifetime := cfg.ConnMaxLifetime
	if lifetime <= 0 {
		lifetime = defaultConnMaxLifetime
	}
	return PoolConfig{
		MaxIdleConns:    orInt(cfg.MaxIdleConns, defaultMaxIdleConns),
		MaxOpenConns:    orInt(cfg.MaxOpenConns, defaultMaxOpenConns),
		ConnMaxLifetime: lifetime,
		ProbeInterval:   defaultProbeInterval,
	}
}

// Pool 持有 GORM 连接并在后台定期探活、上报连接池统计
type Pool struct {
	db     *gorm.DB
	sqlDB  *sql.DB
	cfg    PoolConfig
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPool 应用连接池参数并启动探活
func NewPool(db *gorm.DB, cfg PoolConfig, logger *zap.Logger) (*Pool, error) {
	if db == nil {
		return nil, errors.New("database: nil *gorm.DB")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database: unwrap sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		db:     db,
		sqlDB:  sqlDB,
		cfg:    cfg,
		logger: logger.With(zap.String("component", "db_pool")),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	p.publish()

	if cfg.ProbeInterval > 0 {
		go p.probe(ctx)
	} else {
		close(p.done)
	}

	p.logger.Info("database pool ready",
		zap.Int("max_idle_conns", cfg.MaxIdleConns),
		zap.Int("max_open_conns", cfg.MaxOpenConns),
		zap.Duration("conn_max_lifetime", cfg.ConnMaxLifetime),
	)
	return p, nil
}

func (p *Pool) DB() *gorm.DB { return p.db }

func (p *Pool) Stats() sql.DBStats { return p.sqlDB.Stats() }

// Ping 供健康检查使用
func (p *Pool) Ping(ctx context.Context) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	return p.sqlDB.PingContext(ctx)
}

// Close 停止探活并关闭底层连接，可重复调用
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.cancel()
	<-p.done
	p.logger.Info("database pool closed")
	return p.sqlDB.Close()
}

func (p *Pool) probe(ctx context.Context) {
	defer close(p.done)
	ticker := time.NewTicker(p.cfg.ProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		pingCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		err := p.Ping(pingCtx)
		cancel()
		if err != nil {
			if ctx.Err() == nil {
				p.logger.Warn("database probe failed", zap.Error(err))
			}
			continue
		}
		stats := p.publish()
		p.logger.Debug("database probe ok",
			zap.Int("open", stats.OpenConnections),
			zap.Int("in_use", stats.InUse),
			zap.Int("idle", stats.Idle),
		)
	}
}

func (p *Pool) publish() sql.DBStats {
	stats := p.sqlDB.Stats()
	if p.cfg.OnStats != nil {
		p.cfg.OnStats(stats)
	}
	return stats
}
