package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BaSui01/schemaforge/api/handlers"
	"github.com/BaSui01/schemaforge/cache"
	"github.com/BaSui01/schemaforge/config"
	"github.com/BaSui01/schemaforge/engine"
	internalcache "github.com/BaSui01/schemaforge/internal/cache"
	"github.com/BaSui01/schemaforge/internal/database"
	"github.com/BaSui01/schemaforge/internal/metrics"
	"github.com/BaSui01/schemaforge/internal/migration"
	"github.com/BaSui01/schemaforge/internal/server"
	"github.com/BaSui01/schemaforge/internal/telemetry"
	"github.com/BaSui01/schemaforge/internal/tlsutil"
	"github.com/BaSui01/schemaforge/llm"
	"github.com/BaSui01/schemaforge/llm/circuitbreaker"
	"github.com/BaSui01/schemaforge/llm/providers"
	"github.com/BaSui01/schemaforge/llm/providers/openaicompat"
	"github.com/BaSui01/schemaforge/retry"
	"github.com/BaSui01/schemaforge/store"
)

// =============================================================================
// 🧩 服务装配
// =============================================================================

// app 装配完成的服务及其需要释放的资源
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *llm.Registry
	gatherer prometheus.Gatherer
	api      *server.Manager
	group    *server.Group

	// 按注册逆序关闭
	closers []func(ctx context.Context) error
}

// newApp 根据配置装配 LLM、缓存、存储、引擎与 HTTP 服务
func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (a *app, err error) {
	a = &app{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			_ = a.close(context.Background())
		}
	}()

	otelProviders, err := telemetry.Init(ctx, cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	} else {
		a.onClose(otelProviders.Shutdown)
	}

	// 指标
	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector("schemaforge", promReg, logger)
	a.gatherer = promReg

	health := handlers.NewHealthHandler(Version, logger)

	// LLM
	a.registry = buildRegistry(cfg.LLM, collector, logger)
	if a.registry.Len() == 0 {
		logger.Warn("no LLM provider configured, structuring requests will fail")
	}
	health.RegisterCheck(handlers.NewProviderHealthCheck(a.registry))

	engineOpts := []engine.Option{engine.WithMetrics(collector), engine.WithLogger(logger)}

	// 结果缓存
	if cfg.Cache.Enabled {
		var rdb redis.UniversalClient
		if cfg.Cache.RedisEnabled {
			conn, err := internalcache.Dial(cfg.Redis, 30*time.Second, logger)
			if err != nil {
				logger.Warn("redis unavailable, using local cache only", zap.Error(err))
			} else {
				rdb = conn.Client()
				a.onClose(func(context.Context) error { return conn.Close() })
				health.RegisterCheck(handlers.NewProbe("redis", conn.Ping))
			}
		}
		cacheOpts := cache.OptionsFromConfig(cfg.Cache)
		cacheOpts.OnHit = collector.RecordCacheHit
		cacheOpts.OnMiss = collector.RecordCacheMiss
		engineOpts = append(engineOpts, engine.WithCache(cache.NewMultiLevelCache(rdb, cacheOpts, logger)))
	}

	// 模型仓库
	modelStore, err := a.openStore(ctx, health, collector)
	if err != nil {
		return nil, err
	}

	opts := engine.OptionsFromConfig(cfg.Engine, cfg.Tokenizer)
	structurer := engine.NewStructurer(a.registry, opts, engineOpts...)
	generator := engine.NewModelGenerator(a.registry, opts, append(engineOpts, engine.WithStore(modelStore))...)

	router, err := server.NewRouter(ctx, server.RouterDeps{
		Server:           cfg.Server,
		Auth:             cfg.Auth,
		Structurer:       structurer,
		Generator:        generator,
		Store:            modelStore,
		Health:           health,
		Metrics:          collector,
		ValidateRequests: true,
		Logger:           logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build router: %w", err)
	}

	apiCfg := server.ConfigFor(cfg.Server, cfg.Server.HTTPPort)
	if cfg.Server.TLSCertFile != "" {
		tlsCfg, err := tlsutil.ServerConfig(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		if err != nil {
			return nil, fmt.Errorf("server tls: %w", err)
		}
		apiCfg.TLS = tlsCfg
	}
	a.api = server.NewManager("api", router, apiCfg, logger)
	managers := []*server.Manager{a.api}
	if cfg.Server.MetricsPort > 0 {
		managers = append(managers, server.NewManager("metrics",
			server.MetricsHandler(promReg), server.ConfigFor(cfg.Server, cfg.Server.MetricsPort), logger))
	}
	a.group = server.NewGroup(logger, managers...)
	return a, nil
}

// openStore 启用数据库时使用 GORM 仓库并执行迁移，否则使用内存仓库
func (a *app) openStore(ctx context.Context, health *handlers.HealthHandler, collector *metrics.Collector) (store.ModelStore, error) {
	dbCfg := a.cfg.Database
	if !dbCfg.Enabled {
		a.logger.Info("database disabled, generated models are kept in memory")
		return store.NewMemoryStore(), nil
	}

	gdb, err := database.Open(dbCfg)
	if err != nil {
		return nil, err
	}
	if err := database.InstrumentQueries(gdb, func(op string, d time.Duration) {
		collector.RecordDBQuery(dbCfg.Driver, op, d)
	}); err != nil {
		return nil, fmt.Errorf("instrument database: %w", err)
	}
	poolCfg := database.PoolConfigFrom(dbCfg)
	poolCfg.OnStats = func(stats sql.DBStats) { collector.RecordDBStats(dbCfg.Driver, stats) }
	pool, err := database.NewPool(gdb, poolCfg, a.logger)
	if err != nil {
		return nil, err
	}
	a.onClose(func(context.Context) error { return pool.Close() })
	health.RegisterCheck(handlers.NewProbe("database", pool.Ping))

	gormStore := store.NewGormStore(pool.DB(), a.logger)
	if err := migrateSchema(ctx, dbCfg, gormStore, a.logger); err != nil {
		return nil, err
	}
	return gormStore, nil
}

// migrateSchema sqlite 走 AutoMigrate，其余方言走版本化迁移
func migrateSchema(ctx context.Context, dbCfg config.DatabaseConfig, gormStore *store.GormStore, logger *zap.Logger) error {
	m, err := migration.NewMigratorFromDatabaseConfig(dbCfg, logger)
	if errors.Is(err, migration.ErrAutoMigrated) {
		return gormStore.Migrate(ctx)
	}
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer m.Close()
	return m.Up(ctx)
}

// buildRegistry 注册配置中的 OpenAI 兼容 provider，第一个注册的为默认。
// 每个 provider 由内到外包装为 重试 → 熔断，一次逻辑调用的重试耗尽只记一次熔断失败。
func buildRegistry(cfg config.LLMConfig, collector *metrics.Collector, logger *zap.Logger) *llm.Registry {
	reg := llm.NewRegistry()

	var entries []config.ProviderConfig
	if cfg.OpenAI.APIKey != "" {
		entries = append(entries, cfg.OpenAI)
	}
	entries = append(entries, cfg.Providers...)

	for _, pc := range entries {
		if pc.Name == "" || pc.BaseURL == "" {
			logger.Warn("skipping provider without name or base_url", zap.String("name", pc.Name))
			continue
		}
		if pc.Timeout == 0 {
			pc.Timeout = cfg.Timeout
		}
		var p llm.Provider = openaicompat.New(openaicompat.FromProviderConfig(pc), logger)
		if cfg.MaxRetries > 0 {
			policy := retry.DefaultPolicy()
			policy.MaxRetries = cfg.MaxRetries
			p = providers.NewRetryableProvider(p, policy, logger)
		}
		if cfg.BreakerThreshold > 0 {
			name := pc.Name
			p = providers.NewGuardedProvider(p, circuitbreaker.Config{
				Threshold:    cfg.BreakerThreshold,
				ResetTimeout: cfg.BreakerResetTimeout,
				OnStateChange: func(_, to circuitbreaker.State) {
					collector.RecordBreakerState(name, int(to))
				},
			}, logger)
		}
		reg.Register(pc.Name, p)
		logger.Info("LLM provider registered",
			zap.String("provider", pc.Name),
			zap.String("base_url", pc.BaseURL),
		)
	}
	return reg
}

func (a *app) onClose(fn func(ctx context.Context) error) {
	a.closers = append(a.closers, fn)
}

// run 运行 HTTP 服务直到 ctx 结束
func (a *app) run(ctx context.Context) error {
	a.logger.Info("SchemaForge listening",
		zap.Int("http_port", a.cfg.Server.HTTPPort),
		zap.Int("metrics_port", a.cfg.Server.MetricsPort),
		zap.Strings("providers", a.registry.List()),
	)
	return a.group.Run(ctx)
}

// close 释放资源
func (a *app) close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
