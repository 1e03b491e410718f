package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

const (
	defaultTable       = "schema_migrations"
	defaultLockTimeout = 15 * time.Second
)

// MigrationStatus 一个迁移版本的状态
type MigrationStatus struct {
	Version uint
	Name    string
	Applied bool
	Dirty   bool
}

// MigrationInfo 迁移进度摘要
type MigrationInfo struct {
	CurrentVersion    uint
	Dirty             bool
	TotalMigrations   int
	AppliedMigrations int
	PendingMigrations int
}

// Config 零值字段取默认：表名 schema_migrations，锁超时 15s
type Config struct {
	DatabaseType DatabaseType
	TableName    string
	LockTimeout  time.Duration
}

// Migrator 版本化迁移，CLI 与服务启动共用
type Migrator interface {
	Up(ctx context.Context) error
	Down(ctx context.Context) error
	Steps(ctx context.Context, n int) error
	Force(ctx context.Context, version int) error
	// Version 返回当前版本与 dirty 标记，尚未迁移时为 0
	Version(ctx context.Context) (uint, bool, error)
	Status(ctx context.Context) ([]MigrationStatus, error)
	Info(ctx context.Context) (*MigrationInfo, error)
	Close() error
}

// =============================================================================
// 🚚 Runner
// =============================================================================

// Runner 以内嵌 SQL 驱动 golang-migrate。持有传入的 *sql.DB，Close 时一并关闭。
// ctx 取消时当前迁移执行完后停止。
type Runner struct {
	dbType DatabaseType
	m      *migrate.Migrate
	logger *zap.Logger
}

var _ Migrator = (*Runner)(nil)

// NewMigrator sqlite 返回 ErrAutoMigrated
func NewMigrator(db *sql.DB, cfg Config, logger *zap.Logger) (*Runner, error) {
	if db == nil {
		return nil, errors.New("migration: nil *sql.DB")
	}
	if cfg.DatabaseType == DatabaseTypeSQLite {
		return nil, ErrAutoMigrated
	}
	if cfg.TableName == "" {
		cfg.TableName = defaultTable
	}
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = defaultLockTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "migration"), zap.String("dialect", string(cfg.DatabaseType)))

	driver, err := driverFor(db, cfg)
	if err != nil {
		return nil, err
	}
	src, err := iofs.New(migrationsFS, migrationsDir(cfg.DatabaseType))
	if err != nil {
		return nil, fmt.Errorf("migration: open embedded source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, string(cfg.DatabaseType), driver)
	if err != nil {
		return nil, fmt.Errorf("migration: init: %w", err)
	}
	m.LockTimeout = cfg.LockTimeout
	m.Log = migrateLog{logger}

	return &Runner{dbType: cfg.DatabaseType, m: m, logger: logger}, nil
}

func driverFor(db *sql.DB, cfg Config) (database.Driver, error) {
	switch cfg.DatabaseType {
	case DatabaseTypePostgres:
		return postgres.WithInstance(db, &postgres.Config{MigrationsTable: cfg.TableName})
	case DatabaseTypeMySQL:
		return mysql.WithInstance(db, &mysql.Config{MigrationsTable: cfg.TableName})
	}
	return nil, fmt.Errorf("migration: unsupported database type %q", cfg.DatabaseType)
}

// run 执行 fn；ctx 取消时向 golang-migrate 发送 GracefulStop。ErrNoChange 视为成功
func (r *Runner) run(ctx context.Context, op string, fn func() error) error {
	finished := make(chan struct{})
	defer close(finished)
	go func() {
		select {
		case <-ctx.Done():
			select {
			case r.m.GracefulStop <- true:
			default:
			}
		case <-finished:
		}
	}()

	err := fn()
	if errors.Is(err, migrate.ErrNoChange) {
		r.logger.Debug("no change", zap.String("op", op))
		err = nil
	}
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil {
		return fmt.Errorf("migrate %s: %w", op, err)
	}
	return nil
}

func (r *Runner) Up(ctx context.Context) error {
	return r.run(ctx, "up", r.m.Up)
}

// Down 只回滚最近一个版本
func (r *Runner) Down(ctx context.Context) error {
	return r.Steps(ctx, -1)
}

// Steps n 为负数时回滚 |n| 个版本
func (r *Runner) Steps(ctx context.Context, n int) error {
	return r.run(ctx, fmt.Sprintf("steps %d", n), func() error { return r.m.Steps(n) })
}

// Force 只改写版本记录，用于清除 dirty 状态
func (r *Runner) Force(ctx context.Context, version int) error {
	return r.run(ctx, fmt.Sprintf("force %d", version), func() error { return r.m.Force(version) })
}

func (r *Runner) Version(context.Context) (uint, bool, error) {
	v, dirty, err := r.m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		return 0, false, nil
	case err != nil:
		return 0, false, fmt.Errorf("migrate version: %w", err)
	}
	return v, dirty, nil
}

func (r *Runner) Status(ctx context.Context) ([]MigrationStatus, error) {
	files, current, dirty, err := r.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return statusOf(files, current, dirty), nil
}

func (r *Runner) Info(ctx context.Context) (*MigrationInfo, error) {
	files, current, dirty, err := r.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return infoOf(files, current, dirty), nil
}

func (r *Runner) snapshot(ctx context.Context) ([]File, uint, bool, error) {
	current, dirty, err := r.Version(ctx)
	if err != nil {
		return nil, 0, false, err
	}
	files, err := AvailableMigrations(r.dbType)
	return files, current, dirty, err
}

func (r *Runner) Close() error {
	srcErr, dbErr := r.m.Close()
	return errors.Join(srcErr, dbErr)
}

// migrateLog 把 golang-migrate 的日志转给 zap，Verbose 跟随 debug 级别
type migrateLog struct {
	logger *zap.Logger
}

func (l migrateLog) Printf(format string, v ...any) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l migrateLog) Verbose() bool {
	return l.logger.Core().Enabled(zap.DebugLevel)
}
