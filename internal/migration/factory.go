package migration

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/schemaforge/config"
	"github.com/BaSui01/schemaforge/internal/database"
)

// NewMigratorFromDatabaseConfig 打开一条独立连接并创建迁移器
func NewMigratorFromDatabaseConfig(cfg config.DatabaseConfig, logger *zap.Logger) (*Runner, error) {
	dbType, err := ParseDatabaseType(cfg.Driver)
	if err != nil {
		return nil, err
	}
	if dbType == DatabaseTypeSQLite {
		return nil, ErrAutoMigrated
	}

	gdb, err := database.Open(cfg)
	if err != nil {
		return nil, err
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}

	m, err := NewMigrator(sqlDB, Config{DatabaseType: dbType}, logger)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return m, nil
}
