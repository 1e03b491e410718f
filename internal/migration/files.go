package migration

import (
	"cmp"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strconv"
	"strings"
)

//go:embed migrations/postgres/*.sql migrations/mysql/*.sql
var migrationsFS embed.FS

// DatabaseType 迁移方言
type DatabaseType string

const (
	DatabaseTypePostgres DatabaseType = "postgres"
	DatabaseTypeMySQL    DatabaseType = "mysql"
	DatabaseTypeSQLite   DatabaseType = "sqlite"
)

// ErrAutoMigrated sqlite 的表结构由 GORM AutoMigrate 维护，没有版本化迁移
var ErrAutoMigrated = errors.New("sqlite schema is managed by gorm auto-migrate")

// ParseDatabaseType 接受常见别名，如 pg、postgresql、mariadb、sqlite3
func ParseDatabaseType(s string) (DatabaseType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "postgres", "postgresql", "pg":
		return DatabaseTypePostgres, nil
	case "mysql", "mariadb":
		return DatabaseTypeMySQL, nil
	case "sqlite", "sqlite3":
		return DatabaseTypeSQLite, nil
	}
	return "", fmt.Errorf("unsupported database type %q", s)
}

// File 一个内嵌迁移版本，取自 NNNNNN_name.up.sql
type File struct {
	Version uint
	Name    string
}

func migrationsDir(dbType DatabaseType) string {
	return path.Join("migrations", string(dbType))
}

// AvailableMigrations 按版本升序返回内嵌迁移
func AvailableMigrations(dbType DatabaseType) ([]File, error) {
	if dbType == DatabaseTypeSQLite {
		return nil, ErrAutoMigrated
	}
	entries, err := fs.ReadDir(migrationsFS, migrationsDir(dbType))
	if err != nil {
		return nil, fmt.Errorf("list %s migrations: %w", dbType, err)
	}

	var files []File
	for _, e := range entries {
		base, ok := strings.CutSuffix(e.Name(), ".up.sql")
		if e.IsDir() || !ok {
			continue
		}
		num, name, ok := strings.Cut(base, "_")
		if !ok {
			continue
		}
		v, err := strconv.ParseUint(num, 10, 32)
		if err != nil {
			continue
		}
		files = append(files, File{Version: uint(v), Name: name})
	}
	slices.SortFunc(files, func(a, b File) int { return cmp.Compare(a.Version, b.Version) })
	return slices.CompactFunc(files, func(a, b File) bool { return a.Version == b.Version }), nil
}

func statusOf(files []File, current uint, dirty bool) []MigrationStatus {
	out := make([]MigrationStatus, len(files))
	for i, f := range files {
		out[i] = MigrationStatus{
			Version: f.Version,
			Name:    f.Name,
			Applied: f.Version <= current,
			Dirty:   dirty && f.Version == current,
		}
	}
	return out
}

func infoOf(files []File, current uint, dirty bool) *MigrationInfo {
	info := &MigrationInfo{CurrentVersion: current, Dirty: dirty, TotalMigrations: len(files)}
	for _, f := range files {
		if f.Version <= current {
			info.AppliedMigrations++
		}
	}
	info.PendingMigrations = info.TotalMigrations - info.AppliedMigrations
	return info
}
