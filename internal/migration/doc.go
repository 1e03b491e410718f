// 版权所有 2026 SchemaForge Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 migration 维护 generated_models 表在 PostgreSQL 与 MySQL 上的版本化
Schema，基于 golang-migrate 与内嵌 SQL 文件实现。

SQLite 部署不走本包：表结构由 store.GormStore.Migrate（GORM AutoMigrate）维护，
NewMigrator 对 sqlite 返回 ErrAutoMigrated。

# 核心类型

  - Migrator / Runner：Up/Down/Steps/Force/Version/Status/Info/Close
  - CLI：schemaforge migrate 子命令使用的格式化输出层
  - AvailableMigrations：按版本列出内嵌迁移
*/
package migration
