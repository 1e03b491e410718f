// 版权所有 2026 SchemaForge Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 database 负责打开 GORM 连接（postgres、mysql、sqlite）并管理连接池。

# 核心类型

  - Open / Dialector：按 config.DatabaseConfig 的驱动名选择方言，
    sqlite 使用无 cgo 的 glebarez/sqlite。
  - Pool：设置连接上限与生命周期，后台定时探活并通过 OnStats
    上报连接池快照；Close 后 Ping 返回 ErrPoolClosed。
  - InstrumentQueries：为 GORM 的各类回调注册耗时观测。
*/
package database
