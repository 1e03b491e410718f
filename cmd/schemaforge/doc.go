// Copyright (c) SchemaForge Authors.
// Licensed under the MIT License.

/*
Package main 提供 SchemaForge 的命令行入口。

# 子命令

  - serve：装配 LLM provider、结果缓存（LRU + Redis）、模型仓库（内存或 GORM）、
    结构化引擎与 chi 路由，在业务端口与指标端口上提供服务，收到 SIGINT/SIGTERM 后优雅关闭
  - structure / generate / health：通过 client 包调用正在运行的服务
  - migrate：对 PostgreSQL、MySQL 执行 generated_models 表的版本化迁移
  - version：打印 ldflags 注入的 Version、BuildTime、GitCommit

参数解析使用 pflag，配置加载顺序为默认值 → YAML → SCHEMAFORGE_* 环境变量。
*/
package main
