// Package config 提供 SchemaForge 客户端与服务端的配置管理功能。
//
// 配置优先级：默认值 → YAML 文件 → 环境变量（前缀 SCHEMAFORGE）。
// 客户端只关心 ClientConfig，服务端读取完整的 Config。
package config
