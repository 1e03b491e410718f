// Package tlsutil 集中管理 SchemaForge 的 TLS 设置：
// SDK 与 LLM provider 的出站 HTTP 客户端、API 服务端监听以及 Redis 连接
// 都从 Hardened 派生（TLS 1.2+，仅 AEAD 密码套件）。
package tlsutil
