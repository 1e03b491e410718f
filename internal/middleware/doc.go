// Copyright (c) SchemaForge Authors.
// Licensed under the MIT License.

/*
Package middleware 提供 SchemaForge HTTP 服务的中间件。

# 中间件

  - Recovery：panic 恢复，输出统一错误信封
  - RequestID：生成/透传 X-Request-ID 并写入 context
  - RequestLogger：zap 访问日志
  - Metrics：Prometheus HTTP 指标，path 标签取 chi 路由模板
  - OTelTracing：OpenTelemetry 服务端 span
  - Auth：API Key（Bearer 或 X-API-Key）与 JWT Bearer 认证
  - RateLimiter：基于 IP 的令牌桶限流
  - CORS：go-chi/cors 跨域
  - OpenAPIValidator：按内嵌 OpenAPI 文档校验请求

中间件签名为 func(http.Handler) http.Handler，可直接用于 chi.Router.Use。
*/
package middleware
