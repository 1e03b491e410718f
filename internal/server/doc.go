// 版权所有 2024 SchemaForge Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 server 提供 SchemaForge 服务的路由构建与 HTTP 服务器生命周期管理。

# 核心类型

  - Manager：封装 net/http.Server，提供非阻塞 Start 与带超时的 Shutdown。
  - Group：同时运行 API 服务器与指标服务器，ctx 结束或任一失败时统一关闭。
  - RouterDeps / NewRouter：基于 chi 组装中间件链与 /api/v1 路由。
  - MetricsHandler：独立端口上的 Prometheus /metrics。

# 中间件顺序

RequestID → Recovery → OTelTracing → RequestLogger → Metrics →
SecurityHeaders → CORS，/api/v1 下再叠加 RateLimiter → MaxBody →
Auth → OpenAPIValidator。
*/
package server
