// Copyright (c) SchemaForge Authors.
// Licensed under the MIT License.

/*
Package handlers 提供 SchemaForge HTTP API 的请求处理器实现。

# 核心类型

  - StructureHandler: POST /api/v1/structure，调用结构化引擎
  - GenerateHandler: POST /api/v1/generate-model，推断模型并生成 Go 源码
  - ModelsHandler: GET /api/v1/models[/{name}]，读取模型注册表
  - HealthHandler: /health, /healthz, /ready, /version
  - OpenAPIHandler: /openapi.json
  - StatusRecorder: 记录状态码与响应字节数

请求体统一经 ReadJSON 解码与校验；错误通过 WriteError 输出为
api.Response 外壳，HTTP 状态码由 types.HTTPStatusFor 决定。
*/
package handlers
