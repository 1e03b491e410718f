// Copyright 2026 SchemaForge Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
# 概述

包 providers 是 OpenAI 兼容服务商的公共层：线上格式、上游错误分类、
重试与熔断包装。具体的 HTTP 实现见 openaicompat 子包。

# 核心函数

  - StatusError：上游非 2xx 状态码转 *types.Error，并标记是否可重试
  - NetworkError / MalformedReply：连接失败与不可用回复，均可重试
  - EncodeRequest / WireResponse.Decode：llm 类型与线上格式互转
  - RetryableProvider：按 retry.Policy 重放可重试的 Completion
  - GuardedProvider：circuitbreaker 熔断包装，打开时返回 SERVICE_UNAVAILABLE
*/
package providers
