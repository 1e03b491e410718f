// Copyright (c) SchemaForge Authors.
// Licensed under the MIT License.

/*
Package types 提供 SchemaForge 的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 client、engine、api、
llm 等上层模块提供统一的错误体系与上下文传播工具，避免循环依赖。

# 核心类型

  - Error / ErrorCode：结构化错误，含 HTTP 状态码、Retryable、Provider 标记
  - WithRequestID / RequestID：请求 ID 在 context 中的传播
  - WithLLMModel / LLMModel：实际使用的模型标识传播

# 主要能力

  - 错误工具链：AsError / IsErrorCode / IsRetryable / HTTPStatusFor
  - 常用错误构造：NewInvalidRequestError / NewTimeoutError / NewInternalError
*/
package types
