// Copyright 2026 SchemaForge Authors
// Licensed under the MIT License.

/*
Package structured 提供 JSON Schema 建模、反射生成、校验以及 LLM 回复解析能力。

# 核心类型

  - JSONSchema：保序属性、可空类型、$defs/$ref 的 Schema 模型
  - SchemaGenerator：通过反射从 Go 类型生成 Schema（结构体子模型进入 $defs）
  - DefaultValidator：带 $ref 解析与格式校验的校验器
  - ValidationErrors：带字段路径的校验错误集合

# 主要能力

  - SchemaFor[T] / Decode[T]：类型安全的 Schema 生成与校验解码
  - ExtractJSON / ParseReply：从模型回复中提取 JSON
  - BuildSystemPrompt / BuildRepairPrompt / DescribeSchema：结构化提示词渲染
*/
package structured
