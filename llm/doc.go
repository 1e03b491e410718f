// 版权所有 2026 SchemaForge Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 llm 提供结构化服务使用的大语言模型接入层。

# 概述

引擎只依赖 [Provider] 接口：一次同步补全加健康检查。具体的 HTTP 实现位于
llm/providers/openaicompat，任何 OpenAI 兼容的服务（OpenAI、DeepSeek、
本地 Ollama、vLLM 等）都可以通过配置注册。

# 模型标识

模型以 "provider:model" 形式书写，例如 "openai:gpt-4o-mini"。
[ParseModelID] 负责拆分，省略 provider 时使用注册表的默认 Provider。

# 注册表

[Registry] 是并发安全的 Provider 注册表，[Registry.Resolve] 把模型标识
解析为 Provider 与上游模型名，找不到时返回 MODEL_NOT_FOUND 错误。
*/
package llm
