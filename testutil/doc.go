/*
Package testutil 提供 SchemaForge 测试共享的工具函数。

  - TestContext: 带超时并自动 Cleanup 的上下文
  - MustJSON: 构造请求体
  - ChatCompletionServer: OpenAI 兼容的上游，用于端到端测试 serve 与 provider

# 子包

  - testutil/mocks: MockProvider（llm.Provider 的脚本化实现），
    支持按顺序回放响应、错误注入、延迟与调用记录
  - testutil/fixtures: ChatResponse 工厂与示例 schema / 模型生成回复
*/
package testutil
