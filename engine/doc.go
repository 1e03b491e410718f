// 版权所有 2025 SchemaForge Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 engine 实现服务端的结构化与模型生成流程。

# 核心类型

  - Structurer：将非结构化文本转换为符合调用方 JSON Schema 的数据。
    流程为 输入校验 → 模型解析 → token 上限检查 → 结果缓存 →
    系统提示构建 → LLM 调用 → JSON 提取与校验 → 修复轮重试。
  - ModelGenerator：根据样例数据与描述推断主模型及其子模型，
    生成 Go 源码并写入模型存储。相同的并发请求通过 singleflight 合并。

两者都通过 llm.Registry 按 "provider:model" 选择上游，
返回的错误均为 *types.Error。
*/
package engine
