// 版权所有 2026 SchemaForge Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 cache 提供结构化结果的多级缓存。

# 概述

相同的模型、提示词、Schema 与输入内容会得到相同的结构化结果，
引擎在调用 LLM 之前先查询缓存。缓存键由 [Key] 对这些输入做 SHA-256 计算得到。

# 核心类型

  - [ResultCache]：缓存接口，Get/Set/Delete
  - [MultiLevelCache]：本地 LRU + Redis 两级实现，Redis 命中时回填本地
  - [LRUCache]：基于 container/list 的进程内 LRU，带 TTL

Redis 不可用时读路径降级为未命中，不影响请求。
*/
package cache
