// Copyright (c) SchemaForge Authors.
// Licensed under the MIT License.

/*
Package client 是 SchemaForge 结构化服务的 Go 客户端。

客户端把非结构化文本与目标 JSON Schema 发送到服务端，取回校验过的结构化数据；
也可以根据样例数据请求服务端生成模型定义。

# 基本用法

	c, err := client.New(client.WithAPIKey(key), client.WithAPIBase("http://localhost:8000"))
	product, err := client.Structure[Product](ctx, c, text)

动态 schema 使用 StructureRaw，批量文本使用 StructureAll（结果与输入按位置对齐），
非阻塞调用使用 StructureAsync 与 GenerateModelAsync 返回的 Future。

# 重试

429、5xx 与网络错误按指数退避重试，服务端的 Retry-After 优先；4xx 直接返回 *APIError。
同一逻辑调用的所有尝试共享一个 X-Request-ID。
*/
package client
