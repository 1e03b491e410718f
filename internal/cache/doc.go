// 版权所有 2026 SchemaForge Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 cache 管理服务端共享的 Redis 连接。

Dial 建立连接并 Ping 校验，随后在后台定期探活；结果缓存的 Redis 层
与就绪检查都复用 Conn 持有的客户端。RedisConfig.TLS 打开时使用
tlsutil.Hardened 的 TLS 配置。
*/
package cache
