/*
包 metrics 提供基于 Prometheus 的指标采集。

Collector 是服务端指标：HTTP（按 chi 路由模板）、LLM 调用与 token、
结构化轮数、模型生成、结果缓存命中层级、数据库连接池与语句耗时。
ClientCollector 是 SDK 指标，只包含调用、耗时与重试三项，
避免在使用方的 Registry 中注册服务端指标。

两者都通过 promauto.With 注册到注入的 Registerer，
测试中使用独立的 prometheus.NewRegistry 即可避免重复注册。
所有 Record 方法对 nil 接收者安全。
*/
package metrics
