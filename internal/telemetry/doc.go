// Package telemetry 初始化 OpenTelemetry：始终安装 W3C trace context 传播器，
// 启用导出时创建 OTLP gRPC 的 TracerProvider 与 MeterProvider。
// StartSpan/EndSpan 供引擎、处理器与 SDK 记录 span。
package telemetry
