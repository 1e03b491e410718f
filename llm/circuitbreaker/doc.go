// Copyright (c) SchemaForge Authors.
// Licensed under the MIT License.

/*
Package circuitbreaker 为上游 LLM 调用提供三态熔断器。

连续 Threshold 次上游失败后进入 open，直接拒绝并返回 ErrOpen；
经过 ResetTimeout 后进入 half_open，放行 HalfOpenMaxCalls 个试探请求，
成功则关闭，失败则重新打开。调用方取消与客户端错误不计入失败。
*/
package circuitbreaker
