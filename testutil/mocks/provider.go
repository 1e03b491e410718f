// Package mocks 提供测试用的 llm.Provider 实现。
package mocks

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/BaSui01/schemaforge/llm"
	"github.com/BaSui01/schemaforge/testutil/fixtures"
)

// CompletionFunc 接管 Completion 的自定义实现
type CompletionFunc func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error)

// MockProvider 按脚本回复的 llm.Provider，记录收到的每个请求
type MockProvider struct {
	mu        sync.Mutex
	name      string
	replies   []string
	err       error
	delay     time.Duration
	unhealthy bool
	fn        CompletionFunc
	requests  []*llm.ChatRequest
}

var _ llm.Provider = (*MockProvider)(nil)

// NewMockProvider 名为 "mock"，默认回复 "{}"
func NewMockProvider() *MockProvider {
	return &MockProvider{name: "mock", replies: []string{"{}"}}
}

func (m *MockProvider) configure(fn func()) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn()
	return m
}

// WithName 设置 provider 名称
func (m *MockProvider) WithName(name string) *MockProvider {
	return m.configure(func() { m.name = name })
}

// WithResponse 每次调用都回复 content
func (m *MockProvider) WithResponse(content string) *MockProvider {
	return m.configure(func() { m.replies = []string{content} })
}

// WithResponses 按顺序回复，用完后重复最后一条
func (m *MockProvider) WithResponses(contents ...string) *MockProvider {
	return m.configure(func() { m.replies = append([]string(nil), contents...) })
}

// WithError 每次调用都返回 err
func (m *MockProvider) WithError(err error) *MockProvider {
	return m.configure(func() { m.err = err })
}

// WithDelay 回复前等待 d，等待期间响应 ctx 取消
func (m *MockProvider) WithDelay(d time.Duration) *MockProvider {
	return m.configure(func() { m.delay = d })
}

// WithUnhealthy HealthCheck 报告不健康
func (m *MockProvider) WithUnhealthy() *MockProvider {
	return m.configure(func() { m.unhealthy = true })
}

// WithCompletionFunc 由 fn 生成回复，优先于脚本回复
func (m *MockProvider) WithCompletionFunc(fn CompletionFunc) *MockProvider {
	return m.configure(func() { m.fn = fn })
}

// =============================================================================
// 🔌 llm.Provider
// =============================================================================

func (m *MockProvider) Name() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.name
}

func (m *MockProvider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unhealthy {
		return &llm.HealthStatus{Healthy: false}, errors.New("mock provider: unhealthy")
	}
	return &llm.HealthStatus{Healthy: true, Latency: time.Millisecond}, nil
}

// Completion 先记录请求，再依次应用延迟、错误、自定义函数与脚本回复
func (m *MockProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	n := len(m.requests)
	name, delay, err, fn := m.name, m.delay, m.err, m.fn
	reply := "{}"
	if len(m.replies) > 0 {
		reply = m.replies[min(n, len(m.replies))-1]
	}
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	if err != nil {
		return nil, err
	}
	if fn != nil {
		return fn(ctx, req)
	}

	resp := fixtures.SimpleResponse(reply)
	resp.Provider = name
	resp.Model = req.Model
	return resp, nil
}

// =============================================================================
// 🔍 调用记录
// =============================================================================

// CallCount 返回 Completion 被调用的次数（含失败）
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// LastRequest 返回最近一次请求，未调用时为 nil
func (m *MockProvider) LastRequest() *llm.ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return nil
	}
	return m.requests[len(m.requests)-1]
}
