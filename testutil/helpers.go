// =============================================================================
// 🧪 测试辅助函数
// =============================================================================
// 使用方法:
//
//	ctx := testutil.TestContext(t)
//	upstream := testutil.NewChatCompletionServer(t, func(prompt string) string { return `{"ok":true}` })
// =============================================================================
package testutil

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// TestContext 返回 30 秒超时的上下文，测试结束时取消
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// MustJSON 序列化，失败时 panic
func MustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(data)
}

// =============================================================================
// 🌐 OpenAI 兼容的上游
// =============================================================================

// ChatCompletionServer 模拟 OpenAI 兼容的 /v1/chat/completions 与 /v1/models
type ChatCompletionServer struct {
	*httptest.Server
	calls atomic.Int32
}

// Calls 返回 chat completions 被调用的次数
func (s *ChatCompletionServer) Calls() int { return int(s.calls.Load()) }

// NewChatCompletionServer 启动上游，reply 收到所有消息拼接后的 prompt 并返回助手回复
func NewChatCompletionServer(t *testing.T, reply func(prompt string) string) *ChatCompletionServer {
	t.Helper()
	s := &ChatCompletionServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/models", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"object": "list", "data": []any{}})
	})
	mux.HandleFunc("POST /v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		s.calls.Add(1)
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var prompt strings.Builder
		for _, m := range req.Messages {
			prompt.WriteString(m.Content)
			prompt.WriteString("\n")
		}
		writeJSON(w, map[string]any{
			"id":    "chatcmpl-test",
			"model": req.Model,
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]string{"role": "assistant", "content": reply(prompt.String())},
			}},
			"usage": map[string]int{"prompt_tokens": 20, "completion_tokens": 10, "total_tokens": 30},
		})
	})
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
