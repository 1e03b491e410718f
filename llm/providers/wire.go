package providers

import (
	"time"

	"github.com/BaSui01/schemaforge/llm"
)

// =============================================================================
// 📦 OpenAI chat completions 线上格式
// =============================================================================

type WireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type WireRequest struct {
	Model          string              `json:"model"`
	Messages       []WireMessage       `json:"messages"`
	MaxTokens      int                 `json:"max_tokens,omitempty"`
	Temperature    float32             `json:"temperature"`
	ResponseFormat *llm.ResponseFormat `json:"response_format,omitempty"`
}

type WireChoice struct {
	Index        int         `json:"index"`
	FinishReason string      `json:"finish_reason"`
	Message      WireMessage `json:"message"`
}

type WireUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type WireResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []WireChoice `json:"choices"`
	Usage   *WireUsage   `json:"usage,omitempty"`
	Created int64        `json:"created,omitempty"`
}

// WireError 错误响应体
type WireError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// EncodeRequest 组装请求体，model 为空时依次取 defaultModel、fallbackModel
func EncodeRequest(req *llm.ChatRequest, defaultModel, fallbackModel string) WireRequest {
	model := req.Model
	for _, m := range []string{defaultModel, fallbackModel} {
		if model == "" {
			model = m
		}
	}
	msgs := make([]WireMessage, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = WireMessage{Role: string(m.Role), Content: m.Content}
	}
	return WireRequest{
		Model:          model,
		Messages:       msgs,
		MaxTokens:      req.MaxTokens,
		Temperature:    req.Temperature,
		ResponseFormat: req.ResponseFormat,
	}
}

// Decode 转为 llm.ChatResponse，provider 写入 Provider 字段
func (w WireResponse) Decode(provider string) *llm.ChatResponse {
	out := &llm.ChatResponse{
		ID:       w.ID,
		Provider: provider,
		Model:    w.Model,
		Choices:  make([]llm.ChatChoice, len(w.Choices)),
	}
	for i, c := range w.Choices {
		out.Choices[i] = llm.ChatChoice{
			Index:        c.Index,
			FinishReason: c.FinishReason,
			Message:      llm.Message{Role: llm.RoleAssistant, Content: c.Message.Content},
		}
	}
	if u := w.Usage; u != nil {
		out.Usage = llm.ChatUsage{PromptTokens: u.PromptTokens, CompletionTokens: u.CompletionTokens, TotalTokens: u.TotalTokens}
	}
	if w.Created > 0 {
		out.CreatedAt = time.Unix(w.Created, 0)
	}
	return out
}
