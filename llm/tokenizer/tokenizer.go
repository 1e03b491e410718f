package tokenizer

import "strings"

// Tokenizer 统一的 token 计数接口.
type Tokenizer interface {
	// CountTokens 返回给定文本的 token 数.
	CountTokens(text string) (int, error)

	// CountMessages 返回消息列表的总 token 数,
	// 包括每条消息的开销（角色标记、分隔符等）。
	CountMessages(messages []Message) (int, error)

	// MaxTokens 返回模型的最大上下文长度.
	MaxTokens() int

	// Name 返回分词器的名称.
	Name() string
}

// Message 是 tokenizer 包使用的轻量级消息结构，避免依赖 llm 包。
type Message struct {
	Role    string
	Content string
}

// ForModel 为模型选择分词器。useTiktoken 为 true 且模型属于 OpenAI 家族时
// 返回 tiktoken 实现，否则返回估算器。model 可以带 "provider:" 前缀。
func ForModel(model string, useTiktoken bool) Tokenizer {
	if i := strings.Index(model, ":"); i >= 0 {
		model = model[i+1:]
	}
	if useTiktoken {
		if t, ok := NewTiktokenTokenizer(model); ok {
			return t
		}
	}
	return NewEstimatorTokenizer(model, 0)
}
