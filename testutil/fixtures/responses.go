package fixtures

import (
	"time"

	"github.com/BaSui01/schemaforge/llm"
)

// SimpleResponse 助手回复 content 的单选项响应
func SimpleResponse(content string) *llm.ChatResponse {
	return &llm.ChatResponse{
		ID:       "resp-fixture",
		Provider: "mock",
		Model:    "test-model",
		Choices: []llm.ChatChoice{
			{
				Index:        0,
				FinishReason: "stop",
				Message: llm.Message{
					Role:    llm.RoleAssistant,
					Content: content,
				},
			},
		},
		Usage: llm.ChatUsage{
			PromptTokens:     10,
			CompletionTokens: 20,
			TotalTokens:      30,
		},
		CreatedAt: time.Now(),
	}
}

// FencedJSON 将 JSON 包裹在 markdown 代码块中，模拟常见的模型输出
func FencedJSON(doc string) string {
	return "Here is the result:\n```json\n" + doc + "\n```"
}
