package api

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/BaSui01/schemaforge/structured"
	"github.com/BaSui01/schemaforge/types"
)

// =============================================================================
// 📦 统一响应信封
// =============================================================================

// Response 统一 API 响应结构
type Response struct {
	Success   bool       `json:"success"`
	Data      any        `json:"data,omitempty"`
	Error     *ErrorInfo `json:"error,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
	RequestID string     `json:"request_id,omitempty"`
}

// RawResponse 客户端解码用的响应信封，Data 延迟解析
type RawResponse struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     *ErrorInfo      `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	RequestID string          `json:"request_id,omitempty"`
}

// ErrorInfo 错误信息结构
type ErrorInfo struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

// ToError 还原为 *types.Error
func (e *ErrorInfo) ToError(status int) *types.Error {
	return types.NewError(types.ErrorCode(e.Code), e.Message).
		WithHTTPStatus(status).
		WithRetryable(e.Retryable)
}

// =============================================================================
// 🧩 结构化
// =============================================================================

// StructureRequest 结构化请求
type StructureRequest struct {
	// 待结构化的原始文本
	Content string `json:"content"`
	// 目标 JSON Schema，必须是对象 schema
	Schema *structured.JSONSchema `json:"schema"`
	// 目标模型名，用于提示词
	SchemaName string `json:"schema_name,omitempty"`
	// 覆盖默认系统提示词
	SystemPrompt string `json:"system_prompt,omitempty"`
	// provider:model 形式的模型覆盖
	Model string `json:"model,omitempty"`
	// 是否在提示词中包含模型与字段描述
	IncludeSchemaDescription bool `json:"include_schema_description,omitempty"`
}

// Validate 校验请求
func (r *StructureRequest) Validate() error {
	if strings.TrimSpace(r.Content) == "" {
		return types.NewInvalidRequestError("content is required")
	}
	if r.Schema == nil {
		return types.NewInvalidRequestError("schema is required")
	}
	if !r.Schema.IsObject() {
		return types.NewError(types.ErrSchemaInvalid, "schema must describe a JSON object").
			WithHTTPStatus(types.DefaultHTTPStatus(types.ErrSchemaInvalid))
	}
	return nil
}

// Usage token 用量
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// StructureResponse 结构化结果
type StructureResponse struct {
	Data     json.RawMessage `json:"data"`
	Model    string          `json:"model"`
	Usage    Usage           `json:"usage"`
	Attempts int             `json:"attempts"`
	Cached   bool            `json:"cached"`
}

// =============================================================================
// 🏗️ 模型生成
// =============================================================================

// GenerateModelRequest 模型生成请求
type GenerateModelRequest struct {
	// 样例数据（任意文本，通常为 JSON）
	SampleData string `json:"sample_data"`
	// 主模型名，必须以字母开头
	ModelName string `json:"model_name"`
	// 自然语言描述
	Description string `json:"description,omitempty"`
	// provider:model 形式的模型覆盖
	Model string `json:"model,omitempty"`
}

// Validate 校验请求
func (r *GenerateModelRequest) Validate() error {
	if strings.TrimSpace(r.SampleData) == "" {
		return types.NewInvalidRequestError("sample_data is required")
	}
	if strings.TrimSpace(r.ModelName) == "" {
		return types.NewInvalidRequestError("model_name is required")
	}
	return nil
}

// GenerateModelResponse 模型生成结果。Success 为 false 时只有 Error 有效。
type GenerateModelResponse struct {
	Success   bool                              `json:"success"`
	ModelName string                            `json:"model_name,omitempty"`
	MainModel string                            `json:"main_model,omitempty"`
	Models    map[string]*structured.JSONSchema `json:"models,omitempty"`
	Code      string                            `json:"code,omitempty"`
	Model     string                            `json:"model,omitempty"`
	Usage     *Usage                            `json:"usage,omitempty"`
	Error     string                            `json:"error,omitempty"`
}

// =============================================================================
// 📚 模型注册表
// =============================================================================

// ModelRecord 已存储的生成模型
type ModelRecord struct {
	Name        string                            `json:"name"`
	Description string                            `json:"description,omitempty"`
	MainModel   string                            `json:"main_model"`
	Models      map[string]*structured.JSONSchema `json:"models"`
	Code        string                            `json:"code,omitempty"`
	LLMModel    string                            `json:"llm_model,omitempty"`
	CreatedAt   time.Time                         `json:"created_at"`
	UpdatedAt   time.Time                         `json:"updated_at"`
}

// ModelList 模型列表
type ModelList struct {
	Models []ModelRecord `json:"models"`
	Total  int           `json:"total"`
}

// =============================================================================
// 🏥 健康检查
// =============================================================================

// HealthStatus 健康状态响应
type HealthStatus struct {
	Status    string                 `json:"status"` // "healthy", "unhealthy"
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version,omitempty"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult 单个检查结果
type CheckResult struct {
	Status  string `json:"status"` // "pass", "fail"
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// VersionInfo 版本信息
type VersionInfo struct {
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
}
