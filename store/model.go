package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/BaSui01/schemaforge/structured"
)

// GeneratedModel 一次模型生成的持久化结果
type GeneratedModel struct {
	ID          uint      `gorm:"primaryKey" json:"-"`
	Name        string    `gorm:"size:128;not null;uniqueIndex" json:"name"`
	Description string    `gorm:"type:text" json:"description,omitempty"`
	MainModel   string    `gorm:"size:128;not null" json:"main_model"`
	Schemas     string    `gorm:"type:text;not null" json:"-"` // name → JSON Schema
	Code        string    `gorm:"type:text" json:"code,omitempty"`
	LLMModel    string    `gorm:"size:128" json:"llm_model,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `gorm:"index" json:"updated_at"`
}

// TableName 指定表名
func (GeneratedModel) TableName() string { return "generated_models" }

// SetModels 序列化模型定义
func (m *GeneratedModel) SetModels(models map[string]*structured.JSONSchema) error {
	data, err := json.Marshal(models)
	if err != nil {
		return fmt.Errorf("encode schemas: %w", err)
	}
	m.Schemas = string(data)
	return nil
}

// Models 反序列化模型定义
func (m *GeneratedModel) Models() (map[string]*structured.JSONSchema, error) {
	models := make(map[string]*structured.JSONSchema)
	if m.Schemas == "" {
		return models, nil
	}
	if err := json.Unmarshal([]byte(m.Schemas), &models); err != nil {
		return nil, fmt.Errorf("decode schemas for %s: %w", m.Name, err)
	}
	return models, nil
}
