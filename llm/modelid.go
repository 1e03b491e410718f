package llm

import (
	"fmt"
	"strings"
)

// ModelID 是 "provider:model" 形式的模型标识.
type ModelID struct {
	Provider string
	Model    string
}

// ParseModelID 拆分 "provider:model"。不含冒号时 Provider 为空，
// 由注册表填入默认 Provider。
func ParseModelID(s string) (ModelID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ModelID{}, fmt.Errorf("empty model identifier")
	}
	provider, model, found := strings.Cut(s, ":")
	if !found {
		return ModelID{Model: s}, nil
	}
	provider = strings.TrimSpace(provider)
	model = strings.TrimSpace(model)
	if provider == "" || model == "" {
		return ModelID{}, fmt.Errorf("invalid model identifier %q, want provider:model", s)
	}
	return ModelID{Provider: provider, Model: model}, nil
}

func (m ModelID) String() string {
	if m.Provider == "" {
		return m.Model
	}
	return m.Provider + ":" + m.Model
}
