package api

import (
	"context"
	_ "embed"
	"fmt"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi.yaml
var openapiYAML []byte

var (
	specOnce sync.Once
	specDoc  *openapi3.T
	specJSON []byte
	specErr  error
)

// LoadSpec 解析并校验内嵌的 OpenAPI 文档，结果在进程内缓存。
// 返回的文档为只读。
func LoadSpec() (*openapi3.T, error) {
	specOnce.Do(func() {
		loader := openapi3.NewLoader()
		doc, err := loader.LoadFromData(openapiYAML)
		if err != nil {
			specErr = fmt.Errorf("load openapi document: %w", err)
			return
		}
		if err := doc.Validate(context.Background()); err != nil {
			specErr = fmt.Errorf("validate openapi document: %w", err)
			return
		}
		b, err := doc.MarshalJSON()
		if err != nil {
			specErr = fmt.Errorf("encode openapi document: %w", err)
			return
		}
		specDoc, specJSON = doc, b
	})
	return specDoc, specErr
}

// OpenAPIJSON 返回 JSON 形式的 OpenAPI 文档
func OpenAPIJSON() ([]byte, error) {
	if _, err := LoadSpec(); err != nil {
		return nil, err
	}
	return specJSON, nil
}
