package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"

	"github.com/BaSui01/schemaforge/api"
	"github.com/BaSui01/schemaforge/structured"
	"github.com/BaSui01/schemaforge/types"
)

const generatePath = "/api/v1/generate-model"

// GenerationResult 模型生成结果。失败时 Success 为 false，访问器返回 ErrGenerationFailed。
type GenerationResult struct {
	Success   bool
	ModelName string
	Error     string
	LLMModel  string
	Usage     *api.Usage

	mainModel string
	models    map[string]*structured.JSONSchema
	code      string
}

func newGenerationResult(resp *api.GenerateModelResponse) *GenerationResult {
	r := &GenerationResult{
		Success:   resp.Success,
		ModelName: resp.ModelName,
		Error:     resp.Error,
		LLMModel:  resp.Model,
		Usage:     resp.Usage,
	}
	if !resp.Success {
		return r
	}
	r.mainModel = resp.MainModel
	if r.mainModel == "" {
		r.mainModel = resp.ModelName
	}
	r.models = resp.Models
	r.code = resp.Code
	return r
}

// Models 返回全部模型定义（主模型与子模型）
func (r *GenerationResult) Models() (map[string]*structured.JSONSchema, error) {
	if !r.Success {
		return nil, r.failure()
	}
	out := make(map[string]*structured.JSONSchema, len(r.models))
	for name, s := range r.models {
		out[name] = s.Clone()
	}
	return out, nil
}

// ModelNames 按名称排序的模型列表
func (r *GenerationResult) ModelNames() ([]string, error) {
	if !r.Success {
		return nil, r.failure()
	}
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// MainModel 返回主模型
func (r *GenerationResult) MainModel() (*structured.JSONSchema, error) {
	return r.Schema(r.mainModel)
}

// Schema 按名称返回模型
func (r *GenerationResult) Schema(name string) (*structured.JSONSchema, error) {
	if !r.Success {
		return nil, r.failure()
	}
	s, ok := r.models[name]
	if !ok {
		return nil, fmt.Errorf("model %q not in generation result", name)
	}
	return s.Clone(), nil
}

// BundledSchema 返回自包含的主模型 schema，子模型位于 $defs，可直接用于 StructureRaw
func (r *GenerationResult) BundledSchema() (*structured.JSONSchema, error) {
	if !r.Success {
		return nil, r.failure()
	}
	return structured.Bundle(r.mainModel, r.models)
}

// Code 返回生成的 Go 源码
func (r *GenerationResult) Code() (string, error) {
	if !r.Success {
		return "", r.failure()
	}
	return r.code, nil
}

func (r *GenerationResult) failure() error {
	if r.Error == "" {
		return ErrGenerationFailed
	}
	return fmt.Errorf("%w: %s", ErrGenerationFailed, r.Error)
}

// GenerateModel 根据样例数据生成模型。
// 生成失败时同时返回 Success=false 的结果和包装 ErrGenerationFailed 的错误。
func (c *Client) GenerateModel(ctx context.Context, req api.GenerateModelRequest) (*GenerationResult, error) {
	if req.Model == "" {
		req.Model = c.cfg.DefaultModel
	}
	if err := req.Validate(); err != nil {
		return &GenerationResult{ModelName: req.ModelName, Error: err.Error()}, err
	}

	var resp api.GenerateModelResponse
	err := c.call(ctx, "generate_model", http.MethodPost, generatePath, &req, &resp)
	if err == nil {
		if !resp.Success {
			result := newGenerationResult(&resp)
			return result, result.failure()
		}
		return newGenerationResult(&resp), nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Code() == types.ErrGenerationFailed {
		return &GenerationResult{ModelName: req.ModelName, Error: apiErr.Err.Message},
			fmt.Errorf("%w: %w", ErrGenerationFailed, apiErr)
	}
	return &GenerationResult{ModelName: req.ModelName, Error: err.Error()}, err
}

// GenerateModelAsync 非阻塞的 GenerateModel
func (c *Client) GenerateModelAsync(ctx context.Context, req api.GenerateModelRequest) *Future[GenerationResult] {
	return goFuture(func() (*GenerationResult, error) {
		return c.GenerateModel(ctx, req)
	})
}
