package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/BaSui01/schemaforge/api"
	"github.com/BaSui01/schemaforge/structured"
	"github.com/BaSui01/schemaforge/types"
	"golang.org/x/sync/errgroup"
)

const structurePath = "/api/v1/structure"

// Structure 从 T 反射 schema，请求服务抽取结构化数据，校验后解码为 T
func Structure[T any](ctx context.Context, c *Client, content string, opts ...StructureOption) (*T, error) {
	schema, err := structured.SchemaFor[T]()
	if err != nil {
		return nil, types.NewError(types.ErrSchemaInvalid, "derive schema").WithCause(err)
	}
	data, err := c.StructureRaw(ctx, content, schema, opts...)
	if err != nil {
		return nil, err
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, &structured.ValidationErrors{Errors: []structured.ParseError{
			{Message: fmt.Sprintf("decode into %T: %v", out, err)},
		}}
	}
	return &out, nil
}

// StructureRaw 针对动态 schema 结构化，返回经过本地校验的 JSON
func (c *Client) StructureRaw(ctx context.Context, content string, schema *structured.JSONSchema, opts ...StructureOption) (json.RawMessage, error) {
	resp, err := c.StructureWithResponse(ctx, content, schema, opts...)
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// StructureWithResponse 同 StructureRaw，额外返回模型、用量与尝试次数
func (c *Client) StructureWithResponse(ctx context.Context, content string, schema *structured.JSONSchema, opts ...StructureOption) (*api.StructureResponse, error) {
	req := api.StructureRequest{
		Content: content,
		Schema:  schema,
		Model:   c.cfg.DefaultModel,
	}
	if schema != nil {
		req.SchemaName = schema.Title
	}
	for _, opt := range opts {
		opt(&req)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var resp api.StructureResponse
	if err := c.call(ctx, "structure", http.MethodPost, structurePath, &req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, types.NewError(types.ErrExtractionFailed, "service returned no data")
	}
	if err := c.validator.Validate(resp.Data, schema); err != nil {
		return nil, err
	}
	return &resp, nil
}

// =============================================================================
// ⏳ 异步
// =============================================================================

// Future 异步调用的结果
type Future[T any] struct {
	done chan struct{}
	val  *T
	err  error
}

func goFuture[T any](fn func() (*T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.val, f.err = fn()
	}()
	return f
}

// Done 调用完成时关闭
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Await 等待结果；ctx 结束时返回 ctx.Err()，后台调用不受影响
func (f *Future[T]) Await(ctx context.Context) (*T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// StructureAsync 非阻塞的 Structure
func StructureAsync[T any](ctx context.Context, c *Client, content string, opts ...StructureOption) *Future[T] {
	return goFuture(func() (*T, error) {
		return Structure[T](ctx, c, content, opts...)
	})
}

// StructureAll 并发结构化多段文本，结果与输入按位置对齐。
// 任一调用失败时取消其余调用并返回第一个错误。
func StructureAll[T any](ctx context.Context, c *Client, contents []string, opts ...StructureOption) ([]*T, error) {
	results := make([]*T, len(contents))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.MaxConcurrency)
	for i, content := range contents {
		g.Go(func() error {
			v, err := Structure[T](gctx, c, content, opts...)
			if err != nil {
				return fmt.Errorf("item %d: %w", i, err)
			}
			results[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
