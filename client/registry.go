package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/BaSui01/schemaforge/api"
	"github.com/BaSui01/schemaforge/types"
	"go.uber.org/zap"
)

// ListModels 列出服务端保存的生成模型
func (c *Client) ListModels(ctx context.Context) (*api.ModelList, error) {
	var list api.ModelList
	if err := c.call(ctx, "list_models", http.MethodGet, "/api/v1/models", nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// GetModel 按名称读取生成模型，不存在时错误码为 NOT_FOUND
func (c *Client) GetModel(ctx context.Context, name string) (*api.ModelRecord, error) {
	if name == "" {
		return nil, types.NewInvalidRequestError("model name is required")
	}
	var rec api.ModelRecord
	if err := c.call(ctx, "get_model", http.MethodGet, "/api/v1/models/"+url.PathEscape(name), nil, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Health 查询服务健康状态。服务返回 503 时仍解析检查明细，Status 为 "unhealthy"。
func (c *Client) Health(ctx context.Context) (*api.HealthStatus, error) {
	resp, data, err := c.send(ctx, http.MethodGet, "/health", nil, "")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusServiceUnavailable {
		return nil, newAPIError(resp, nil)
	}
	var status api.HealthStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, types.NewError(types.ErrUpstreamError, "decode health response").WithCause(err)
	}
	c.logger.Debug("health checked", zap.String("status", status.Status))
	return &status, nil
}
