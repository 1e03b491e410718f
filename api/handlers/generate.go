package handlers

import (
	"context"
	"net/http"

	"github.com/BaSui01/schemaforge/api"
	"github.com/BaSui01/schemaforge/engine"
	"github.com/BaSui01/schemaforge/types"
	"go.uber.org/zap"
)

// ModelGenerator 模型生成引擎接口
type ModelGenerator interface {
	Generate(ctx context.Context, in engine.GenerateInput) (*engine.GenerateOutput, error)
}

// GenerateHandler 处理 POST /api/v1/generate-model
type GenerateHandler struct {
	generator    ModelGenerator
	maxBodyBytes int64
	logger       *zap.Logger
}

// NewGenerateHandler 创建模型生成处理器
func NewGenerateHandler(g ModelGenerator, maxBodyBytes int64, logger *zap.Logger) *GenerateHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GenerateHandler{
		generator:    g,
		maxBodyBytes: maxBodyBytes,
		logger:       logger.With(zap.String("handler", "generate_model")),
	}
}

// ServeHTTP 实现 http.Handler。
// 生成失败返回 422，data 中携带 success=false 与错误信息。
func (h *GenerateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req api.GenerateModelRequest
	if !ReadJSON(w, r, &req, h.maxBodyBytes, h.logger) {
		return
	}

	out, err := h.generator.Generate(r.Context(), engine.GenerateInput{
		SampleData:  req.SampleData,
		ModelName:   req.ModelName,
		Description: req.Description,
		Model:       req.Model,
	})
	if err != nil {
		if types.IsErrorCode(err, types.ErrGenerationFailed) {
			h.writeFailure(w, r, req.ModelName, err)
			return
		}
		WriteError(w, r, err, h.logger)
		return
	}

	usage := api.Usage(out.Usage)
	WriteSuccess(w, r, api.GenerateModelResponse{
		Success:   true,
		ModelName: out.ModelName,
		MainModel: out.ModelName,
		Models:    out.Models,
		Code:      out.Code,
		Model:     out.Model,
		Usage:     &usage,
	})
}

func (h *GenerateHandler) writeFailure(w http.ResponseWriter, r *http.Request, name string, err error) {
	apiErr, _ := types.AsError(err)
	resp := envelope(r)
	h.logger.Warn("model generation failed",
		zap.String("model_name", name),
		zap.String("request_id", resp.RequestID),
		zap.Error(err),
	)
	resp.Data = api.GenerateModelResponse{
		Success:   false,
		ModelName: name,
		Error:     apiErr.Message,
	}
	resp.Error = &api.ErrorInfo{
		Code:    string(apiErr.Code),
		Message: apiErr.Message,
	}
	WriteJSON(w, http.StatusUnprocessableEntity, resp)
}
