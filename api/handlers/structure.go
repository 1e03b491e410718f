package handlers

import (
	"context"
	"net/http"

	"github.com/BaSui01/schemaforge/api"
	"github.com/BaSui01/schemaforge/engine"
	"go.uber.org/zap"
)

// Structurer 结构化引擎接口
type Structurer interface {
	Structure(ctx context.Context, in engine.StructureInput) (*engine.StructureOutput, error)
}

// StructureHandler 处理 POST /api/v1/structure
type StructureHandler struct {
	structurer   Structurer
	maxBodyBytes int64
	logger       *zap.Logger
}

// NewStructureHandler 创建结构化处理器
func NewStructureHandler(s Structurer, maxBodyBytes int64, logger *zap.Logger) *StructureHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StructureHandler{
		structurer:   s,
		maxBodyBytes: maxBodyBytes,
		logger:       logger.With(zap.String("handler", "structure")),
	}
}

// ServeHTTP 实现 http.Handler
func (h *StructureHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req api.StructureRequest
	if !ReadJSON(w, r, &req, h.maxBodyBytes, h.logger) {
		return
	}

	out, err := h.structurer.Structure(r.Context(), engine.StructureInput{
		Content:             req.Content,
		Schema:              req.Schema,
		SchemaName:          req.SchemaName,
		SystemPrompt:        req.SystemPrompt,
		Model:               req.Model,
		IncludeDescriptions: req.IncludeSchemaDescription,
	})
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}

	WriteSuccess(w, r, api.StructureResponse{
		Data:     out.Data,
		Model:    out.Model,
		Usage:    api.Usage(out.Usage),
		Attempts: out.Attempts,
		Cached:   out.Cached,
	})
}
