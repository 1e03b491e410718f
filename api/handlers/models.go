package handlers

import (
	"net/http"

	"github.com/BaSui01/schemaforge/api"
	"github.com/BaSui01/schemaforge/store"
	"github.com/BaSui01/schemaforge/types"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ModelsHandler 处理模型注册表读取
type ModelsHandler struct {
	store  store.ModelStore
	logger *zap.Logger
}

// NewModelsHandler 创建模型注册表处理器
func NewModelsHandler(s store.ModelStore, logger *zap.Logger) *ModelsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModelsHandler{store: s, logger: logger.With(zap.String("handler", "models"))}
}

// HandleList 处理 GET /api/v1/models
func (h *ModelsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	models, err := h.store.List(r.Context())
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}

	list := api.ModelList{Models: make([]api.ModelRecord, 0, len(models))}
	for _, m := range models {
		rec, err := toRecord(m)
		if err != nil {
			WriteError(w, r, err, h.logger)
			return
		}
		list.Models = append(list.Models, rec)
	}
	list.Total = len(list.Models)

	WriteSuccess(w, r, list)
}

// HandleGet 处理 GET /api/v1/models/{name}
func (h *ModelsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" {
		WriteError(w, r, types.NewInvalidRequestError("model name is required"), h.logger)
		return
	}

	m, err := h.store.Get(r.Context(), name)
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}
	rec, err := toRecord(m)
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}

	WriteSuccess(w, r, rec)
}

func toRecord(m *store.GeneratedModel) (api.ModelRecord, error) {
	models, err := m.Models()
	if err != nil {
		return api.ModelRecord{}, types.WrapError(err, types.ErrStorageFailure, "stored model "+m.Name+" is corrupt")
	}
	return api.ModelRecord{
		Name:        m.Name,
		Description: m.Description,
		MainModel:   m.MainModel,
		Models:      models,
		Code:        m.Code,
		LLMModel:    m.LLMModel,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}, nil
}
