package handlers

import (
	"net/http"

	"github.com/BaSui01/schemaforge/api"
	"github.com/BaSui01/schemaforge/types"
	"go.uber.org/zap"
)

// OpenAPIHandler 返回 /openapi.json 处理器
func OpenAPIHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := api.OpenAPIJSON()
		if err != nil {
			WriteError(w, r, types.NewInternalError("openapi document unavailable", err), logger)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write(b); err != nil && logger != nil {
			logger.Debug("write openapi", zap.Error(err))
		}
	}
}
