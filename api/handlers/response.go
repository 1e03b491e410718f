package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/schemaforge/api"
	"github.com/BaSui01/schemaforge/types"
)

// WriteJSON 写出状态码与 JSON 正文
func WriteJSON(w http.ResponseWriter, status int, body any) {
	h := w.Header()
	h.Set("Content-Type", "application/json; charset=utf-8")
	h.Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// envelope 填充时间戳与请求 ID 的统一响应外壳
func envelope(r *http.Request) api.Response {
	resp := api.Response{Timestamp: time.Now().UTC()}
	if r == nil {
		return resp
	}
	if id, ok := types.RequestID(r.Context()); ok {
		resp.RequestID = id
	} else {
		resp.RequestID = r.Header.Get("X-Request-ID")
	}
	return resp
}

// WriteSuccess 以 200 写出 success=true 的外壳
func WriteSuccess(w http.ResponseWriter, r *http.Request, data any) {
	resp := envelope(r)
	resp.Success = true
	resp.Data = data
	WriteJSON(w, http.StatusOK, resp)
}

// WriteError 把 err 映射为错误外壳。
// 非 *types.Error 按 500 处理，原始信息只进日志。
func WriteError(w http.ResponseWriter, r *http.Request, err error, logger *zap.Logger) {
	e, ok := types.AsError(err)
	if !ok {
		e = types.NewInternalError("internal server error", err)
	}
	status := types.HTTPStatusFor(e)

	resp := envelope(r)
	resp.Error = &api.ErrorInfo{Code: string(e.Code), Message: e.Message, Retryable: e.Retryable}

	if logger != nil {
		log := logger.Warn
		if status >= http.StatusInternalServerError {
			log = logger.Error
		}
		log("request failed",
			zap.String("code", resp.Error.Code),
			zap.String("message", e.Message),
			zap.Int("status", status),
			zap.Bool("retryable", e.Retryable),
			zap.String("request_id", resp.RequestID),
			zap.NamedError("cause", e.Cause),
		)
	}
	WriteJSON(w, status, resp)
}

// WriteStatus 以指定状态码和错误码写出错误外壳
func WriteStatus(w http.ResponseWriter, r *http.Request, status int, code types.ErrorCode, message string, logger *zap.Logger) {
	WriteError(w, r, types.NewError(code, message).WithHTTPStatus(status), logger)
}
