package handlers

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"

	"go.uber.org/zap"

	"github.com/BaSui01/schemaforge/types"
)

// DefaultMaxBodyBytes maxBytes <= 0 时的请求体上限
const DefaultMaxBodyBytes int64 = 1 << 20

type validatable interface {
	Validate() error
}

// ReadJSON 校验 Content-Type，严格解码请求体到 dst，
// dst 实现 Validate 时一并校验。返回 false 时错误响应已写出。
func ReadJSON(w http.ResponseWriter, r *http.Request, dst any, maxBytes int64, logger *zap.Logger) bool {
	if err := decodeRequest(w, r, dst, maxBytes); err != nil {
		WriteError(w, r, err, logger)
		return false
	}
	return true
}

func decodeRequest(w http.ResponseWriter, r *http.Request, dst any, maxBytes int64) error {
	if mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err != nil || mt != "application/json" {
		return types.NewInvalidRequestError("Content-Type must be application/json")
	}
	if r.Body == nil || r.Body == http.NoBody {
		return types.NewInvalidRequestError("request body is empty")
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return types.NewError(types.ErrInvalidRequest, "request body too large").
				WithCause(err).
				WithHTTPStatus(http.StatusRequestEntityTooLarge)
		}
		return types.NewInvalidRequestError("invalid JSON body").WithCause(err)
	}

	if v, ok := dst.(validatable); ok {
		return v.Validate()
	}
	return nil
}
