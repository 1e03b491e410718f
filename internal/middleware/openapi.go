package middleware

import (
	"errors"
	"net/http"

	"github.com/BaSui01/schemaforge/api/handlers"
	"github.com/BaSui01/schemaforge/types"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers/legacy"
	"go.uber.org/zap"
)

// OpenAPIValidator 按 OpenAPI 文档校验请求参数与请求体。
// 文档中未声明的路由直接放行，由路由器返回 404/405。
// 认证由 Auth 中间件负责，这里跳过 security 校验。
func OpenAPIValidator(doc *openapi3.T, logger *zap.Logger) (Middleware, error) {
	router, err := legacy.NewRouter(doc)
	if err != nil {
		return nil, err
	}
	opts := &openapi3filter.Options{
		AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
		MultiError:         false,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route, pathParams, err := router.FindRoute(r)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			input := &openapi3filter.RequestValidationInput{
				Request:    r,
				PathParams: pathParams,
				Route:      route,
				Options:    opts,
			}
			if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
				logger.Debug("request rejected by openapi validator",
					zap.String("path", r.URL.Path),
					zap.Error(err),
				)
				handlers.WriteError(w, r, validationError(err), nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}, nil
}

func validationError(err error) *types.Error {
	var reqErr *openapi3filter.RequestError
	if errors.As(err, &reqErr) && reqErr.RequestBody != nil && reqErr.Err != nil {
		return types.NewInvalidRequestError("request body does not match the API schema: " + reqErr.Err.Error()).WithCause(err)
	}
	return types.NewInvalidRequestError(err.Error()).WithCause(err)
}
