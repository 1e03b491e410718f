package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	"github.com/BaSui01/schemaforge/api/handlers"
	"github.com/BaSui01/schemaforge/config"
	"github.com/BaSui01/schemaforge/types"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// APIKeyHeader API Key 请求头
const APIKeyHeader = "X-API-Key"

// DefaultSkipPaths 不需要认证的路径
var DefaultSkipPaths = []string{"/health", "/healthz", "/ready", "/version", "/openapi.json"}

// Auth 认证中间件。接受以下任一凭证：
//
//	X-API-Key: <api key>
//	Authorization: Bearer <api key>
//	Authorization: Bearer <HS256 JWT>   （配置了 JWTSecret 时）
//
// 未配置任何凭证时中间件直接放行。
func Auth(cfg config.AuthConfig, skipPaths []string, logger *zap.Logger) Middleware {
	if !cfg.Enabled() {
		return func(next http.Handler) http.Handler { return next }
	}

	skipSet := make(map[string]struct{}, len(skipPaths))
	for _, p := range skipPaths {
		skipSet[p] = struct{}{}
	}
	keys := newKeySet(cfg.APIKeys)
	verifyJWT := jwtVerifier(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, skip := skipSet[r.URL.Path]; skip {
				next.ServeHTTP(w, r)
				return
			}

			if key := r.Header.Get(APIKeyHeader); key != "" {
				if id, ok := keys.match(key); ok {
					next.ServeHTTP(w, r.WithContext(types.WithAPIKeyID(r.Context(), id)))
					return
				}
			}

			token, hasBearer := bearerToken(r)
			if hasBearer {
				if id, ok := keys.match(token); ok {
					next.ServeHTTP(w, r.WithContext(types.WithAPIKeyID(r.Context(), id)))
					return
				}
				if verifyJWT != nil {
					subject, err := verifyJWT(token)
					if err == nil {
						next.ServeHTTP(w, r.WithContext(types.WithAPIKeyID(r.Context(), "jwt:"+subject)))
						return
					}
					logger.Debug("JWT validation failed", zap.Error(err))
				}
			}

			handlers.WriteError(w, r,
				types.NewError(types.ErrUnauthorized, "invalid or missing credentials").
					WithHTTPStatus(http.StatusUnauthorized),
				nil)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(h[len(prefix):]), true
}

// keySet 以常量时间比较 API Key
type keySet struct {
	keys [][]byte
}

func newKeySet(keys []string) keySet {
	ks := keySet{}
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			ks.keys = append(ks.keys, []byte(k))
		}
	}
	return ks
}

// match 返回 key 的指纹（日志与 context 中不保存原文）
func (ks keySet) match(key string) (string, bool) {
	candidate := []byte(key)
	found := false
	for _, k := range ks.keys {
		if subtle.ConstantTimeCompare(k, candidate) == 1 {
			found = true
		}
	}
	if !found {
		return "", false
	}
	sum := sha256.Sum256(candidate)
	return "key:" + hex.EncodeToString(sum[:4]), true
}

// jwtVerifier 返回 HS256 JWT 校验函数，未配置密钥时返回 nil
func jwtVerifier(cfg config.AuthConfig) func(token string) (string, error) {
	if cfg.JWTSecret == "" {
		return nil
	}
	secret := []byte(cfg.JWTSecret)

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if cfg.JWTIssuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(cfg.JWTIssuer))
	}
	if cfg.JWTAudience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(cfg.JWTAudience))
	}
	parser := jwt.NewParser(parserOpts...)

	return func(tokenStr string) (string, error) {
		claims := &jwt.RegisteredClaims{}
		token, err := parser.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
			return secret, nil
		})
		if err != nil {
			return "", err
		}
		if !token.Valid {
			return "", fmt.Errorf("invalid token")
		}
		return claims.Subject, nil
	}
}
