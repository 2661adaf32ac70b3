package middleware

import (
	"net/http"
	"slices"

	"github.com/go-chi/cors"
)

// NewCORSMiddleware は許可オリジン一覧に対するCORSミドルウェアを返す。
// "*"を含む場合は全オリジンを許可し、credentialsは送信させない。
// 認証はAuthorizationヘッダーで行うため、許可ヘッダーに含める。
func NewCORSMiddleware(allowedOrigins []string) func(next http.Handler) http.Handler {
	wildcard := slices.Contains(allowedOrigins, "*")
	return cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: !wildcard,
		MaxAge:           86400,
	})
}
