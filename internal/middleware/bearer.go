// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/formportal/internal/model"
)

const bearerScheme = "bearer"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// userContextKey はリクエストコンテキストに認証済みユーザーを格納するためのキー。
var userContextKey = contextKey("user")

// IdentityResolver はアクセストークンからユーザーを解決するインターフェース。
// auth.Serviceが実装する。
type IdentityResolver interface {
	Resolve(ctx context.Context, accessToken string) (*model.User, error)
}

// AuthenticatedIdentity はAuthorizationヘッダーの値から認証済みユーザーを解決する。
// ヘッダーは空白区切りで厳密に2要素、かつスキームがbearer（大文字小文字不問）でなければならない。
// それ以外はUNAUTHENTICATEDを返す。トークンの検証はresolverに委譲する。
func AuthenticatedIdentity(ctx context.Context, resolver IdentityResolver, header string) (*model.User, error) {
	if header == "" {
		return nil, model.NewUnauthenticatedError("Missing Authorization header")
	}

	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], bearerScheme) {
		return nil, model.NewUnauthenticatedError("Invalid authentication scheme")
	}

	return resolver.Resolve(ctx, parts[1])
}

// NewBearerMiddleware はAuthorization: Bearerヘッダーを検証するミドルウェアを返す。
// 認証済みユーザーをリクエストコンテキストに注入する。
// 認証に失敗したリクエストには401を統一エラーフォーマットで返す。
func NewBearerMiddleware(resolver IdentityResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := AuthenticatedIdentity(r.Context(), resolver, r.Header.Get("Authorization"))
			if err != nil {
				var apiErr *model.APIError
				if errors.As(err, &apiErr) {
					w.Header().Set("WWW-Authenticate", "Bearer")
					WriteErrorResponse(w, http.StatusUnauthorized, apiErr)
					return
				}
				slog.Error("failed to resolve identity",
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w)
				return
			}

			// ロギングミドルウェアが外側にある場合はユーザーIDを通知する
			if info := requestInfoFromContext(r.Context()); info != nil {
				info.userID = user.ID
			}

			next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), user)))
		})
	}
}

// UserFromContext はリクエストコンテキストから認証済みユーザーを取得する。
// Bearerミドルウェアを通過したリクエストでのみ有効。
func UserFromContext(ctx context.Context) (*model.User, error) {
	user, ok := ctx.Value(userContextKey).(*model.User)
	if !ok || user == nil {
		return nil, fmt.Errorf("user not found in context")
	}
	return user, nil
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
func UserIDFromContext(ctx context.Context) (string, error) {
	user, err := UserFromContext(ctx)
	if err != nil {
		return "", err
	}
	return user.ID, nil
}

// ContextWithUser はコンテキストに認証済みユーザーを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}
