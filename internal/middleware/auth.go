// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/meishi/internal/model"
	"github.com/hitoshi/meishi/internal/token"
)

const accessTokenCookieName = "accessToken"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// userContextKey はリクエストコンテキストに認証済みユーザーを格納するためのキー。
var userContextKey = contextKey("authenticated_user")

// AccessTokenVerifier はアクセストークンの検証に必要なインターフェース。
// token.Codecの部分集合として定義する。
type AccessTokenVerifier interface {
	VerifyAccess(tokenString string) (*token.AccessClaims, error)
}

// UserFinder はユーザーの検索に必要なインターフェース。
// repository.UserRepositoryの部分集合として定義する。
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// NewAuthMiddleware はアクセストークンを検証するミドルウェアを返す。
// トークンはHTTP Only CookieまたはAuthorization: Bearerヘッダーから読み取る
// （Cookieを優先）。検証後にユーザーの現存確認を行い、認証済みユーザーを
// リクエストコンテキストに注入する。
// トークン未提示・不正・期限切れ・ユーザー不在はすべて401 Unauthorizedに集約する。
func NewAuthMiddleware(verifier AccessTokenVerifier, userFinder UserFinder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. CookieまたはAuthorizationヘッダーからトークンを取得
			tokenString := extractAccessToken(r)
			if tokenString == "" {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			// 2. 署名と期限を検証
			claims, err := verifier.VerifyAccess(tokenString)
			if err != nil {
				slog.Warn("access token verification failed",
					slog.String("error", err.Error()),
				)
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			// 3. ユーザーの現存確認。削除済みユーザーのトークンは通さない
			user, err := userFinder.FindByID(r.Context(), claims.UserID)
			if err != nil {
				slog.Error("failed to find user for access token",
					slog.String("error", err.Error()),
				)
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}
			if user == nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			// 4. 認証済みユーザーをコンテキストに注入
			ctx := context.WithValue(r.Context(), userContextKey, user.Public())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractAccessToken はリクエストからアクセストークンを取り出す。
// Cookieを優先し、なければAuthorization: Bearerヘッダーを使う。
func extractAccessToken(r *http.Request) string {
	if cookie, err := r.Cookie(accessTokenCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	authz := r.Header.Get("Authorization")
	if rest, ok := strings.CutPrefix(authz, "Bearer "); ok {
		return strings.TrimSpace(rest)
	}

	return ""
}

// UserFromContext はリクエストコンテキストから認証済みユーザーを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func UserFromContext(ctx context.Context) (*model.PublicUser, error) {
	user, ok := ctx.Value(userContextKey).(*model.PublicUser)
	if !ok || user == nil {
		return nil, fmt.Errorf("authenticated user not found in context")
	}
	return user, nil
}

// ContextWithUser はコンテキストに認証済みユーザーを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUser(ctx context.Context, user *model.PublicUser) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}
