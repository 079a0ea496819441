// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/meishi/internal/auth"
	"github.com/hitoshi/meishi/internal/middleware"
	"github.com/hitoshi/meishi/internal/model"
)

const (
	accessTokenCookieName  = "accessToken"
	refreshTokenCookieName = "refreshToken"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Register(ctx context.Context, email, password string) (*model.PublicUser, error)
	Login(ctx context.Context, email, password string) (*model.PublicUser, *auth.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error)
	Logout(ctx context.Context, userID string) error
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieSecure  bool // SecureフラグをCookieに付与するか
	CrossSite     bool // クロスサイト構成（SameSite=None）。Secureとの併用が必須
	AccessMaxAge  int  // アクセストークンCookieの有効期間（秒）
	RefreshMaxAge int  // リフレッシュトークンCookieの有効期間（秒）
}

// AuthHandler は認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
	}
}

// credentialsRequest はメールアドレスとパスワードのリクエストボディ。
type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginResponse はログイン成功時のレスポンスボディ。
// Cookieを使えないクライアント向けにトークンも本文で返す。
type loginResponse struct {
	User         *model.PublicUser `json:"user"`
	AccessToken  string            `json:"accessToken"`
	RefreshToken string            `json:"refreshToken"`
}

// Register は新規ユーザーを登録する。
// POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("リクエストボディの形式が不正です"))
		return
	}

	user, err := h.service.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, user)
}

// Login は資格情報を検証し、トークンペアを発行する。
// POST /api/auth/login
// トークンはHTTP Only Cookieとレスポンスボディの両方で返す。
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("リクエストボディの形式が不正です"))
		return
	}

	user, pair, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.setAuthCookies(w, pair)
	writeJSONResponse(w, http.StatusOK, loginResponse{
		User:         user,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

// refreshRequest はリフレッシュリクエストのボディ。Cookie非対応クライアント用。
type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Refresh はリフレッシュトークンを検証し、新しいトークンペアを発行する。
// POST /api/auth/refresh
// トークンはCookieを優先し、なければリクエストボディから読み取る。
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	incoming := ""
	if cookie, err := r.Cookie(refreshTokenCookieName); err == nil && cookie.Value != "" {
		incoming = cookie.Value
	} else {
		var req refreshRequest
		// ボディなしのリクエストも許容する（その場合は空トークンとして扱う）
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			incoming = req.RefreshToken
		}
	}

	pair, err := h.service.Refresh(r.Context(), incoming)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.setAuthCookies(w, pair)
	writeJSONResponse(w, http.StatusOK, pair)
}

// Logout は保存済みリフレッシュトークンを失効させ、Cookieをクリアする。
// POST /api/auth/logout（要認証）
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	if err := h.service.Logout(r.Context(), user.ID); err != nil {
		handleServiceError(w, err)
		return
	}

	h.clearAuthCookies(w)
	w.WriteHeader(http.StatusNoContent)
}

// Me は現在のログインユーザー情報を返す。
// GET /api/auth/me（要認証）
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	writeJSONResponse(w, http.StatusOK, user)
}

// setAuthCookies はトークンペアをHTTP Only Cookieとして設定する。
func (h *AuthHandler) setAuthCookies(w http.ResponseWriter, pair *auth.TokenPair) {
	http.SetCookie(w, h.authCookie(accessTokenCookieName, pair.AccessToken, h.config.AccessMaxAge))
	http.SetCookie(w, h.authCookie(refreshTokenCookieName, pair.RefreshToken, h.config.RefreshMaxAge))
}

// clearAuthCookies は認証Cookieをクリアする。
func (h *AuthHandler) clearAuthCookies(w http.ResponseWriter) {
	http.SetCookie(w, h.authCookie(accessTokenCookieName, "", -1))
	http.SetCookie(w, h.authCookie(refreshTokenCookieName, "", -1))
}

// authCookie は認証Cookieの共通属性を設定したCookieを生成する。
// クロスサイト構成ではSameSite=NoneとSecureを併用する（ブラウザ要件）。
func (h *AuthHandler) authCookie(name, value string, maxAge int) *http.Cookie {
	sameSite := http.SameSiteLaxMode
	secure := h.config.CookieSecure
	if h.config.CrossSite {
		sameSite = http.SameSiteNoneMode
		secure = true
	}

	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: sameSite,
	}
}
