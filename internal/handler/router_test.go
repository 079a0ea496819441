package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/meishi/internal/middleware"
	"github.com/hitoshi/meishi/internal/model"
	"github.com/hitoshi/meishi/internal/token"
)

type routerUserFinder struct{}

func (routerUserFinder) FindByID(_ context.Context, id string) (*model.User, error) {
	if id == "user-1" {
		return &model.User{ID: "user-1", Email: "a@x.com"}, nil
	}
	return nil, nil
}

func newTestRouter(t *testing.T, authService AuthServiceInterface, profileService ProfileServiceInterface) (http.Handler, *token.Codec) {
	t.Helper()

	codec := token.NewCodec(token.Config{
		AccessSecret:  []byte("access-secret-for-tests-32bytes!"),
		AccessTTL:     15 * time.Minute,
		RefreshSecret: []byte("refresh-secret-for-tests-32byte!"),
		RefreshTTL:    720 * time.Hour,
	})

	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(rl.Stop)

	router := NewRouter(&RouterDeps{
		TokenVerifier:     codec,
		UserFinder:        routerUserFinder{},
		CORSAllowedOrigin: "http://localhost:3000",
		RateLimiter:       rl,
		Logger:            slog.Default(),
		AuthService:       authService,
		AuthConfig: AuthHandlerConfig{
			AccessMaxAge:  900,
			RefreshMaxAge: 2592000,
		},
		ProfileService: profileService,
	})

	return router, codec
}

func TestRouter_HealthCheck_Returns200(t *testing.T) {
	router, _ := newTestRouter(t, &mockAuthService{}, &mockProfileService{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
}

func TestRouter_ProtectedRoute_WithoutToken_Returns401(t *testing.T) {
	router, _ := newTestRouter(t, &mockAuthService{}, &mockProfileService{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/users/me", nil))

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestRouter_ProtectedRoute_WithValidToken_Succeeds(t *testing.T) {
	profileService := &mockProfileService{
		getByIDFn: func(_ context.Context, userID string) (*model.PublicUser, error) {
			return &model.PublicUser{ID: userID}, nil
		},
	}
	router, codec := newTestRouter(t, &mockAuthService{}, profileService)

	accessToken, err := codec.IssueAccess("user-1", "a@x.com")
	if err != nil {
		t.Fatalf("IssueAccess() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
	req.AddCookie(&http.Cookie{Name: "accessToken", Value: accessToken})
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
}

func TestRouter_RegisterRoute_Wired(t *testing.T) {
	authService := &mockAuthService{
		registerFn: func(_ context.Context, email, _ string) (*model.PublicUser, error) {
			return &model.PublicUser{ID: "user-1", Email: email}, nil
		},
	}
	router, _ := newTestRouter(t, authService, &mockProfileService{})

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register",
		strings.NewReader(`{"email":"a@x.com","password":"secret1"}`))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusCreated {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusCreated)
	}
}

func TestRouter_PublicProfileRoute_NoAuthRequired(t *testing.T) {
	profileService := &mockProfileService{
		getByIDFn: func(_ context.Context, userID string) (*model.PublicUser, error) {
			return &model.PublicUser{ID: userID}, nil
		},
	}
	router, _ := newTestRouter(t, &mockAuthService{}, profileService)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/users?uId=user-42", nil))

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
}

func TestRouter_CORSPreflight_Returns204(t *testing.T) {
	router, _ := newTestRouter(t, &mockAuthService{}, &mockProfileService{})

	req := httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Allow-Origin = %q", got)
	}
}
