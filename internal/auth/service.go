// Package auth は認証セッションのライフサイクルを提供する。
// 資格情報の検証、アクセス/リフレッシュトークンペアの発行、
// リフレッシュトークンのローテーション、ログアウトによる失効を担う。
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/meishi/internal/model"
	"github.com/hitoshi/meishi/internal/password"
	"github.com/hitoshi/meishi/internal/repository"
	"github.com/hitoshi/meishi/internal/token"
)

// TokenPair は短命のアクセストークンと長命のリフレッシュトークンの組。
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// TokenCodec は認証サービスが必要とするトークン発行・検証のインターフェース。
// token.Codecの部分集合として定義する。
type TokenCodec interface {
	IssueAccess(userID, email string) (string, error)
	IssueRefresh(userID string) (string, error)
	VerifyRefresh(tokenString string) (*token.RefreshClaims, error)
}

// MetricsRecorder は認証イベントのメトリクス記録インターフェース。
type MetricsRecorder interface {
	RecordRegistration()
	RecordLoginSuccess()
	RecordLoginFailure()
	RecordRefreshSuccess()
	RecordRefreshFailure()
}

// noopMetrics はメトリクス未設定時のダミー実装。
type noopMetrics struct{}

func (noopMetrics) RecordRegistration()   {}
func (noopMetrics) RecordLoginSuccess()   {}
func (noopMetrics) RecordLoginFailure()   {}
func (noopMetrics) RecordRefreshSuccess() {}
func (noopMetrics) RecordRefreshFailure() {}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo repository.UserRepository
	codec    TokenCodec
	metrics  MetricsRecorder
}

// NewService はServiceを生成する。metricsはnilでもよい。
func NewService(userRepo repository.UserRepository, codec TokenCodec, metrics MetricsRecorder) *Service {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Service{
		userRepo: userRepo,
		codec:    codec,
		metrics:  metrics,
	}
}

// Register は新規ユーザーを登録する。
// 登録とログインは別ステップであり、トークンは発行しない。
func (s *Service) Register(ctx context.Context, email, plainPassword string) (*model.PublicUser, error) {
	email = strings.TrimSpace(email)
	if email == "" || strings.TrimSpace(plainPassword) == "" {
		return nil, model.NewValidationError("メールアドレスとパスワードは必須です")
	}

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		slog.Error("failed to check email uniqueness", slog.String("error", err.Error()))
		return nil, model.NewInternalError()
	}
	if existing != nil {
		return nil, model.NewEmailTakenError()
	}

	digest, err := password.Hash(plainPassword)
	if err != nil {
		slog.Error("failed to hash password", slog.String("error", err.Error()))
		return nil, model.NewInternalError()
	}

	now := time.Now()
	user := &model.User{
		ID:             uuid.New().String(),
		Email:          email,
		PasswordDigest: digest,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		// 事前チェックとINSERTの間に同一メールが登録された場合もConflictに集約する
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, model.NewEmailTakenError()
		}
		slog.Error("failed to create user", slog.String("error", err.Error()))
		return nil, model.NewInternalError()
	}

	s.metrics.RecordRegistration()
	slog.Info("user registered",
		slog.String("user_id", user.ID),
		slog.String("email", email),
	)

	return user.Public(), nil
}

// Login は資格情報を検証し、成功時にトークンペアと公開用ユーザー射影を返す。
// 新しいリフレッシュトークンは単一スロットに永続化され、以前の値は上書きされる。
func (s *Service) Login(ctx context.Context, email, plainPassword string) (*model.PublicUser, *TokenPair, error) {
	email = strings.TrimSpace(email)
	if email == "" || strings.TrimSpace(plainPassword) == "" {
		return nil, nil, model.NewValidationError("メールアドレスとパスワードは必須です")
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		slog.Error("failed to find user by email", slog.String("error", err.Error()))
		return nil, nil, model.NewInternalError()
	}
	if user == nil {
		return nil, nil, model.NewUserNotFoundError()
	}

	if !password.Verify(plainPassword, user.PasswordDigest) {
		s.metrics.RecordLoginFailure()
		slog.Warn("login failed: password mismatch", slog.String("user_id", user.ID))
		return nil, nil, model.NewUnauthorizedError()
	}

	pair, err := s.issueTokenPair(ctx, user.ID)
	if err != nil {
		s.metrics.RecordLoginFailure()
		return nil, nil, err
	}

	s.metrics.RecordLoginSuccess()
	slog.Info("user logged in", slog.String("user_id", user.ID))

	return user.Public(), pair, nil
}

// Refresh はリフレッシュトークンを検証し、新しいトークンペアを発行する。
// 検証は2段階:
//  1. 署名・期限の検証（失敗はすべてUnauthorizedに集約）
//  2. 保存済みスロットとのバイト比較。不一致は、ローテーション済みまたは
//     ログアウト済みトークンの再利用とみなしExpiredを返す（上書きによる失効）。
//
// 一致した場合は新しいペアを発行・永続化する（ワンタイム利用のローテーション）。
func (s *Service) Refresh(ctx context.Context, incoming string) (*TokenPair, error) {
	if incoming == "" {
		s.metrics.RecordRefreshFailure()
		return nil, model.NewUnauthorizedError()
	}

	claims, err := s.codec.VerifyRefresh(incoming)
	if err != nil {
		s.metrics.RecordRefreshFailure()
		slog.Warn("refresh token verification failed", slog.String("error", err.Error()))
		return nil, model.NewUnauthorizedError()
	}

	user, err := s.userRepo.FindByID(ctx, claims.UserID)
	if err != nil {
		s.metrics.RecordRefreshFailure()
		slog.Error("failed to find user for refresh", slog.String("error", err.Error()))
		return nil, model.NewInternalError()
	}
	if user == nil {
		s.metrics.RecordRefreshFailure()
		return nil, model.NewUnauthorizedError()
	}

	if subtle.ConstantTimeCompare([]byte(incoming), []byte(user.RefreshToken)) != 1 {
		s.metrics.RecordRefreshFailure()
		slog.Warn("stale refresh token replayed", slog.String("user_id", user.ID))
		return nil, model.NewRefreshTokenExpiredError()
	}

	pair, err := s.issueTokenPair(ctx, user.ID)
	if err != nil {
		s.metrics.RecordRefreshFailure()
		return nil, err
	}

	s.metrics.RecordRefreshSuccess()
	slog.Info("token pair rotated", slog.String("user_id", user.ID))

	return pair, nil
}

// Logout は保存済みリフレッシュトークンのスロットを空にする。
// 以後、発行済みリフレッシュトークンは期限内であってもリフレッシュに使えない。
func (s *Service) Logout(ctx context.Context, userID string) error {
	if userID == "" {
		return model.NewUnauthorizedError()
	}

	if err := s.userRepo.ClearRefreshToken(ctx, userID); err != nil {
		slog.Error("failed to clear refresh token", slog.String("error", err.Error()))
		return model.NewInternalError()
	}

	slog.Info("user logged out", slog.String("user_id", userID))
	return nil
}

// issueTokenPair はトークンペアを発行し、リフレッシュトークンを永続化する。
// 永続化書き込みは1回のみ。ミント失敗は書き込み前に起きるため、
// 失敗時に中途半端な状態は残らない。
func (s *Service) issueTokenPair(ctx context.Context, userID string) (*TokenPair, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		slog.Error("failed to load user for token issue", slog.String("error", err.Error()))
		return nil, model.NewInternalError()
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	accessToken, err := s.codec.IssueAccess(user.ID, user.Email)
	if err != nil {
		slog.Error("failed to issue access token", slog.String("error", err.Error()))
		return nil, model.NewInternalError()
	}

	refreshToken, err := s.codec.IssueRefresh(user.ID)
	if err != nil {
		slog.Error("failed to issue refresh token", slog.String("error", err.Error()))
		return nil, model.NewInternalError()
	}

	if err := s.userRepo.UpdateRefreshToken(ctx, user.ID, refreshToken); err != nil {
		slog.Error("failed to persist refresh token", slog.String("error", err.Error()))
		return nil, model.NewInternalError()
	}

	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}
