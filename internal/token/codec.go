// Package token はアクセストークンとリフレッシュトークンの発行・検証を提供する。
//
// 2種類のトークンは独立したシークレットで署名される。片方のシークレットが
// 漏洩してももう片方には影響せず、リフレッシュトークンをアクセストークン
// として再生することもできない。
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrMissingSecret は署名シークレットが未設定の場合に返される。
// 設定不備はconfig.Loadで起動時に検出されるため、通常ここには到達しない。
var ErrMissingSecret = errors.New("token: signing secret is not configured")

// ErrInvalidToken は署名不一致・構造不正・期限切れのトークンに対して返される。
var ErrInvalidToken = errors.New("token: invalid token")

// AccessClaims はアクセストークンのクレーム。
type AccessClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"uid"`
	Email  string `json:"email"`
}

// RefreshClaims はリフレッシュトークンのクレーム。
// メールアドレスは含めない。ユーザーIDのみで再発行に十分なため。
type RefreshClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"uid"`
}

// Config はトークン種別ごとの署名シークレットと有効期間を保持する。
type Config struct {
	AccessSecret  []byte
	AccessTTL     time.Duration
	RefreshSecret []byte
	RefreshTTL    time.Duration
}

// Codec はHS256署名による自己完結型トークンの発行・検証を行う。
type Codec struct {
	config Config
}

// NewCodec はCodecを生成する。
func NewCodec(config Config) *Codec {
	return &Codec{config: config}
}

// IssueAccess はアクセストークンを発行する。
// クレームにはユーザーID、メールアドレス、発行時刻、有効期限を含む。
func (c *Codec) IssueAccess(userID, email string) (string, error) {
	if len(c.config.AccessSecret) == 0 {
		return "", ErrMissingSecret
	}

	now := time.Now()
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.config.AccessTTL)),
		},
		UserID: userID,
		Email:  email,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.config.AccessSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, nil
}

// IssueRefresh はリフレッシュトークンを発行する。
// jtiにランダムIDを含めるため、同一ユーザー・同一時刻でも毎回異なる文字列になる。
// ローテーション（旧トークンと新トークンのバイト比較）はこの性質に依存する。
func (c *Codec) IssueRefresh(userID string) (string, error) {
	if len(c.config.RefreshSecret) == 0 {
		return "", ErrMissingSecret
	}

	now := time.Now()
	claims := RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.config.RefreshTTL)),
		},
		UserID: userID,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.config.RefreshSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign refresh token: %w", err)
	}
	return signed, nil
}

// VerifyAccess はアクセストークンを検証し、クレームを返す。
// 署名不一致・構造不正・期限切れはいずれもErrInvalidTokenにラップされる。
func (c *Codec) VerifyAccess(tokenString string) (*AccessClaims, error) {
	if len(c.config.AccessSecret) == 0 {
		return nil, ErrMissingSecret
	}

	claims := &AccessClaims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return c.config.AccessSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// VerifyRefresh はリフレッシュトークンを検証し、クレームを返す。
// 署名・期限の検証のみを行う。保存済みスロットとの一致確認は呼び出し側の責務。
func (c *Codec) VerifyRefresh(tokenString string) (*RefreshClaims, error) {
	if len(c.config.RefreshSecret) == 0 {
		return nil, ErrMissingSecret
	}

	claims := &RefreshClaims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return c.config.RefreshSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
