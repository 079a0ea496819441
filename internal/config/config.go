package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Token
	AccessTokenSecret  string
	RefreshTokenSecret string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration

	// Media (S3互換ストレージ)
	MediaS3Endpoint  string
	MediaS3Region    string
	MediaS3Bucket    string
	MediaS3AccessKey string
	MediaS3SecretKey string

	// Rate Limit
	RateLimitGeneral int
	RateLimitUpload  int

	// Server
	ServerPort string
	AppEnv     string

	// Cookie
	CookieSecure    bool
	CookieCrossSite bool

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	// アクセス用とリフレッシュ用は独立した秘密鍵を要求する
	cfg.AccessTokenSecret = os.Getenv("ACCESS_TOKEN_SECRET")
	if cfg.AccessTokenSecret == "" {
		missing = append(missing, "ACCESS_TOKEN_SECRET")
	}

	cfg.RefreshTokenSecret = os.Getenv("REFRESH_TOKEN_SECRET")
	if cfg.RefreshTokenSecret == "" {
		missing = append(missing, "REFRESH_TOKEN_SECRET")
	}

	cfg.MediaS3Endpoint = os.Getenv("MEDIA_S3_ENDPOINT")
	if cfg.MediaS3Endpoint == "" {
		missing = append(missing, "MEDIA_S3_ENDPOINT")
	}

	cfg.MediaS3Bucket = os.Getenv("MEDIA_S3_BUCKET")
	if cfg.MediaS3Bucket == "" {
		missing = append(missing, "MEDIA_S3_BUCKET")
	}

	cfg.MediaS3AccessKey = os.Getenv("MEDIA_S3_ACCESS_KEY")
	if cfg.MediaS3AccessKey == "" {
		missing = append(missing, "MEDIA_S3_ACCESS_KEY")
	}

	cfg.MediaS3SecretKey = os.Getenv("MEDIA_S3_SECRET_KEY")
	if cfg.MediaS3SecretKey == "" {
		missing = append(missing, "MEDIA_S3_SECRET_KEY")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.AccessTokenTTL = getEnvDuration("ACCESS_TOKEN_TTL", 15*time.Minute)
	cfg.RefreshTokenTTL = getEnvDuration("REFRESH_TOKEN_TTL", 720*time.Hour)
	cfg.MediaS3Region = getEnvString("MEDIA_S3_REGION", "us-east-1")
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitUpload = getEnvInt("RATE_LIMIT_UPLOAD", 10)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.AppEnv = getEnvString("APP_ENV", "development")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	// 本番はHTTPS前提のクロスサイト構成。SameSite=NoneとSecureを併用する
	cfg.CookieSecure = cfg.AppEnv == "production"
	cfg.CookieCrossSite = cfg.AppEnv == "production"

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
