// Package media はプロフィール画像などのメディア資産の保管を提供する。
// 実装はS3互換ストレージ（MinIO含む）を前提とする。
package media

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// Store はメディア資産の保管先インターフェース。
// Uploadは公開URLと、後で削除に使う資産IDを返す。
type Store interface {
	Upload(ctx context.Context, filename string, body io.Reader, contentType string) (url, assetID string, err error)
	Delete(ctx context.Context, assetID string) error
}

// Config はS3Storeの接続設定。
type Config struct {
	Endpoint  string // S3互換エンドポイント（例: http://127.0.0.1:9000）
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
}

// S3Store はStoreのS3実装。
type S3Store struct {
	client *s3.Client
	bucket string

	// 公開URLの組み立てに使う。パススタイル前提。
	endpoint string
}

var _ Store = (*S3Store)(nil)

// NewS3Store はS3互換ストレージへのクライアントを生成する。
func NewS3Store(ctx context.Context, cfg Config) (*S3Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = true
	})

	return &S3Store{
		client:   client,
		bucket:   cfg.Bucket,
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
	}, nil
}

// Upload はメディア資産をアップロードし、公開URLと資産IDを返す。
// 資産IDはそのままオブジェクトキーであり、Deleteに渡せる。
func (s *S3Store) Upload(ctx context.Context, filename string, body io.Reader, contentType string) (string, string, error) {
	key := storageKey(filename, time.Now())

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to upload object: %w", err)
	}

	return s.publicURL(key), key, nil
}

// Delete は資産IDで指定されたオブジェクトを削除する。
func (s *S3Store) Delete(ctx context.Context, assetID string) error {
	if assetID == "" {
		return nil
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(assetID),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}

	return nil
}

func (s *S3Store) publicURL(key string) string {
	return fmt.Sprintf("%s/%s/%s", s.endpoint, s.bucket, key)
}

// storageKey は衝突しないオブジェクトキーを生成する。
// 日付プレフィックスで整理し、UUIDで一意性を確保する。
// 元ファイル名はサニタイズの上でキー末尾に残し、運用時の識別に使う。
func storageKey(filename string, now time.Time) string {
	base := sanitizeFilename(path.Base(filename))
	return fmt.Sprintf("profile-images/%s/%s-%s", now.Format("2006/01"), uuid.NewString(), base)
}

// sanitizeFilename はオブジェクトキーに安全な文字だけを残す。
func sanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "file"
	}
	return b.String()
}
