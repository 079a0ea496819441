// Package profile はユーザープロフィールの参照・更新を提供する。
// 表示名やリンク集の更新に加え、プロフィール画像のメディアストレージへの
// アップロードと旧画像の後始末を担う。
package profile

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"

	"github.com/hitoshi/meishi/internal/media"
	"github.com/hitoshi/meishi/internal/model"
	"github.com/hitoshi/meishi/internal/repository"
	"github.com/hitoshi/meishi/internal/security"
)

// ImageUpload はプロフィール画像のアップロード入力。
type ImageUpload struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

// UpdateInput はプロフィール更新の入力。nilのフィールドは変更なしを表す。
type UpdateInput struct {
	FirstName *string
	LastName  *string
	Email     *string
	Links     []model.Link // nilは変更なし。空スライスは全削除。
	Image     *ImageUpload
}

// Service はプロフィールに関するビジネスロジックを提供する。
type Service struct {
	userRepo  repository.UserRepository
	store     media.Store
	sanitizer security.ProfileSanitizerService
}

// NewService はServiceを生成する。
func NewService(userRepo repository.UserRepository, store media.Store, sanitizer security.ProfileSanitizerService) *Service {
	return &Service{
		userRepo:  userRepo,
		store:     store,
		sanitizer: sanitizer,
	}
}

// GetByID はユーザーIDでプロフィールを取得する。
func (s *Service) GetByID(ctx context.Context, userID string) (*model.PublicUser, error) {
	if userID == "" {
		return nil, model.NewValidationError("ユーザーIDは必須です")
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		slog.Error("failed to find user", slog.String("error", err.Error()))
		return nil, model.NewInternalError()
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	return user.Public(), nil
}

// Update はプロフィールを部分更新し、更新後のプロフィールを返す。
// 処理の流れ:
//  1. 対象ユーザーの存在確認
//  2. テキスト項目とリンクのサニタイズ・検証
//  3. 画像があればメディアストレージにアップロード
//  4. 1回のUPDATEで永続化
//  5. 旧画像の削除（失敗しても更新自体は成功扱い）
func (s *Service) Update(ctx context.Context, userID string, input *UpdateInput) (*model.PublicUser, error) {
	if userID == "" {
		return nil, model.NewUnauthorizedError()
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		slog.Error("failed to find user", slog.String("error", err.Error()))
		return nil, model.NewInternalError()
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	update, err := s.buildUpdate(input)
	if err != nil {
		return nil, err
	}

	// アップロードはDB書き込みより先に行う。失敗時はDBに触れない。
	if input.Image != nil {
		imageURL, assetID, err := s.store.Upload(ctx, input.Image.Filename, input.Image.Body, input.Image.ContentType)
		if err != nil {
			slog.Error("failed to upload profile image", slog.String("error", err.Error()))
			return nil, model.NewInternalError()
		}
		update.ProfileImageURL = &imageURL
		update.ProfileImageID = &assetID
	}

	updated, err := s.userRepo.UpdateProfile(ctx, userID, update)
	if err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, model.NewEmailTakenError()
		}
		slog.Error("failed to update profile", slog.String("error", err.Error()))
		return nil, model.NewInternalError()
	}
	if updated == nil {
		return nil, model.NewUserNotFoundError()
	}

	// 旧画像の削除はベストエフォート。孤児オブジェクトは許容する。
	if input.Image != nil && user.ProfileImageID != "" {
		if err := s.store.Delete(ctx, user.ProfileImageID); err != nil {
			slog.Warn("failed to delete previous profile image",
				slog.String("user_id", userID),
				slog.String("asset_id", user.ProfileImageID),
				slog.String("error", err.Error()),
			)
		}
	}

	slog.Info("profile updated", slog.String("user_id", userID))
	return updated.Public(), nil
}

// buildUpdate は入力をサニタイズ・検証してリポジトリ向けの更新内容に変換する。
func (s *Service) buildUpdate(input *UpdateInput) (*repository.ProfileUpdate, error) {
	update := &repository.ProfileUpdate{}

	if input.FirstName != nil {
		clean := s.sanitizer.Sanitize(*input.FirstName)
		update.FirstName = &clean
	}
	if input.LastName != nil {
		clean := s.sanitizer.Sanitize(*input.LastName)
		update.LastName = &clean
	}
	if input.Email != nil {
		clean := s.sanitizer.Sanitize(*input.Email)
		if clean == "" {
			return nil, model.NewValidationError("メールアドレスは空にできません")
		}
		update.Email = &clean
	}

	if input.Links != nil {
		links := make([]model.Link, 0, len(input.Links))
		for _, link := range input.Links {
			platform := s.sanitizer.Sanitize(link.Platform)
			if platform == "" {
				return nil, model.NewValidationError("リンクのプラットフォーム名は必須です")
			}
			if err := validateLinkURL(link.URL); err != nil {
				return nil, err
			}
			links = append(links, model.Link{Platform: platform, URL: link.URL})
		}
		update.Links = links
	}

	return update, nil
}

// validateLinkURL はリンクURLがhttpまたはhttpsの絶対URLであることを検証する。
// javascript:などの危険なスキームを保存させない。
func validateLinkURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return model.NewValidationError("リンクURLの形式が不正です")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return model.NewValidationError("リンクURLはhttpまたはhttpsで始まる必要があります")
	}
	if parsed.Host == "" {
		return model.NewValidationError("リンクURLにホスト名が含まれていません")
	}
	return nil
}
