package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/meishi/internal/middleware"
	"github.com/hitoshi/meishi/internal/model"
	"github.com/hitoshi/meishi/internal/profile"
)

// multipartの画像を含む更新リクエストの上限。
const maxUpdateRequestBytes = 10 << 20 // 10MB

// ProfileServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type ProfileServiceInterface interface {
	GetByID(ctx context.Context, userID string) (*model.PublicUser, error)
	Update(ctx context.Context, userID string, input *profile.UpdateInput) (*model.PublicUser, error)
}

// UserHandler はユーザープロフィールのHTTPハンドラー。
type UserHandler struct {
	service ProfileServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service ProfileServiceInterface) *UserHandler {
	return &UserHandler{
		service: service,
	}
}

// GetUser はユーザーIDを指定してプロフィールを取得する。
// GET /api/users?uId=xxx（認証不要。公開プロフィール）
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("uId")
	if userID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("クエリパラメータuIdは必須です"))
		return
	}

	user, err := h.service.GetByID(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, user)
}

// GetMe は自分のプロフィールを取得する。
// GET /api/users/me（要認証）
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	authed, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	user, err := h.service.GetByID(r.Context(), authed.ID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, user)
}

// UpdateMe は自分のプロフィールを部分更新する。
// PATCH /api/users/me（要認証、multipart/form-data）
//
// フォームフィールド:
//   - firstName, lastName, email: テキスト項目。存在するフィールドのみ更新する
//   - links: JSON文字列 {"platform": "...", "link": "..."}。繰り返し指定可。
//     1つ以上指定するとリンク集を丸ごと置き換える
//   - profileImg: プロフィール画像ファイル
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	authed, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUpdateRequestBytes)
	if err := r.ParseMultipartForm(maxUpdateRequestBytes); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("multipart/form-dataの解析に失敗しました"))
		return
	}

	input, err := buildUpdateInput(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	user, err := h.service.Update(r.Context(), authed.ID, input)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, user)
}

// buildUpdateInput はmultipartフォームから更新入力を組み立てる。
// フォームに存在しないフィールドはnilのまま（変更なし）とする。
func buildUpdateInput(r *http.Request) (*profile.UpdateInput, error) {
	input := &profile.UpdateInput{}

	form := r.MultipartForm

	if values, ok := form.Value["firstName"]; ok && len(values) > 0 {
		input.FirstName = &values[0]
	}
	if values, ok := form.Value["lastName"]; ok && len(values) > 0 {
		input.LastName = &values[0]
	}
	if values, ok := form.Value["email"]; ok && len(values) > 0 {
		input.Email = &values[0]
	}

	if values, ok := form.Value["links"]; ok {
		links := make([]model.Link, 0, len(values))
		for _, raw := range values {
			var link model.Link
			if err := json.Unmarshal([]byte(raw), &link); err != nil {
				return nil, model.NewValidationError("linksのJSON形式が不正です")
			}
			links = append(links, link)
		}
		input.Links = links
	}

	file, header, err := r.FormFile("profileImg")
	if err == nil {
		input.Image = &profile.ImageUpload{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Body:        file,
		}
	} else if err != http.ErrMissingFile {
		return nil, model.NewValidationError("profileImgの読み取りに失敗しました")
	}

	return input, nil
}
