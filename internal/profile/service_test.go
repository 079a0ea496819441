package profile

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/hitoshi/meishi/internal/media"
	"github.com/hitoshi/meishi/internal/model"
	"github.com/hitoshi/meishi/internal/repository"
	"github.com/hitoshi/meishi/internal/security"
)

// --- モック定義 ---

type mockUserRepo struct {
	findByIDFunc      func(ctx context.Context, id string) (*model.User, error)
	updateProfileFunc func(ctx context.Context, id string, update *repository.ProfileUpdate) (*model.User, error)
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	return m.findByIDFunc(ctx, id)
}

func (m *mockUserRepo) FindByEmail(context.Context, string) (*model.User, error) {
	return nil, nil
}

func (m *mockUserRepo) Create(context.Context, *model.User) error { return nil }

func (m *mockUserRepo) UpdateRefreshToken(context.Context, string, string) error { return nil }

func (m *mockUserRepo) ClearRefreshToken(context.Context, string) error { return nil }

func (m *mockUserRepo) UpdateProfile(ctx context.Context, id string, update *repository.ProfileUpdate) (*model.User, error) {
	return m.updateProfileFunc(ctx, id, update)
}

var _ repository.UserRepository = (*mockUserRepo)(nil)

type mockMediaStore struct {
	uploadFunc func(ctx context.Context, filename string, body io.Reader, contentType string) (string, string, error)
	deleteFunc func(ctx context.Context, assetID string) error

	deletedIDs []string
}

func (m *mockMediaStore) Upload(ctx context.Context, filename string, body io.Reader, contentType string) (string, string, error) {
	if m.uploadFunc != nil {
		return m.uploadFunc(ctx, filename, body, contentType)
	}
	return "https://media.example.com/" + filename, "asset-" + filename, nil
}

func (m *mockMediaStore) Delete(ctx context.Context, assetID string) error {
	m.deletedIDs = append(m.deletedIDs, assetID)
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, assetID)
	}
	return nil
}

var _ media.Store = (*mockMediaStore)(nil)

func strPtr(s string) *string { return &s }

func existingUser() *model.User {
	return &model.User{
		ID:             "user-1",
		Email:          "a@x.com",
		FirstName:      "太郎",
		LastName:       "山田",
		ProfileImageID: "old-asset",
	}
}

func passthroughRepo(captured **repository.ProfileUpdate) *mockUserRepo {
	return &mockUserRepo{
		findByIDFunc: func(_ context.Context, _ string) (*model.User, error) {
			return existingUser(), nil
		},
		updateProfileFunc: func(_ context.Context, _ string, update *repository.ProfileUpdate) (*model.User, error) {
			if captured != nil {
				*captured = update
			}
			user := existingUser()
			if update.FirstName != nil {
				user.FirstName = *update.FirstName
			}
			if update.Email != nil {
				user.Email = *update.Email
			}
			if update.Links != nil {
				user.Links = update.Links
			}
			if update.ProfileImageURL != nil {
				user.ProfileImageURL = *update.ProfileImageURL
			}
			return user, nil
		},
	}
}

func apiErrorCode(t *testing.T, err error) string {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError, got %T (%v)", err, err)
	}
	return apiErr.Code
}

// --- GetByID テスト ---

func TestGetByID_ReturnsPublicProjection(t *testing.T) {
	repo := &mockUserRepo{
		findByIDFunc: func(_ context.Context, id string) (*model.User, error) {
			if id != "user-1" {
				t.Errorf("id = %q, want %q", id, "user-1")
			}
			user := existingUser()
			user.PasswordDigest = "digest"
			user.RefreshToken = "refresh"
			return user, nil
		},
	}
	svc := NewService(repo, &mockMediaStore{}, security.NewProfileSanitizer())

	got, err := svc.GetByID(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Email != "a@x.com" {
		t.Errorf("Email = %q, want %q", got.Email, "a@x.com")
	}
}

func TestGetByID_UnknownUser_ReturnsNotFound(t *testing.T) {
	repo := &mockUserRepo{
		findByIDFunc: func(context.Context, string) (*model.User, error) { return nil, nil },
	}
	svc := NewService(repo, &mockMediaStore{}, security.NewProfileSanitizer())

	_, err := svc.GetByID(context.Background(), "missing")
	if code := apiErrorCode(t, err); code != model.ErrCodeUserNotFound {
		t.Errorf("code = %q, want %q", code, model.ErrCodeUserNotFound)
	}
}

// --- Update テスト ---

func TestUpdate_SanitizesTextFields(t *testing.T) {
	var captured *repository.ProfileUpdate
	svc := NewService(passthroughRepo(&captured), &mockMediaStore{}, security.NewProfileSanitizer())

	_, err := svc.Update(context.Background(), "user-1", &UpdateInput{
		FirstName: strPtr(`<script>alert(1)</script>次郎`),
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if captured.FirstName == nil || *captured.FirstName != "次郎" {
		t.Errorf("FirstName = %v, want %q", captured.FirstName, "次郎")
	}
}

func TestUpdate_NilFieldsLeaveProfileUntouched(t *testing.T) {
	var captured *repository.ProfileUpdate
	svc := NewService(passthroughRepo(&captured), &mockMediaStore{}, security.NewProfileSanitizer())

	_, err := svc.Update(context.Background(), "user-1", &UpdateInput{})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if captured.FirstName != nil || captured.LastName != nil || captured.Email != nil || captured.Links != nil {
		t.Errorf("expected no-change update, got %+v", captured)
	}
}

func TestUpdate_RejectsInvalidLinkURL(t *testing.T) {
	svc := NewService(passthroughRepo(nil), &mockMediaStore{}, security.NewProfileSanitizer())

	cases := []struct {
		name string
		url  string
	}{
		{"javascript scheme", "javascript:alert(1)"},
		{"missing scheme", "example.com/me"},
		{"ftp scheme", "ftp://example.com/me"},
		{"empty", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Update(context.Background(), "user-1", &UpdateInput{
				Links: []model.Link{{Platform: "github", URL: tc.url}},
			})
			if code := apiErrorCode(t, err); code != model.ErrCodeValidation {
				t.Errorf("code = %q, want %q", code, model.ErrCodeValidation)
			}
		})
	}
}

func TestUpdate_AcceptsHTTPSLinks(t *testing.T) {
	var captured *repository.ProfileUpdate
	svc := NewService(passthroughRepo(&captured), &mockMediaStore{}, security.NewProfileSanitizer())

	_, err := svc.Update(context.Background(), "user-1", &UpdateInput{
		Links: []model.Link{
			{Platform: "github", URL: "https://github.com/taro"},
			{Platform: "blog", URL: "http://blog.example.com"},
		},
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if len(captured.Links) != 2 {
		t.Fatalf("links = %d, want 2", len(captured.Links))
	}
}

func TestUpdate_EmptyLinksClearAll(t *testing.T) {
	var captured *repository.ProfileUpdate
	svc := NewService(passthroughRepo(&captured), &mockMediaStore{}, security.NewProfileSanitizer())

	_, err := svc.Update(context.Background(), "user-1", &UpdateInput{
		Links: []model.Link{},
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if captured.Links == nil || len(captured.Links) != 0 {
		t.Errorf("Links = %v, want empty non-nil slice", captured.Links)
	}
}

func TestUpdate_UploadsImageAndDeletesPrevious(t *testing.T) {
	var captured *repository.ProfileUpdate
	store := &mockMediaStore{}
	svc := NewService(passthroughRepo(&captured), store, security.NewProfileSanitizer())

	got, err := svc.Update(context.Background(), "user-1", &UpdateInput{
		Image: &ImageUpload{
			Filename:    "avatar.png",
			ContentType: "image/png",
			Body:        strings.NewReader("fake-image-bytes"),
		},
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	if captured.ProfileImageURL == nil || *captured.ProfileImageURL != "https://media.example.com/avatar.png" {
		t.Errorf("ProfileImageURL = %v, want upload result", captured.ProfileImageURL)
	}
	if got.ProfileImageURL != "https://media.example.com/avatar.png" {
		t.Errorf("returned ProfileImageURL = %q", got.ProfileImageURL)
	}
	if len(store.deletedIDs) != 1 || store.deletedIDs[0] != "old-asset" {
		t.Errorf("deleted = %v, want [old-asset]", store.deletedIDs)
	}
}

func TestUpdate_OldImageDeleteFailure_IsNotFatal(t *testing.T) {
	store := &mockMediaStore{
		deleteFunc: func(context.Context, string) error {
			return errors.New("storage unavailable")
		},
	}
	svc := NewService(passthroughRepo(nil), store, security.NewProfileSanitizer())

	_, err := svc.Update(context.Background(), "user-1", &UpdateInput{
		Image: &ImageUpload{
			Filename:    "avatar.png",
			ContentType: "image/png",
			Body:        strings.NewReader("fake-image-bytes"),
		},
	})
	if err != nil {
		t.Fatalf("Update() error = %v, want nil (delete failure is best effort)", err)
	}
}

func TestUpdate_UploadFailure_SkipsPersistence(t *testing.T) {
	updateCalled := false
	repo := &mockUserRepo{
		findByIDFunc: func(context.Context, string) (*model.User, error) { return existingUser(), nil },
		updateProfileFunc: func(context.Context, string, *repository.ProfileUpdate) (*model.User, error) {
			updateCalled = true
			return existingUser(), nil
		},
	}
	store := &mockMediaStore{
		uploadFunc: func(context.Context, string, io.Reader, string) (string, string, error) {
			return "", "", errors.New("upload failed")
		},
	}
	svc := NewService(repo, store, security.NewProfileSanitizer())

	_, err := svc.Update(context.Background(), "user-1", &UpdateInput{
		Image: &ImageUpload{Filename: "avatar.png", ContentType: "image/png", Body: strings.NewReader("x")},
	})
	if code := apiErrorCode(t, err); code != model.ErrCodeInternal {
		t.Errorf("code = %q, want %q", code, model.ErrCodeInternal)
	}
	if updateCalled {
		t.Error("UpdateProfile must not be called when the upload fails")
	}
}

func TestUpdate_DuplicateEmail_ReturnsConflict(t *testing.T) {
	repo := &mockUserRepo{
		findByIDFunc: func(context.Context, string) (*model.User, error) { return existingUser(), nil },
		updateProfileFunc: func(context.Context, string, *repository.ProfileUpdate) (*model.User, error) {
			return nil, repository.ErrEmailTaken
		},
	}
	svc := NewService(repo, &mockMediaStore{}, security.NewProfileSanitizer())

	_, err := svc.Update(context.Background(), "user-1", &UpdateInput{Email: strPtr("b@x.com")})
	if code := apiErrorCode(t, err); code != model.ErrCodeEmailTaken {
		t.Errorf("code = %q, want %q", code, model.ErrCodeEmailTaken)
	}
}

func TestUpdate_UnknownUser_ReturnsNotFound(t *testing.T) {
	repo := &mockUserRepo{
		findByIDFunc: func(context.Context, string) (*model.User, error) { return nil, nil },
	}
	svc := NewService(repo, &mockMediaStore{}, security.NewProfileSanitizer())

	_, err := svc.Update(context.Background(), "missing", &UpdateInput{})
	if code := apiErrorCode(t, err); code != model.ErrCodeUserNotFound {
		t.Errorf("code = %q, want %q", code, model.ErrCodeUserNotFound)
	}
}
