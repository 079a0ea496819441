// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/meishi/internal/model"
)

// ErrEmailTaken はユニーク制約（メールアドレス）違反を表す。
var ErrEmailTaken = errors.New("repository: email already exists")

// ProfileUpdate はプロフィール部分更新のフィールド集合。
// nilのフィールドは変更せず、既存の値を維持する。
// LinksはnilならNO変更、空スライスなら全削除。
type ProfileUpdate struct {
	FirstName       *string
	LastName        *string
	Email           *string
	Links           []model.Link
	ProfileImageURL *string
	ProfileImageID  *string
}

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。メールアドレス重複時はErrEmailTakenを返す。
	Create(ctx context.Context, user *model.User) error

	// UpdateRefreshToken はリフレッシュトークンのスロットを丸ごと上書きする。
	// 他のフィールドは一切変更しない（全件バリデーションをスキップする部分更新）。
	UpdateRefreshToken(ctx context.Context, id, refreshToken string) error

	// ClearRefreshToken はリフレッシュトークンのスロットを空にする。
	// 以後そのトークンによるリフレッシュは失敗する。
	ClearRefreshToken(ctx context.Context, id string) error

	// UpdateProfile はプロフィールフィールドを部分更新し、更新後のユーザーを返す。
	// 対象ユーザーが存在しない場合はnilを返す。
	// メールアドレス変更が重複する場合はErrEmailTakenを返す。
	UpdateProfile(ctx context.Context, id string, update *ProfileUpdate) (*model.User, error)
}
