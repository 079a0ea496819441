// Package model はドメインモデルを定義する。
package model

import "time"

// Link はプロフィールに表示する外部リンク（SNS等）を表す。
type Link struct {
	Platform string `json:"platform"`
	URL      string `json:"link"`
}

// User はサービス利用ユーザーを表す。
// PasswordDigest、RefreshToken、ProfileImageIDは内部専用フィールドであり、
// APIレスポンスにはPublicUser射影を通してのみ公開する。
type User struct {
	ID              string
	Email           string
	PasswordDigest  string
	FirstName       string
	LastName        string
	ProfileImageURL string
	ProfileImageID  string // メディアホスト内部のアセットID
	Links           []Link
	RefreshToken    string // 単一スロット。未発行・ログアウト後は空文字列。
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// PublicUser は外部公開用のユーザー射影。
// パスワードダイジェスト、リフレッシュトークン、メディア内部IDを含まない。
type PublicUser struct {
	ID              string    `json:"id"`
	Email           string    `json:"email"`
	FirstName       string    `json:"firstName,omitempty"`
	LastName        string    `json:"lastName,omitempty"`
	ProfileImageURL string    `json:"profileImg,omitempty"`
	Links           []Link    `json:"links,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Public はUserから公開射影を生成する。
func (u *User) Public() *PublicUser {
	if u == nil {
		return nil
	}
	return &PublicUser{
		ID:              u.ID,
		Email:           u.Email,
		FirstName:       u.FirstName,
		LastName:        u.LastName,
		ProfileImageURL: u.ProfileImageURL,
		Links:           u.Links,
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}
}
