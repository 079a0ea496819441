// Package password はパスワードのハッシュ化と照合を提供する。
// ダイジェストは一方向ハッシュであり、平文パスワードは永続化もログ出力もされない。
package password

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Hash は平文パスワードからbcryptダイジェストを生成する。
func Hash(plain string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(digest), nil
}

// Verify は平文パスワードがダイジェストと一致するかを返す。
func Verify(plain, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plain)) == nil
}
