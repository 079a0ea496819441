// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ProfileSanitizerService はユーザー入力のプロフィール項目をサニタイズし、
// 保存値に一切のHTMLが混入しないことを保証する。
// プロフィール項目はプレーンテキストとして扱うため、bluemondayの
// StrictPolicy（全タグ除去）を使用する。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ProfileSanitizerService はプロフィール項目のサニタイズ機能のインターフェースを定義する。
// 名前・リンクのプラットフォーム名などの保存前に使用される。
type ProfileSanitizerService interface {
	// Sanitize は入力からすべてのHTMLタグを除去し、前後の空白をトリムして返す。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(input string) string
}

// profileSanitizer はProfileSanitizerServiceの実装。
// スレッドセーフにサニタイズ処理を行う。
type profileSanitizer struct {
	policy *bluemonday.Policy
}

// NewProfileSanitizer はProfileSanitizerServiceの新しいインスタンスを生成する。
// プロフィール項目にマークアップは不要なので、許可タグゼロの
// StrictPolicyを使用する。
func NewProfileSanitizer() *profileSanitizer {
	return &profileSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は入力からHTMLタグを除去し、前後の空白をトリムして返す。
func (s *profileSanitizer) Sanitize(input string) string {
	return strings.TrimSpace(s.policy.Sanitize(input))
}
