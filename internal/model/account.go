// Package model はドメインモデルを定義する。
package model

import "time"

// Account はIdPに登録されたアカウントを表す。
// パスワード認証用の資格情報とフェデレーションIDはそれぞれ別テーブルに紐付く。
type Account struct {
	ID           string
	Email        string
	DisplayName  string
	CreatedAt    time.Time
	LastSignInAt time.Time
}

// LinkedIdentity は外部IdP（Google等）とアカウントの紐付け情報を表す。
type LinkedIdentity struct {
	ID             string
	AccountID      string
	Provider       string
	ProviderUserID string
	CreatedAt      time.Time
}

// ProviderSession はクライアントごとにIdP側で保持されるログイン状態を表す。
// アプリケーション側のセッションはこのレコードから毎回導出され、それ自体は永続化しない。
type ProviderSession struct {
	ClientID  string
	AccountID string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Profile は登録ウィザードで収集されるプロフィール項目を表す。
// メールアドレスとパスワード以外の7項目のみを保持する。
type Profile struct {
	AccountID       string
	Name            string
	Age             string
	DOB             string
	MaritalStatus   string
	Sex             string
	RiskLevel       string
	ExperienceLevel string
	CreatedAt       time.Time
}
