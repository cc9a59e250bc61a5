// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized   = "UNAUTHORIZED"
	ErrCodeClientMissing  = "CLIENT_MISSING"
	ErrCodeSessionLoading = "SESSION_LOADING"
	ErrCodeThemeStorage   = "THEME_STORAGE_FAILED"
	ErrCodeRateLimited    = "rate_limit_exceeded"
)

// NewUnauthorizedError は未ログイン状態でのアクセスエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "You are not signed in.",
		Category: "auth",
		Action:   "Sign in and try again.",
	}
}

// NewClientMissingError はクライアント識別Cookieが解決できない場合のエラーを生成する。
func NewClientMissingError() *APIError {
	return &APIError{
		Code:     ErrCodeClientMissing,
		Message:  "No client is associated with this request.",
		Category: "system",
		Action:   "Reload the page to start a new client.",
	}
}

// NewSessionLoadingError はセッション状態がまだ確定していない場合のエラーを生成する。
func NewSessionLoadingError() *APIError {
	return &APIError{
		Code:     ErrCodeSessionLoading,
		Message:  "The session is still being restored.",
		Category: "auth",
		Action:   "Retry after a moment.",
	}
}

// NewThemeStorageError はテーマ設定の永続化に失敗した場合のエラーを生成する。
func NewThemeStorageError() *APIError {
	return &APIError{
		Code:     ErrCodeThemeStorage,
		Message:  "The display preference could not be saved.",
		Category: "system",
		Action:   "Try toggling the theme again.",
	}
}

// NewRateLimitedError はレート制限超過時のエラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "Too many requests. Please try again later.",
		Category: "system",
		Action:   "Please wait and retry after the specified time.",
	}
}
