package session

import (
	"errors"
	"fmt"

	"github.com/hitoshi/porttfolio/internal/identity"
)

// AuthenticationErrorKind はログイン失敗の分類。
type AuthenticationErrorKind string

const (
	KindInvalidCredential AuthenticationErrorKind = "invalid-credential"
	KindNetwork           AuthenticationErrorKind = "network"
	KindUnknown           AuthenticationErrorKind = "unknown"
)

// AuthenticationError はログイン（資格情報またはGoogle）の失敗を表す。
type AuthenticationError struct {
	Kind    AuthenticationErrorKind
	Code    string // IdPのエラーコード
	Message string // IdPのメッセージ
	cause   error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed (%s): %s", e.Kind, e.Message)
}

func (e *AuthenticationError) Unwrap() error { return e.cause }

// AccountCreationError はアカウント作成の失敗を表す。
// ReasonとMessageはIdPの値をそのまま保持する。
type AccountCreationError struct {
	Reason  string
	Message string
	cause   error
}

func (e *AccountCreationError) Error() string {
	return fmt.Sprintf("account creation failed (%s): %s", e.Reason, e.Message)
}

func (e *AccountCreationError) Unwrap() error { return e.cause }

// SignOutError はIdP側でのログアウト失敗を表す。
type SignOutError struct {
	Message string
	cause   error
}

func (e *SignOutError) Error() string {
	return "sign-out failed: " + e.Message
}

func (e *SignOutError) Unwrap() error { return e.cause }

// newAuthenticationError はIdPのエラーをAuthenticationErrorに変換する。
// invalid-credentialとして扱うのはauth/invalid-credentialのみ。
func newAuthenticationError(err error) *AuthenticationError {
	code, message := describe(err)
	kind := KindUnknown
	switch code {
	case identity.CodeInvalidCredential:
		kind = KindInvalidCredential
	case identity.CodeNetworkRequestFailed:
		kind = KindNetwork
	}
	return &AuthenticationError{Kind: kind, Code: code, Message: message, cause: err}
}

func newAccountCreationError(err error) *AccountCreationError {
	code, message := describe(err)
	return &AccountCreationError{Reason: code, Message: message, cause: err}
}

func newSignOutError(err error) *SignOutError {
	_, message := describe(err)
	return &SignOutError{Message: message, cause: err}
}

// describe はエラーからIdPのコードとメッセージを取り出す。
func describe(err error) (code, message string) {
	var idErr *identity.Error
	if errors.As(err, &idErr) {
		return idErr.Code, idErr.Message
	}
	return "", err.Error()
}
