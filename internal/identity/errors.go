package identity

import (
	"errors"
	"fmt"
)

// IdPが返すエラーコード。
// Webクライアントがそのまま解釈できるよう "auth/" 接頭辞付きの形式に揃えている。
const (
	CodeInvalidCredential    = "auth/invalid-credential"
	CodeEmailAlreadyInUse    = "auth/email-already-in-use"
	CodeWeakPassword         = "auth/weak-password"
	CodeInvalidEmail         = "auth/invalid-email"
	CodeNetworkRequestFailed = "auth/network-request-failed"
	CodePopupClosedByUser    = "auth/popup-closed-by-user"
	CodeAccountExists        = "auth/account-exists-with-different-credential"
	CodeInternalError        = "auth/internal-error"
)

// Error はIdPの操作が失敗したことを表す。
// Messageは利用者にそのまま表示してよい文言。
type Error struct {
	Code    string
	Message string
	cause   error
}

// Error はerrorインターフェースを実装する。
func (e *Error) Error() string {
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

// Unwrap は原因となったエラーを返す。
func (e *Error) Unwrap() error {
	return e.cause
}

func newError(code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// CodeOf はエラーからIdPのエラーコードを取り出す。*Errorでない場合は空文字列を返す。
func CodeOf(err error) string {
	var idErr *Error
	if errors.As(err, &idErr) {
		return idErr.Code
	}
	return ""
}

func errInvalidCredential() *Error {
	return newError(CodeInvalidCredential, "The email or password is incorrect.", nil)
}

func errInternal(cause error) *Error {
	return newError(CodeInternalError, "An internal error has occurred.", cause)
}
