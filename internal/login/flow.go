// Package login はログイン画面の送信結果を決めるフローを提供する。
package login

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hitoshi/porttfolio/internal/identity"
	"github.com/hitoshi/porttfolio/internal/session"
)

// 遷移先
const (
	HomePath         = "/home"
	RegistrationPath = "/registration"
)

// Authenticator はログインフローが使うSession Storeの操作。
type Authenticator interface {
	SignInWithCredentials(ctx context.Context, email, password string) (*identity.Identity, error)
	SignInWithFederatedProvider(ctx context.Context, code string) (*session.FederatedSignIn, error)
}

// OutcomeRecorder はログイン結果を記録する。
type OutcomeRecorder interface {
	RecordSignIn(method, result string)
}

// Outcome はフローの結果。Redirectが空の場合はErrorを表示してログイン画面に留まる。
type Outcome struct {
	Redirect string
	Error    string
}

// Flow はログイン画面のフロー。
type Flow struct {
	auth     Authenticator
	recorder OutcomeRecorder
}

// NewFlow はFlowを生成する。recorderはnilでもよい。
func NewFlow(auth Authenticator, recorder OutcomeRecorder) *Flow {
	return &Flow{auth: auth, recorder: recorder}
}

// Submit はメールアドレスとパスワードでログインする。
//
// invalid-credentialの場合は未登録とみなして登録画面へ遷移する。
// その他のエラーはメッセージを表示して留まり、成功時はダッシュボードへ遷移する。
func (f *Flow) Submit(ctx context.Context, email, password string) Outcome {
	_, err := f.auth.SignInWithCredentials(ctx, email, password)
	if err == nil {
		f.record("password", "success")
		return Outcome{Redirect: HomePath}
	}

	var authErr *session.AuthenticationError
	if errors.As(err, &authErr) && authErr.Kind == session.KindInvalidCredential {
		f.record("password", string(authErr.Kind))
		return Outcome{Redirect: RegistrationPath}
	}

	f.record("password", kindOf(err))
	slog.Info("sign-in failed", slog.String("error", err.Error()))
	return Outcome{Error: "Failed to sign in: " + messageOf(err)}
}

// CompleteFederated はGoogleの同意画面から戻った認可コードでログインする。
// 新規アカウントは登録画面へ、既存アカウントはダッシュボードへ遷移する。
// 利用者によるキャンセルを含む全てのエラーはメッセージを表示して留まる。
func (f *Flow) CompleteFederated(ctx context.Context, code string) Outcome {
	res, err := f.auth.SignInWithFederatedProvider(ctx, code)
	if err != nil {
		f.record("google", kindOf(err))
		slog.Info("federated sign-in failed", slog.String("error", err.Error()))
		return Outcome{Error: "Failed to sign in with Google: " + messageOf(err)}
	}

	if res.IsNewAccount {
		f.record("google", "new_account")
		return Outcome{Redirect: RegistrationPath}
	}
	f.record("google", "success")
	return Outcome{Redirect: HomePath}
}

func (f *Flow) record(method, result string) {
	if f.recorder != nil {
		f.recorder.RecordSignIn(method, result)
	}
}

func kindOf(err error) string {
	var authErr *session.AuthenticationError
	if errors.As(err, &authErr) {
		return string(authErr.Kind)
	}
	return string(session.KindUnknown)
}

func messageOf(err error) string {
	var authErr *session.AuthenticationError
	if errors.As(err, &authErr) && authErr.Message != "" {
		return authErr.Message
	}
	return err.Error()
}
