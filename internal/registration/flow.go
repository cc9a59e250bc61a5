package registration

import (
	"context"
	"errors"
	"log/slog"
	"net/url"

	"github.com/hitoshi/porttfolio/internal/identity"
	"github.com/hitoshi/porttfolio/internal/session"
)

// HomePath は登録成功後の遷移先。
const HomePath = "/home"

// SignUpper は登録フローが使うSession Storeの操作。
type SignUpper interface {
	SignUpWithCredentials(ctx context.Context, email, password string) (*identity.Identity, error)
}

// OutcomeRecorder は登録結果を記録する。
type OutcomeRecorder interface {
	RecordSignUp(result string)
}

// Outcome はフローの結果。Redirectが空の場合はウィザードに留まる。
type Outcome struct {
	Redirect string
	Error    string
}

// Flow は登録ウィザードの送信フロー。
type Flow struct {
	auth     SignUpper
	sink     ProfileSink
	recorder OutcomeRecorder
}

// NewFlow はFlowを生成する。sinkがnilの場合はLogSinkを使う。recorderはnilでもよい。
func NewFlow(auth SignUpper, sink ProfileSink, recorder OutcomeRecorder) *Flow {
	if sink == nil {
		sink = LogSink{}
	}
	return &Flow{auth: auth, sink: sink, recorder: recorder}
}

// Next は進む操作を処理する。
//
// 最終ステップ以外では次のステップへ進むだけで送信はしない。
// 最終ステップではメールアドレスとパスワードのみでアカウントを作成する。
// 失敗時はIdPのメッセージをそのまま表示し、現在のステップに留まる。
// 成功時はプロフィールを保存先へ渡し、ダッシュボードへ遷移する。
func (f *Flow) Next(ctx context.Context, w *Wizard) Outcome {
	if !w.IsTerminal() {
		w.advance()
		return Outcome{}
	}

	d := w.Draft()
	ident, err := f.auth.SignUpWithCredentials(ctx, d.Email, d.Password)
	if err != nil {
		msg := "Failed to create account: " + messageOf(err)
		w.setError(msg)
		f.record(reasonOf(err))
		slog.Info("registration failed", slog.String("error", err.Error()))
		return Outcome{Error: msg}
	}
	f.record("success")

	// プロフィールの保存失敗は利用者に見せない
	if err := f.sink.Save(ctx, ident, d.Profile()); err != nil {
		slog.Error("failed to save registration profile",
			slog.String("account_id", ident.ID),
			slog.String("error", err.Error()),
		)
	}
	return Outcome{Redirect: HomePath}
}

// Back は現在のステップの入力を下書きに反映してから前のステップへ戻る。
// 戻る操作では必須項目の検証をしないため、入力途中の値もそのまま保持する。
func (f *Flow) Back(w *Wizard, form url.Values) {
	w.Apply(form)
	w.Back()
}

func (f *Flow) record(result string) {
	if f.recorder != nil {
		f.recorder.RecordSignUp(result)
	}
}

func messageOf(err error) string {
	var createErr *session.AccountCreationError
	if errors.As(err, &createErr) && createErr.Message != "" {
		return createErr.Message
	}
	return err.Error()
}

func reasonOf(err error) string {
	var createErr *session.AccountCreationError
	if errors.As(err, &createErr) && createErr.Reason != "" {
		return createErr.Reason
	}
	return "unknown"
}
