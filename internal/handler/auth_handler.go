package handler

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"log/slog"
	"net/http"

	"github.com/hitoshi/porttfolio/internal/login"
)

const oauthStateCookie = "oauth_state"

// loginView はログイン画面の表示データ。
type loginView struct {
	layoutData
	Email string
	Error string
}

// LoginPage はログイン画面を表示する。
// GET /login
func (h *Handler) LoginPage(w http.ResponseWriter, r *http.Request) {
	c, ok := h.clientFrom(w, r)
	if !ok {
		return
	}
	// 他の画面へ遷移したので登録中の入力は破棄する
	c.UnmountWizard()

	render(w, http.StatusOK, pageLogin, loginView{
		layoutData: newLayoutData(r, c, "Sign In"),
	})
}

// LoginSubmit はメールアドレスとパスワードでログインする。
// POST /login
func (h *Handler) LoginSubmit(w http.ResponseWriter, r *http.Request) {
	c, ok := h.clientFrom(w, r)
	if !ok {
		return
	}

	// ログイン画面からの送信なので登録の下書きは破棄する
	c.UnmountWizard()

	email := r.PostFormValue("email")
	outcome := login.NewFlow(c.Session, h.config.Recorder).Submit(r.Context(), email, r.PostFormValue("password"))
	if outcome.Redirect != "" {
		seeOther(w, r, outcome.Redirect)
		return
	}

	render(w, http.StatusOK, pageLogin, loginView{
		layoutData: newLayoutData(r, c, "Sign In"),
		Email:      email,
		Error:      outcome.Error,
	})
}

// GoogleLogin はGoogleの同意画面へリダイレクトする。
// GET /auth/google/login
func (h *Handler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	c, ok := h.clientFrom(w, r)
	if !ok {
		return
	}

	state, err := generateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	// stateをCookieに保存（CSRF対策）
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10分
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, c.Session.FederatedLoginURL(state), http.StatusTemporaryRedirect)
}

// GoogleCallback はGoogleの同意画面からの戻りを処理する。
// GET /auth/google/callback?code=xxx&state=yyy
//
// errorパラメータ付きで戻った場合は利用者がキャンセルしたものとして空の認可コードで完了させ、
// ログインフローにエラーとして表示させる。
func (h *Handler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	c, ok := h.clientFrom(w, r)
	if !ok {
		return
	}

	// 1. stateの検証（CSRF対策）
	state := r.URL.Query().Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || state == "" || subtle.ConstantTimeCompare([]byte(stateCookie.Value), []byte(state)) != 1 {
		slog.Warn("oauth state mismatch",
			slog.String("client_id", c.ID),
		)
		render(w, http.StatusBadRequest, pageLogin, loginView{
			layoutData: newLayoutData(r, c, "Sign In"),
			Error:      "Failed to sign in with Google: invalid state parameter",
		})
		return
	}

	// stateクッキーを削除
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	// 2. 認可コードの取得
	code := r.URL.Query().Get("code")
	if errParam := r.URL.Query().Get("error"); errParam != "" {
		slog.Info("google consent not granted",
			slog.String("client_id", c.ID),
			slog.String("reason", errParam),
		)
		code = ""
	}

	// 3. ログインフロー
	outcome := login.NewFlow(c.Session, h.config.Recorder).CompleteFederated(r.Context(), code)
	if outcome.Redirect != "" {
		http.Redirect(w, r, outcome.Redirect, http.StatusFound)
		return
	}

	c.UnmountWizard()
	render(w, http.StatusOK, pageLogin, loginView{
		layoutData: newLayoutData(r, c, "Sign In"),
		Error:      outcome.Error,
	})
}

// Logout はログアウトする。
// POST /logout
//
// 失敗した場合はログとメトリクスに記録するだけで、利用者はダッシュボードに留まる。
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	c, ok := h.clientFrom(w, r)
	if !ok {
		return
	}

	if err := c.Session.SignOut(r.Context()); err != nil {
		slog.Error("failed to log out",
			slog.String("client_id", c.ID),
			slog.String("error", err.Error()),
		)
		h.recordSignOut("failure")
		seeOther(w, r, login.HomePath)
		return
	}

	h.recordSignOut("success")
	seeOther(w, r, "/")
}

// generateState はOAuthのstateパラメータを生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
