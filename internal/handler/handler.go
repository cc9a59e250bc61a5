// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"net/http"
	"strings"

	"github.com/hitoshi/porttfolio/internal/client"
	"github.com/hitoshi/porttfolio/internal/login"
	"github.com/hitoshi/porttfolio/internal/middleware"
	"github.com/hitoshi/porttfolio/internal/model"
	"github.com/hitoshi/porttfolio/internal/registration"
)

// Recorder は認証操作の結果を記録する。metrics.Collectorが実装する。
type Recorder interface {
	login.OutcomeRecorder
	registration.OutcomeRecorder
	RecordSignOut(result string)
}

// Config はハンドラーの設定。
type Config struct {
	CookieSecure bool
	ProfileSink  registration.ProfileSink // nilの場合はログ出力のみ
	Recorder     Recorder                 // nilでもよい
}

// Handler は画面とJSON APIのHTTPハンドラー。
// リクエストごとのクライアントはクライアントミドルウェアがコンテキストに注入する。
type Handler struct {
	config Config
}

// NewHandler はHandlerを生成する。
func NewHandler(config Config) *Handler {
	return &Handler{config: config}
}

// clientFrom はリクエストのクライアントを返す。
// クライアントミドルウェアを通っていない場合は500を書き込んでfalseを返す。
func (h *Handler) clientFrom(w http.ResponseWriter, r *http.Request) (*client.Client, bool) {
	c, ok := middleware.ClientFromContext(r.Context())
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusInternalServerError, model.NewClientMissingError())
		return nil, false
	}
	return c, true
}

func (h *Handler) recordSignOut(result string) {
	if h.config.Recorder != nil {
		h.config.Recorder.RecordSignOut(result)
	}
}

// seeOther はPOSTの結果としてGETで遷移させる。
func seeOther(w http.ResponseWriter, r *http.Request, path string) {
	http.Redirect(w, r, path, http.StatusSeeOther)
}

// localPath は同一オリジン内の絶対パスであればそのまま返し、それ以外はfallbackを返す。
func localPath(p, fallback string) string {
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\") {
		return fallback
	}
	return p
}
