package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/hitoshi/porttfolio/internal/identity"
	"github.com/hitoshi/porttfolio/internal/middleware"
	"github.com/hitoshi/porttfolio/internal/model"
)

// IdentityResponse はJSON APIで返すアカウント情報。
type IdentityResponse struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"displayName,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	LastSignInAt time.Time `json:"lastSignInAt"`
}

// SessionResponse はGET /api/sessionのレスポンス。
// isLoadingがtrueの間、identityは意味を持たない。
type SessionResponse struct {
	IsLoading bool              `json:"isLoading"`
	Identity  *IdentityResponse `json:"identity"`
}

// ThemeResponse はGET /api/themeのレスポンス。
type ThemeResponse struct {
	DarkMode bool `json:"darkMode"`
}

// Session はクライアントのセッション状態を返す。
// GET /api/session
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	c, ok := h.clientFrom(w, r)
	if !ok {
		return
	}

	state := c.Session.State()
	resp := SessionResponse{IsLoading: state.IsLoading}
	if !state.IsLoading && state.Identity != nil {
		resp.Identity = toIdentityResponse(state.Identity)
	}
	writeJSON(w, http.StatusOK, resp)
}

// sessionRetryAfter は復元中のセッションを再問い合わせするまでの目安。
const sessionRetryAfter = time.Second

// Identity はログイン中のアカウントを返す。
// 復元中は503、未ログインは401をエラーフォーマットで返す。
// GET /api/identity
func (h *Handler) Identity(w http.ResponseWriter, r *http.Request) {
	c, ok := h.clientFrom(w, r)
	if !ok {
		return
	}

	state := c.Session.State()
	switch {
	case state.IsLoading:
		middleware.WriteRetryableError(w, http.StatusServiceUnavailable, sessionRetryAfter, model.NewSessionLoadingError())
	case state.Identity == nil:
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
	default:
		writeJSON(w, http.StatusOK, toIdentityResponse(state.Identity))
	}
}

// Theme はクライアントの表示モードを返す。
// GET /api/theme
func (h *Handler) Theme(w http.ResponseWriter, r *http.Request) {
	c, ok := h.clientFrom(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ThemeResponse{DarkMode: c.Theme.Get()})
}

func toIdentityResponse(ident *identity.Identity) *IdentityResponse {
	return &IdentityResponse{
		ID:           ident.ID,
		Email:        ident.Email,
		DisplayName:  ident.DisplayName,
		CreatedAt:    ident.CreatedAt,
		LastSignInAt: ident.LastSignInAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
