// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"encoding/hex"
	"log/slog"
	"net/http"

	"github.com/hitoshi/porttfolio/internal/client"
)

// clientCookieName はブラウザを識別するCookieの名前。
const clientCookieName = "client_id"

// clientIDLength はクライアントIDの16進文字列長。
const clientIDLength = 64

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	clientContextKey     = contextKey("client")
	csrfTokenContextKey  = contextKey("csrf_token")
	requestLogContextKey = contextKey("request_log")
)

// ClientResolver はクライアントIDからClientを取得する。
// client.Registryが実装する。
type ClientResolver interface {
	Get(ctx context.Context, id string) *client.Client
}

// ClientCookieConfig はクライアント識別Cookieの設定。
type ClientCookieConfig struct {
	Secure bool
	Domain string
	MaxAge int // 秒
}

// NewClientMiddleware はclient_id Cookieからクライアントを解決し、
// リクエストコンテキストに注入するミドルウェアを返す。
// Cookieが無いか不正な形式の場合は新しいクライアントIDを発行する。
func NewClientMiddleware(resolver ClientResolver, config ClientCookieConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. CookieからクライアントIDを取得
			id := ""
			if cookie, err := r.Cookie(clientCookieName); err == nil && isValidClientID(cookie.Value) {
				id = cookie.Value
			}

			// 2. 未発行の場合は新規に発行
			if id == "" {
				newID, err := generateToken()
				if err != nil {
					slog.Error("failed to generate client ID",
						slog.String("error", err.Error()),
					)
					WriteInternalServerError(w)
					return
				}
				id = newID
				setClientCookie(w, id, config)
			}

			// 3. クライアントを解決してコンテキストに注入
			c := resolver.Get(r.Context(), id)
			annotateRequestLog(r.Context(), c)
			next.ServeHTTP(w, r.WithContext(ContextWithClient(r.Context(), c)))
		})
	}
}

// ClientFromContext はリクエストコンテキストからクライアントを取得する。
// クライアントミドルウェアを通過したリクエストでのみ有効。
func ClientFromContext(ctx context.Context) (*client.Client, bool) {
	c, ok := ctx.Value(clientContextKey).(*client.Client)
	return c, ok && c != nil
}

// ContextWithClient はコンテキストにクライアントを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithClient(ctx context.Context, c *client.Client) context.Context {
	return context.WithValue(ctx, clientContextKey, c)
}

func setClientCookie(w http.ResponseWriter, id string, config ClientCookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     clientCookieName,
		Value:    id,
		Path:     "/",
		Domain:   config.Domain,
		MaxAge:   config.MaxAge,
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func isValidClientID(v string) bool {
	if len(v) != clientIDLength {
		return false
	}
	_, err := hex.DecodeString(v)
	return err == nil
}
