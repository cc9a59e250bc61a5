package middleware

import (
	"net/http"
	"strconv"
	"time"
)

// defaultCORSMaxAge はプリフライト結果のキャッシュ期間の既定値。
const defaultCORSMaxAge = 24 * time.Hour

// CORSConfig はJSON API向けCORSの設定。
type CORSConfig struct {
	// AllowedOrigin は許可するオリジン。credentials送信と共存するためワイルドカード(*)は使用しない。
	AllowedOrigin string
	// MaxAge はプリフライト結果のキャッシュ期間。0の場合は24時間。
	MaxAge time.Duration
}

// NewCORSMiddleware はconfig.AllowedOriginに対するCORSミドルウェアを返す。
// JSON APIは読み取り専用のため、許可するメソッドはGETとOPTIONSのみ。
// OPTIONSプリフライトリクエストには204で応答する。
func NewCORSMiddleware(config CORSConfig) func(next http.Handler) http.Handler {
	maxAge := config.MaxAge
	if maxAge <= 0 {
		maxAge = defaultCORSMaxAge
	}
	maxAgeSec := strconv.Itoa(int(maxAge / time.Second))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", config.AllowedOrigin)
			h.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, "+csrfHeaderName)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Max-Age", maxAgeSec)
			h.Add("Vary", "Origin")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
