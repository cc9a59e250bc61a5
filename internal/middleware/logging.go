package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/hitoshi/porttfolio/internal/client"
)

// StatusRecorder はHTTPステータスコードを記録する。
// metrics.Collectorが実装する。
type StatusRecorder interface {
	RecordHTTPStatus(statusCode int)
}

// statusRecorder はhttp.ResponseWriterをラップし、ステータスコードを記録する。
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

// WriteHeader はステータスコードを記録してから委譲する。
func (sr *statusRecorder) WriteHeader(code int) {
	if !sr.written {
		sr.statusCode = code
		sr.written = true
	}
	sr.ResponseWriter.WriteHeader(code)
}

// Write はデータを書き込む。WriteHeaderが未呼び出しの場合は200を記録する。
func (sr *statusRecorder) Write(b []byte) (int, error) {
	if !sr.written {
		sr.statusCode = http.StatusOK
		sr.written = true
	}
	return sr.ResponseWriter.Write(b)
}

// requestLog はログミドルウェアより内側で解決されたクライアントを受け渡す。
type requestLog struct {
	mu     sync.Mutex
	client *client.Client
}

func annotateRequestLog(ctx context.Context, c *client.Client) {
	rl, ok := ctx.Value(requestLogContextKey).(*requestLog)
	if !ok {
		return
	}
	rl.mu.Lock()
	rl.client = c
	rl.mu.Unlock()
}

func (rl *requestLog) attrs() []slog.Attr {
	rl.mu.Lock()
	c := rl.client
	rl.mu.Unlock()
	if c == nil {
		return nil
	}

	attrs := []slog.Attr{slog.String("client_id", c.ID)}
	if st := c.Session.State(); st.Identity != nil {
		attrs = append(attrs, slog.String("user_id", st.Identity.ID))
	}
	return attrs
}

// NewLoggingMiddleware はリクエストのJSON構造化ログを出力するミドルウェアを返す。
// ログにはmethod、path、status、duration_ms、client_id、user_id（ログイン済みの場合）を含む。
// statusesがnilでない場合はステータスコードも記録する。
func NewLoggingMiddleware(logger *slog.Logger, statuses StatusRecorder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rec := &statusRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}
			rl := &requestLog{}
			ctx := context.WithValue(r.Context(), requestLogContextKey, rl)

			next.ServeHTTP(rec, r.WithContext(ctx))

			duration := time.Since(start)
			durationMs := float64(duration.Nanoseconds()) / float64(time.Millisecond)

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.statusCode),
				slog.Float64("duration_ms", durationMs),
			}
			attrs = append(attrs, rl.attrs()...)

			if statuses != nil {
				statuses.RecordHTTPStatus(rec.statusCode)
			}

			level := slog.LevelInfo
			if rec.statusCode >= 500 {
				level = slog.LevelError
			} else if rec.statusCode >= 400 {
				level = slog.LevelWarn
			}

			logger.LogAttrs(r.Context(), level, "http_request", attrs...)
		})
	}
}
