package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/porttfolio/internal/guard"
	"github.com/hitoshi/porttfolio/internal/metrics"
	"github.com/hitoshi/porttfolio/internal/middleware"
	"github.com/hitoshi/porttfolio/internal/session"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Clients         middleware.ClientResolver
	ClientCookie    middleware.ClientCookieConfig
	CSRF            middleware.CSRFConfig
	CORS            middleware.CORSConfig
	SecurityHeaders middleware.SecurityHeadersConfig
	RateLimiter     *middleware.RateLimiter
	Logger          *slog.Logger
	StatusRecorder  middleware.StatusRecorder // nilでもよい

	// ルートガード
	Guard guard.Options

	// 画面・API
	Handler Config

	// 運用
	HealthChecker HealthChecker        // nilでもよい
	Gatherer      prometheus.Gatherer // nilの場合は/metricsを公開しない
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → Logging → RateLimit(General) → [RateLimit(Auth)] → Client → CSRF
//
// レート制限はクライアントを生成する前にリモートアドレスで判定する。
// Cookieを捨てて新しいクライアントIDを得ても制限は回避できない。
// /healthと/metricsはクライアントを生成しないようClientミドルウェアの外に配置する。
// /homeと/logoutはルートガードの内側に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.SecurityHeaders))
	r.Use(middleware.NewLoggingMiddleware(logger, deps.StatusRecorder))

	h := NewHandler(deps.Handler)
	withClient := func(r chi.Router) {
		r.Use(middleware.NewClientMiddleware(deps.Clients, deps.ClientCookie))
		r.Use(middleware.NewCSRFMiddleware(deps.CSRF))
	}

	// --- 運用エンドポイント ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// --- 認証送信 ---
		r.Group(func(r chi.Router) {
			r.Use(deps.RateLimiter.AuthMiddleware())
			withClient(r)

			r.Post("/login", h.LoginSubmit)
			r.Post("/registration", h.RegistrationSubmit)
			r.Get("/auth/google/callback", h.GoogleCallback)
		})

		// --- クライアントに紐づくルート ---
		r.Group(func(r chi.Router) {
			withClient(r)

			r.Get("/", func(w http.ResponseWriter, r *http.Request) {
				http.Redirect(w, r, "/login", http.StatusFound)
			})

			r.Get("/login", h.LoginPage)
			r.Get("/registration", h.RegistrationPage)
			r.Get("/auth/google/login", h.GoogleLogin)
			r.Post("/theme/toggle", h.ToggleTheme)

			// ログイン必須
			r.Group(func(r chi.Router) {
				r.Use(guard.Middleware(storeFromRequest, deps.Guard))
				r.Get("/home", h.Home)
				r.Post("/logout", h.Logout)
			})

			// JSON API
			r.Route("/api", func(r chi.Router) {
				r.Use(middleware.NewCORSMiddleware(deps.CORS))
				r.Get("/session", h.Session)
				r.Get("/identity", h.Identity)
				r.Get("/theme", h.Theme)
				r.Get("/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRF).ServeHTTP)
			})
		})
	})

	return r
}

// storeFromRequest はルートガードが参照するSession Storeを返す。
func storeFromRequest(r *http.Request) *session.Store {
	c, ok := middleware.ClientFromContext(r.Context())
	if !ok {
		return nil
	}
	return c.Session
}
