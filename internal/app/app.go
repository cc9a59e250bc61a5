package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/porttfolio/internal/client"
	"github.com/hitoshi/porttfolio/internal/config"
	"github.com/hitoshi/porttfolio/internal/database"
	"github.com/hitoshi/porttfolio/internal/guard"
	"github.com/hitoshi/porttfolio/internal/handler"
	"github.com/hitoshi/porttfolio/internal/identity"
	"github.com/hitoshi/porttfolio/internal/logger"
	"github.com/hitoshi/porttfolio/internal/metrics"
	"github.com/hitoshi/porttfolio/internal/middleware"
	"github.com/hitoshi/porttfolio/internal/registration"
	"github.com/hitoshi/porttfolio/internal/repository"
	"github.com/hitoshi/porttfolio/internal/security"
	"github.com/hitoshi/porttfolio/internal/storage"
	"github.com/hitoshi/porttfolio/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップしてから環境変数のConfigを読み込み、
// LOG_LEVELに合わせてログレベルを設定し直す。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルを反映する
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。SIGINTまたはSIGTERMで終了する。
func Run(w io.Writer, args []string) error {
	cmd, err := ParseCommand(args)
	if err != nil {
		return err
	}

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandWorker:
		return runWorker(ctx, cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(ctx, cfg)
	}
}

// openDatabase はDB接続を開き、到達できることを確認する。
func openDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL, database.PoolOptions{
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	})
	if err != nil {
		return nil, err
	}

	if err := database.Ping(ctx, db, 5*time.Second); err != nil {
		db.Close()
		return nil, err
	}

	slog.Info("database connection established")
	return db, nil
}

// newMetricsRegistry はランタイムとプロセスのメトリクスを含むレジストリを生成する。
func newMetricsRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// newStorageBackend はSTORAGE_BACKENDに応じた永続ストレージを返す。
// 返す関数は終了時に呼び出して接続を閉じる。
func newStorageBackend(ctx context.Context, cfg *config.Config, db *sql.DB) (storage.Backend, func() error, error) {
	switch cfg.StorageBackend {
	case config.StorageBackendRedis:
		rdb, err := storage.OpenRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("local storage backend selected", slog.String("backend", config.StorageBackendRedis))
		return storage.NewRedisBackend(rdb, time.Duration(cfg.ClientMaxAge)*time.Second), rdb.Close, nil
	default:
		slog.Info("local storage backend selected", slog.String("backend", config.StorageBackendPostgres))
		return repository.NewPostgresLocalStorageRepo(db), func() error { return nil }, nil
	}
}

// newProfileSink はPROFILE_STOREに応じた登録プロフィールの保存先を返す。
func newProfileSink(cfg *config.Config, db *sql.DB) registration.ProfileSink {
	if cfg.ProfileStore == config.ProfileStorePostgres {
		return registration.NewRepositorySink(
			repository.NewPostgresProfileRepo(db, security.NewTextSanitizer()),
		)
	}
	return registration.LogSink{}
}

// Server はserveモードで組み立てた依存関係を保持する。
type Server struct {
	Router      http.Handler
	Registry    *client.Registry
	RateLimiter *middleware.RateLimiter
	Metrics     *metrics.Collector
}

// Close はバックグラウンドのgoroutineを停止し、全クライアントを破棄する。
func (s *Server) Close() {
	s.RateLimiter.Stop()
	s.Registry.Stop()
}

// NewServer は全依存関係をワイヤリングしたServerを返す。
// クライアントの破棄処理はまだ開始しないため、呼び出し側でRegistry.Startを呼ぶ。
func NewServer(cfg *config.Config, db *sql.DB, backend storage.Backend, reg *prometheus.Registry) *Server {
	collector := metrics.NewCollector(reg)

	// 1. IdP
	svc := identity.NewService(
		repository.NewPostgresAccountRepo(db),
		repository.NewPostgresIdentityRepo(db),
		repository.NewPostgresSessionRepo(db),
		identity.NewGoogleOAuth(identity.GoogleOAuthConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
		}),
		identity.NewBcryptHasher(),
		identity.ServiceConfig{
			SessionMaxAge:     cfg.ClientMaxAge,
			MinPasswordLength: cfg.MinPasswordLength,
		},
	)

	// 2. クライアントレジストリ
	registry := client.NewRegistry(
		func(clientID string) identity.Provider { return svc.Client(clientID) },
		backend,
		client.Options{
			IdleTimeout: cfg.ClientIdleTimeout,
			Gauge:       collector,
		},
	)

	// 3. ルーター
	rateLimiter := middleware.NewRateLimiter(
		middleware.PerMinuteRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitAuth),
	)

	router := handler.NewRouter(&handler.RouterDeps{
		Clients: registry,
		ClientCookie: middleware.ClientCookieConfig{
			Secure: cfg.CookieSecure,
			Domain: cfg.CookieDomain,
			MaxAge: cfg.ClientMaxAge,
		},
		CSRF: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		CORS: middleware.CORSConfig{
			AllowedOrigin: cfg.CORSAllowedOrigin,
			MaxAge:        cfg.CORSMaxAge,
		},
		SecurityHeaders: middleware.SecurityHeadersConfig{
			ContentSecurityPolicy: cfg.ContentSecurityPolicy,
		},
		RateLimiter:    rateLimiter,
		Logger:         slog.Default(),
		StatusRecorder: collector,
		Guard: guard.Options{
			SuspendTimeout: cfg.GuardSuspendTimeout,
			LoginPath:      "/login",
			Recorder:       collector,
		},
		Handler: handler.Config{
			CookieSecure: cfg.CookieSecure,
			ProfileSink:  newProfileSink(cfg, db),
			Recorder:     collector,
		},
		HealthChecker: db,
		Gatherer:      reg,
	})

	return &Server{
		Router:      router,
		Registry:    registry,
		RateLimiter: rateLimiter,
		Metrics:     collector,
	}
}

// runServe はWebサーバーモードで起動する。
// ctxがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	// 1. DB接続
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// 2. 永続ストレージ
	backend, closeBackend, err := newStorageBackend(ctx, cfg, db)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeBackend(); err != nil {
			slog.Warn("failed to close local storage backend", slog.String("error", err.Error()))
		}
	}()

	// 3. ワイヤリング
	srv := NewServer(cfg, db, backend, newMetricsRegistry())
	srv.Registry.Start()
	defer srv.Close()

	// 4. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      srv.Router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if err := serveUntilDone(ctx, server); err != nil {
		return err
	}

	slog.Info("web server stopped gracefully")
	return nil
}

// serveUntilDone はctxがキャンセルされるまでserverを動かし、その後シャットダウンする。
func serveUntilDone(ctx context.Context, server *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down http server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

// runWorker はワーカーモードで起動する。
// 期限切れIdPセッションの削除を定期実行し、メトリクスを/metricsで公開する。
func runWorker(ctx context.Context, cfg *config.Config) error {
	// 1. DB接続
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// 2. メトリクス
	reg := newMetricsRegistry()
	collector := metrics.NewCollector(reg)
	metricsServer := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           metrics.SetupMetricsRoute(reg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// 3. クリーンアップジョブ
	job := cleanup.NewCleanupJob(db, slog.Default(), collector, time.Duration(cfg.ClientMaxAge)*time.Second)

	slog.Info("worker starting",
		slog.Duration("cleanup_interval", cfg.CleanupInterval),
	)

	// メトリクスサーバーが停止した場合はジョブも止める
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- serveUntilDone(ctx, metricsServer)
		cancel()
	}()

	job.RunEvery(ctx, cfg.CleanupInterval)

	if err := <-serverErr; err != nil {
		return err
	}

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("schema_version", uint64(version)),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	return checkHealth(fmt.Sprintf("http://localhost:%s/health", port))
}

func checkHealth(endpoint string) error {
	httpClient := &http.Client{Timeout: 5 * time.Second}

	resp, err := httpClient.Get(endpoint)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
