package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// 永続化先の選択肢
const (
	StorageBackendPostgres = "postgres"
	StorageBackendRedis    = "redis"

	ProfileStoreDiscard  = "discard"
	ProfileStorePostgres = "postgres"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// OAuth
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	// Client
	ClientMaxAge        int           // client_id Cookieの有効期間（秒）
	ClientIdleTimeout   time.Duration // 最終アクセスからクライアントを破棄するまでの時間
	GuardSuspendTimeout time.Duration // セッション復元を待つ上限

	// Identity
	MinPasswordLength int

	// Storage
	StorageBackend string // postgres | redis
	RedisURL       string
	ProfileStore   string // discard | postgres

	// Rate Limit（1分あたり）
	RateLimitGeneral int
	RateLimitAuth    int

	// Worker
	CleanupInterval time.Duration

	// Logging
	LogLevel string

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS・セキュリティヘッダー
	CORSAllowedOrigin     string
	CORSMaxAge            time.Duration
	ContentSecurityPolicy string // 空の場合はミドルウェアの既定値
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合や選択肢の値が不正な場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string
	required := []struct {
		key string
		dst *string
	}{
		{"DATABASE_URL", &cfg.DatabaseURL},
		{"BASE_URL", &cfg.BaseURL},
		{"GOOGLE_CLIENT_ID", &cfg.GoogleClientID},
		{"GOOGLE_CLIENT_SECRET", &cfg.GoogleClientSecret},
		{"GOOGLE_REDIRECT_URL", &cfg.GoogleRedirectURL},
	}
	for _, r := range required {
		*r.dst = os.Getenv(r.key)
		if *r.dst == "" {
			missing = append(missing, r.key)
		}
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.ClientMaxAge = getEnvInt("SESSION_MAX_AGE", 2592000)
	cfg.ClientIdleTimeout = getEnvDuration("CLIENT_IDLE_TIMEOUT", 30*time.Minute)
	cfg.GuardSuspendTimeout = getEnvDuration("GUARD_SUSPEND_TIMEOUT", 5*time.Second)
	cfg.MinPasswordLength = getEnvInt("MIN_PASSWORD_LENGTH", 6)
	cfg.StorageBackend = strings.ToLower(getEnvString("STORAGE_BACKEND", StorageBackendPostgres))
	cfg.RedisURL = getEnvString("REDIS_URL", "")
	cfg.ProfileStore = strings.ToLower(getEnvString("PROFILE_STORE", ProfileStoreDiscard))
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitAuth = getEnvInt("RATE_LIMIT_AUTH", 10)
	cfg.CleanupInterval = getEnvDuration("CLEANUP_INTERVAL", 24*time.Hour)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")
	cfg.CORSMaxAge = getEnvDuration("CORS_MAX_AGE", 24*time.Hour)
	cfg.ContentSecurityPolicy = getEnvString("CONTENT_SECURITY_POLICY", "")

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StorageBackend {
	case StorageBackendPostgres:
	case StorageBackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when STORAGE_BACKEND=%s", StorageBackendRedis)
		}
	default:
		return fmt.Errorf("unsupported STORAGE_BACKEND %q", c.StorageBackend)
	}

	switch c.ProfileStore {
	case ProfileStoreDiscard, ProfileStorePostgres:
	default:
		return fmt.Errorf("unsupported PROFILE_STORE %q", c.ProfileStore)
	}

	if c.MinPasswordLength < 1 {
		return fmt.Errorf("MIN_PASSWORD_LENGTH must be positive, got %d", c.MinPasswordLength)
	}
	return nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
