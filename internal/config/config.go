// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// DefaultImportSourceURL はインポート元のデフォルトURL。
const DefaultImportSourceURL = "https://test.3it.cz/data/json"

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string `validate:"required"`

	// Session
	SessionMaxAge          int           `validate:"gt=0"` // 秒
	SessionCookieName      string        `validate:"required,printascii"`
	SessionCleanupInterval time.Duration `validate:"gt=0"`

	// Import
	ImportSourceURL    string        `validate:"required,http_url"`
	ImportTimeout      time.Duration `validate:"gt=0"`
	ImportCacheTTL     time.Duration `validate:"gte=0"`
	ImportMaxSize      int64         `validate:"gt=0"`
	ImportRetries      int           `validate:"gte=1,lte=5"` // 初回を含む試行回数
	ImportAllowPrivate bool

	// Rate Limit (req/min)
	RateLimitGeneral int `validate:"gt=0"`
	RateLimitImport  int `validate:"gt=0"`

	// Security
	CSRFEnabled bool

	// Server
	ServerPort string `validate:"required,numeric"`
	BaseURL    string `validate:"required,http_url"`

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

var validate = validator.New()

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定、または値が範囲外の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("required environment variables are not set: %v", []string{"DATABASE_URL"})
	}

	// Optional fields with defaults
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 86400)
	cfg.SessionCookieName = getEnvString("SESSION_COOKIE_NAME", "app_session")
	cfg.SessionCleanupInterval = getEnvDuration("SESSION_CLEANUP_INTERVAL", time.Hour)
	cfg.ImportSourceURL = getEnvString("IMPORT_SOURCE_URL", DefaultImportSourceURL)
	cfg.ImportTimeout = getEnvDuration("IMPORT_TIMEOUT", 10*time.Second)
	cfg.ImportCacheTTL = getEnvDuration("IMPORT_CACHE_TTL", 5*time.Minute)
	cfg.ImportMaxSize = getEnvInt64("IMPORT_MAX_SIZE", 5242880)
	cfg.ImportRetries = getEnvInt("IMPORT_RETRY_ATTEMPTS", 2)
	cfg.ImportAllowPrivate = getEnvBool("IMPORT_ALLOW_PRIVATE", false)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitImport = getEnvInt("RATE_LIMIT_IMPORT", 10)
	cfg.CSRFEnabled = getEnvBool("CSRF_ENABLED", true)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.BaseURL = getEnvString("BASE_URL", "http://localhost:"+cfg.ServerPort)
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "")

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %s", describeValidationError(err))
	}

	return cfg, nil
}

// describeValidationError は検証エラーを「フィールド名(タグ)」の一覧にまとめる。
func describeValidationError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s(%s)", fe.Field(), fe.Tag()))
	}
	return strings.Join(fields, ", ")
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

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
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
