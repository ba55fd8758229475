package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ストーリーストアとアセット保存先のバックエンド種別
const (
	BackendPostgres = "postgres"
	BackendSupabase = "supabase"
	BackendS3       = "s3"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL    string
	DatabaseDriver string // postgres (lib/pq) または pgx

	// Story store
	StoreBackend string // postgres または supabase
	SupabaseURL  string
	SupabaseKey  string

	// Assets
	AssetBackend      string // supabase または s3
	S3Endpoint        string
	S3Region          string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3PublicBaseURL   string
	UploadMaxSize     int64

	// OAuth
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	AdminEmails        []string

	// Session
	SessionSecret          string
	SessionMaxAge          int
	SessionCleanupInterval time.Duration

	// Ingest tokens
	IngestTokenTTL time.Duration

	// Import
	ImportSchedule      string // robfig/cron形式
	ImportTimeout       time.Duration
	ImportMaxSize       int64
	ImportMaxConcurrent int

	// Rate Limit
	RateLimitGeneral int
	RateLimitForms   int

	// Newsletter (beehiiv)
	BeehiivPublicationID string
	BeehiivAPIKey        string

	// Notifications
	SlackWebhookURL string

	// Logging
	LogLevel string

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合は、未設定の変数名をまとめたエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string
	require := func(key string) string {
		v := os.Getenv(key)
		if v == "" {
			missing = append(missing, key)
		}
		return v
	}

	cfg.DatabaseURL = require("DATABASE_URL")
	cfg.GoogleClientID = require("GOOGLE_CLIENT_ID")
	cfg.GoogleClientSecret = require("GOOGLE_CLIENT_SECRET")
	cfg.GoogleRedirectURL = require("GOOGLE_REDIRECT_URL")
	cfg.SessionSecret = require("SESSION_SECRET")
	cfg.BaseURL = require("BASE_URL")

	cfg.StoreBackend = strings.ToLower(getEnvString("STORE_BACKEND", BackendPostgres))
	cfg.AssetBackend = strings.ToLower(getEnvString("ASSET_BACKEND", BackendSupabase))

	if cfg.StoreBackend == BackendSupabase || cfg.AssetBackend == BackendSupabase {
		cfg.SupabaseURL = require("SUPABASE_URL")
		cfg.SupabaseKey = require("SUPABASE_KEY")
	}
	if cfg.AssetBackend == BackendS3 {
		cfg.S3Endpoint = require("S3_ENDPOINT")
		cfg.S3AccessKeyID = require("S3_ACCESS_KEY_ID")
		cfg.S3SecretAccessKey = require("S3_SECRET_ACCESS_KEY")
		cfg.S3PublicBaseURL = require("S3_PUBLIC_BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	switch cfg.StoreBackend {
	case BackendPostgres, BackendSupabase:
	default:
		return nil, fmt.Errorf("unsupported STORE_BACKEND %q (want postgres or supabase)", cfg.StoreBackend)
	}
	switch cfg.AssetBackend {
	case BackendSupabase, BackendS3:
	default:
		return nil, fmt.Errorf("unsupported ASSET_BACKEND %q (want supabase or s3)", cfg.AssetBackend)
	}

	// Optional fields with defaults
	cfg.DatabaseDriver = getEnvString("DATABASE_DRIVER", "postgres")
	cfg.S3Region = getEnvString("S3_REGION", "auto")
	cfg.UploadMaxSize = getEnvInt64("UPLOAD_MAX_SIZE", 50<<20)
	cfg.AdminEmails = getEnvList("ADMIN_EMAILS")
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 86400)
	cfg.SessionCleanupInterval = getEnvDuration("SESSION_CLEANUP_INTERVAL", time.Hour)
	cfg.IngestTokenTTL = getEnvDuration("INGEST_TOKEN_TTL", 90*24*time.Hour)
	cfg.ImportSchedule = getEnvString("IMPORT_SCHEDULE", "@every 30m")
	cfg.ImportTimeout = getEnvDuration("IMPORT_TIMEOUT", 10*time.Second)
	cfg.ImportMaxSize = getEnvInt64("IMPORT_MAX_SIZE", 5242880)
	cfg.ImportMaxConcurrent = getEnvInt("IMPORT_MAX_CONCURRENT", 4)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitForms = getEnvInt("RATE_LIMIT_FORMS", 5)
	cfg.BeehiivPublicationID = getEnvString("BEEHIIV_PUBLICATION_ID", "")
	cfg.BeehiivAPIKey = getEnvString("BEEHIIV_API_KEY", "")
	cfg.SlackWebhookURL = getEnvString("SLACK_WEBHOOK_URL", "")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

// NewsletterEnabled はbeehiivの認証情報が揃っているかを返す。
func (c *Config) NewsletterEnabled() bool {
	return c.BeehiivPublicationID != "" && c.BeehiivAPIKey != ""
}

// IsAdminEmail はメールアドレスが管理者許可リストに含まれるかを大文字小文字を区別せずに判定する。
func (c *Config) IsAdminEmail(email string) bool {
	email = strings.TrimSpace(email)
	for _, allowed := range c.AdminEmails {
		if strings.EqualFold(allowed, email) {
			return true
		}
	}
	return false
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

// getEnvList はカンマ区切りの環境変数を空要素を除いて分割する。
func getEnvList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
