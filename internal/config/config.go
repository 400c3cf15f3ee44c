package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Environment
	AppEnv string

	// Database
	DatabaseURL string

	// Email
	EmailBaseURL   string
	EmailSender    string
	EmailAuthToken string
	EmailTimeout   time.Duration

	// Subscription
	TokenTTL       time.Duration
	ResendCooldown time.Duration

	// Dispatch
	DispatchInterval      time.Duration
	DispatchMaxConcurrent int
	DispatchSendPerSecond float64
	DispatchMaxAttempts   int

	// Cleanup
	DeliveryRetentionDays int

	// Rate Limit
	RateLimitGeneral   int
	RateLimitSubscribe int

	// Admin
	AdminToken string

	// Server
	ServerPort string
	BaseURL    string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
// APP_ENVは設定プロファイル名（local/production等）で、起動ログへの出力にのみ使用する。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	cfg.EmailBaseURL = os.Getenv("EMAIL_BASE_URL")
	if cfg.EmailBaseURL == "" {
		missing = append(missing, "EMAIL_BASE_URL")
	}

	cfg.EmailSender = os.Getenv("EMAIL_SENDER")
	if cfg.EmailSender == "" {
		missing = append(missing, "EMAIL_SENDER")
	}

	cfg.EmailAuthToken = os.Getenv("EMAIL_AUTH_TOKEN")
	if cfg.EmailAuthToken == "" {
		missing = append(missing, "EMAIL_AUTH_TOKEN")
	}

	cfg.AdminToken = os.Getenv("ADMIN_TOKEN")
	if cfg.AdminToken == "" {
		missing = append(missing, "ADMIN_TOKEN")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.AppEnv = getEnvString("APP_ENV", "local")
	cfg.EmailTimeout = getEnvDuration("EMAIL_TIMEOUT", 10*time.Second)
	cfg.TokenTTL = getEnvDuration("TOKEN_TTL", 72*time.Hour)
	cfg.ResendCooldown = getEnvDuration("RESEND_COOLDOWN", 2*time.Minute)
	cfg.DispatchInterval = getEnvDuration("DISPATCH_INTERVAL", 1*time.Minute)
	cfg.DispatchMaxConcurrent = getEnvInt("DISPATCH_MAX_CONCURRENT", 10)
	cfg.DispatchSendPerSecond = getEnvFloat("DISPATCH_SEND_PER_SECOND", 10)
	cfg.DispatchMaxAttempts = getEnvInt("DISPATCH_MAX_ATTEMPTS", 5)
	cfg.DeliveryRetentionDays = getEnvInt("DELIVERY_RETENTION_DAYS", 30)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitSubscribe = getEnvInt("RATE_LIMIT_SUBSCRIBE", 10)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
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

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
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
