package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env      string
	HTTPPort string
	LogLevel string

	DatabaseURL string

	RedisAddr     string
	RedisUsername string
	RedisPassword string
	RedisDB       int

	// SessionEncKey is the decoded 32-byte AES key for the credential cipher.
	SessionEncKey []byte

	SessionTTL      time.Duration
	SessionMaxAge   time.Duration
	RefreshWindow   time.Duration
	RefreshGrace    time.Duration
	RefreshCooldown time.Duration
	RefreshLockTTL  time.Duration

	ProviderURL       string
	ProviderAnonKey   string
	ProviderJWTSecret string
	ProviderJWTAud    string

	BaseShortURL string
	WebAppURL    string

	CORSAllowedOrigins []string

	AuthRateLimitPerMin int
	APIRateLimitPerMin  int
}

func Load() (*Config, error) {
	cfg := &Config{
		Env:                 getEnv("APP_ENV", "development"),
		HTTPPort:            getEnv("HTTP_PORT", "8080"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		RedisAddr:           getEnv("REDIS_ADDR", "localhost:6379"),
		RedisUsername:       os.Getenv("REDIS_USERNAME"),
		RedisPassword:       os.Getenv("REDIS_PASSWORD"),
		RedisDB:             getEnvInt("REDIS_DB", 0),
		ProviderURL:         strings.TrimRight(os.Getenv("PROVIDER_URL"), "/"),
		ProviderAnonKey:     os.Getenv("PROVIDER_ANON_KEY"),
		ProviderJWTSecret:   os.Getenv("PROVIDER_JWT_SECRET"),
		ProviderJWTAud:      getEnv("PROVIDER_JWT_AUD", "authenticated"),
		BaseShortURL:        strings.TrimRight(getEnv("BASE_SHORT_URL", "http://localhost:8080"), "/"),
		WebAppURL:           strings.TrimRight(getEnv("WEB_APP_URL", "http://localhost:5173"), "/"),
		CORSAllowedOrigins:  splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173")),
		AuthRateLimitPerMin: getEnvInt("AUTH_RATE_LIMIT_PER_MIN", 30),
		APIRateLimitPerMin:  getEnvInt("API_RATE_LIMIT_PER_MIN", 120),
	}

	for _, d := range []struct {
		key  string
		def  string
		dest *time.Duration
	}{
		{"SESSION_TTL", "168h", &cfg.SessionTTL},
		{"SESSION_MAX_AGE", "336h", &cfg.SessionMaxAge},
		{"SESSION_REFRESH_WINDOW", "5m", &cfg.RefreshWindow},
		{"SESSION_REFRESH_GRACE", "60s", &cfg.RefreshGrace},
		{"SESSION_REFRESH_COOLDOWN", "5m", &cfg.RefreshCooldown},
		{"SESSION_REFRESH_LOCK_TTL", "60s", &cfg.RefreshLockTTL},
	} {
		v, err := time.ParseDuration(getEnv(d.key, d.def))
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dest = v
	}

	if raw := os.Getenv("SESSION_ENC_KEY"); raw != "" {
		key, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return nil, fmt.Errorf("decode SESSION_ENC_KEY: %w", err)
		}
		cfg.SessionEncKey = key
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []string
	if c.DatabaseURL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}
	if len(c.SessionEncKey) != 32 {
		errs = append(errs, "SESSION_ENC_KEY must decode to exactly 32 bytes")
	}
	if c.ProviderURL == "" {
		errs = append(errs, "PROVIDER_URL is required")
	}
	if c.ProviderAnonKey == "" {
		errs = append(errs, "PROVIDER_ANON_KEY is required")
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, "SESSION_TTL must be > 0")
	}
	if c.RefreshLockTTL <= 0 {
		errs = append(errs, "SESSION_REFRESH_LOCK_TTL must be > 0")
	}
	// The policy timers only make sense in this order: a grace period longer
	// than the refresh window would honor sessions nobody can refresh, and a
	// store TTL beyond the hard cap would keep dead records alive.
	if c.RefreshGrace >= c.RefreshWindow {
		errs = append(errs, "SESSION_REFRESH_GRACE must be < SESSION_REFRESH_WINDOW")
	}
	if c.RefreshWindow >= c.SessionTTL {
		errs = append(errs, "SESSION_REFRESH_WINDOW must be < SESSION_TTL")
	}
	if c.SessionTTL > c.SessionMaxAge {
		errs = append(errs, "SESSION_TTL must be <= SESSION_MAX_AGE")
	}
	if c.AuthRateLimitPerMin <= 0 {
		errs = append(errs, "AUTH_RATE_LIMIT_PER_MIN must be > 0")
	}
	if c.APIRateLimitPerMin <= 0 {
		errs = append(errs, "API_RATE_LIMIT_PER_MIN must be > 0")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		trim := strings.TrimSpace(p)
		if trim != "" {
			out = append(out, trim)
		}
	}
	return out
}
