/*
Package config loads runtime configuration for the extra-hours service.

SOURCES (later wins):
  1. Defaults below
  2. A .env file (github.com/joho/godotenv); never overrides real env vars
  3. Environment variables
  4. CLI flags (bound in cmd/server)

VARIABLES:
  PORT              HTTP port (default 8080)
  DB_PATH           SQLite file, or ":memory:" (default ./extrahours.db)
  JWT_SECRET        HS256 signing secret (required for serve and token)
  TOKEN_TTL         lifetime of issued tokens (default 12h)
  RECALC_INTERVAL   scheduler interval, 0 disables (default 24h)
  RATE_LIMIT_RPS    per-user requests per second, 0 disables (default 10)
  RATE_LIMIT_BURST  per-user burst (default 20)
  LOG_LEVEL         debug | info | warn | error (default info)
  LOG_FORMAT        text | json (default text)
  CRON_SECRET       bearer secret for GET /api/cron (optional)
  CORS_ORIGINS      comma-separated allowed origins (default *)
*/
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           string
	DBPath         string
	JWTSecret      string
	TokenTTL       time.Duration
	RecalcInterval time.Duration
	RateLimitRPS   float64
	RateLimitBurst int
	LogLevel       string
	LogFormat      string
	CronSecret     string
	CORSOrigins    []string
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Port:           "8080",
		DBPath:         "./extrahours.db",
		TokenTTL:       12 * time.Hour,
		RecalcInterval: 24 * time.Hour,
		RateLimitRPS:   10,
		RateLimitBurst: 20,
		LogLevel:       "info",
		LogFormat:      "text",
		CORSOrigins:    []string{"*"},
	}
}

// Load reads envFile (if present) and the environment on top of Default.
// A missing envFile is not an error.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	return FromEnv()
}

// FromEnv builds a Config from environment variables only.
func FromEnv() (Config, error) {
	cfg := Default()
	var err error

	cfg.Port = envStr("PORT", cfg.Port)
	cfg.DBPath = envStr("DB_PATH", cfg.DBPath)
	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	cfg.CronSecret = os.Getenv("CRON_SECRET")
	cfg.LogLevel = strings.ToLower(envStr("LOG_LEVEL", cfg.LogLevel))
	cfg.LogFormat = strings.ToLower(envStr("LOG_FORMAT", cfg.LogFormat))

	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = splitList(v)
	}
	if cfg.TokenTTL, err = envDur("TOKEN_TTL", cfg.TokenTTL); err != nil {
		return Config{}, err
	}
	if cfg.RecalcInterval, err = envDur("RECALC_INTERVAL", cfg.RecalcInterval); err != nil {
		return Config{}, err
	}
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		if cfg.RateLimitRPS, err = strconv.ParseFloat(v, 64); err != nil {
			return Config{}, fmt.Errorf("invalid RATE_LIMIT_RPS %q: %w", v, err)
		}
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		if cfg.RateLimitBurst, err = strconv.Atoi(v); err != nil {
			return Config{}, fmt.Errorf("invalid RATE_LIMIT_BURST %q: %w", v, err)
		}
	}

	return cfg, cfg.Validate()
}

// Validate checks values that don't depend on the command being run.
func (c Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT must not be empty")
	}
	if c.DBPath == "" {
		return errors.New("DB_PATH must not be empty")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive, got %s", c.TokenTTL)
	}
	if c.RecalcInterval < 0 {
		return fmt.Errorf("RECALC_INTERVAL must not be negative, got %s", c.RecalcInterval)
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		return errors.New("rate limit values must not be negative")
	}
	if c.RateLimitRPS > 0 && c.RateLimitBurst < 1 {
		return errors.New("RATE_LIMIT_BURST must be at least 1 when RATE_LIMIT_RPS is set")
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	return nil
}

// RequireJWTSecret is checked by commands that sign or verify tokens.
func (c Config) RequireJWTSecret() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	return nil
}

// =============================================================================
// LOGGING
// =============================================================================

// NewLogger builds the process logger described by LogLevel and LogFormat.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if c.LogFormat == "json" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h)
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL %q", s)
	}
	return level, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envDur(k string, d time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return d, nil
	}
	dur, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", k, v, err)
	}
	return dur, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
