// Package config loads the server configuration.
//
// CONFIGURATION SOURCES (highest priority first):
//  1. Process environment variables
//  2. A .env file in the working directory, if present
//  3. The defaults below
//
// godotenv.Load never overwrites a variable that is already set, so an
// exported variable always beats the .env file. That keeps the same binary
// usable on a laptop (with a .env) and in a container (with real env vars).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// StoreKind selects the repository.Store implementation.
type StoreKind string

const (
	StoreSQLite StoreKind = "sqlite"
	StoreMemory StoreKind = "memory"
)

// Config is everything the server needs to start. Durations use Go syntax
// ("24h", "30s").
type Config struct {
	Port     int
	Store    StoreKind
	DBPath   string
	LogLevel slog.Level

	JWTSecret    string
	SessionTTL   time.Duration
	CookieSecure bool

	GitHubClientID     string
	GitHubClientSecret string
	GitHubCallbackURL  string

	OTPTTL        time.Duration
	StatsCacheTTL time.Duration

	EventDuration      time.Duration
	EventSweepSchedule string

	RateLimitRPS   float64
	RateLimitBurst int

	AllowedOrigins []string
}

// GitHubEnabled reports whether GitHub login is configured.
func (c Config) GitHubEnabled() bool {
	return c.GitHubClientID != "" && c.GitHubClientSecret != ""
}

// Load reads .env (if any) and the environment. Any malformed value is an
// error naming the offending key.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: reading .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function. Tests pass a map-backed
// lookup instead of touching the process environment.
func FromEnv(getenv func(string) string) (Config, error) {
	p := parser{getenv: getenv}

	cfg := Config{
		Port:               p.int("PORT", 8080),
		Store:              StoreKind(p.string("STORE", string(StoreSQLite))),
		DBPath:             p.string("DB_PATH", "data/greenpath.db"),
		LogLevel:           p.level("LOG_LEVEL", slog.LevelInfo),
		JWTSecret:          p.string("JWT_SECRET", ""),
		SessionTTL:         p.duration("SESSION_TTL", 24*time.Hour),
		CookieSecure:       p.bool("COOKIE_SECURE", false),
		GitHubClientID:     p.string("GITHUB_CLIENT_ID", ""),
		GitHubClientSecret: p.string("GITHUB_CLIENT_SECRET", ""),
		GitHubCallbackURL:  p.string("GITHUB_CALLBACK_URL", ""),
		OTPTTL:             p.duration("OTP_TTL", 10*time.Minute),
		StatsCacheTTL:      p.duration("STATS_CACHE_TTL", 30*time.Second),
		EventDuration:      p.duration("EVENT_DURATION", 4*time.Hour),
		EventSweepSchedule: p.string("EVENT_SWEEP_SCHEDULE", "@every 1m"),
		RateLimitRPS:       p.float("RATE_LIMIT_RPS", 5),
		RateLimitBurst:     p.int("RATE_LIMIT_BURST", 10),
		AllowedOrigins:     p.list("ALLOWED_ORIGINS"),
	}

	if cfg.Store != StoreSQLite && cfg.Store != StoreMemory {
		p.fail("STORE", fmt.Errorf("must be %q or %q", StoreSQLite, StoreMemory))
	}
	if len(cfg.JWTSecret) < 16 {
		p.fail("JWT_SECRET", errors.New("must be set and at least 16 characters"))
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		p.fail("PORT", errors.New("must be between 1 and 65535"))
	}
	if cfg.RateLimitRPS <= 0 {
		p.fail("RATE_LIMIT_RPS", errors.New("must be positive"))
	}
	if cfg.GitHubCallbackURL == "" {
		cfg.GitHubCallbackURL = fmt.Sprintf("http://localhost:%d/auth/github/callback", cfg.Port)
	}

	if err := errors.Join(p.errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// parser collects every bad key instead of stopping at the first, so one
// failed start reports all of them.
type parser struct {
	getenv func(string) string
	errs   []error
}

func (p *parser) fail(key string, err error) {
	p.errs = append(p.errs, fmt.Errorf("config: %s: %w", key, err))
}

func (p *parser) string(key, def string) string {
	if v := strings.TrimSpace(p.getenv(key)); v != "" {
		return v
	}
	return def
}

func (p *parser) int(key string, def int) int {
	v := p.getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, err)
		return def
	}
	return n
}

func (p *parser) float(key string, def float64) float64 {
	v := p.getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(key, err)
		return def
	}
	return f
}

func (p *parser) bool(key string, def bool) bool {
	v := p.getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, err)
		return def
	}
	return b
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v := p.getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, err)
		return def
	}
	if d <= 0 {
		p.fail(key, errors.New("must be positive"))
		return def
	}
	return d
}

func (p *parser) level(key string, def slog.Level) slog.Level {
	v := p.getenv(key)
	if v == "" {
		return def
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(v)); err != nil {
		p.fail(key, err)
		return def
	}
	return l
}

func (p *parser) list(key string) []string {
	var out []string
	for _, part := range strings.Split(p.getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
