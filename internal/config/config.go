// Package config provides centralized configuration loaded from environment
// variables. Shared by cmd/scheduler and cmd/schedctl.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Config struct — populated from environment variables
// --------------------------------------------------------------------------

type Config struct {
	// Database
	DatabaseURL    string
	DBPoolMinConns int
	DBPoolMaxConns int
	DBPoolMaxLife  time.Duration
	DBCallTimeout  time.Duration

	// Redis (event bus)
	RedisURL    string
	EventStream string

	// Scheduler tuning
	SafetyTimeout    time.Duration // max wait even absent notifications
	GraceWindow      time.Duration // claim rows due within now+grace
	SmallLead        time.Duration // wake slightly before the next due time
	NearHorizon      time.Duration // trigger notifies only for rows this close
	BatchLimit       int           // max rows claimed per dispatch
	MaxPublishRetry  int           // dead-letter after this many publish failures
	TransientBackoff time.Duration // initial backoff after a transient error
	MaxBackoff       time.Duration

	// Populator defaults
	FallbackOffsets []int // minutes before start, used when no tier resolves
	DefaultDuration time.Duration

	// Admin API server
	APIHost     string
	APIPort     int
	Environment string // development, staging, production

	// CORS
	CORSAllowOrigins []string

	// Rate limiting
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	dbURL := envOr("DATABASE_URL", envOr("POSTGRES_URL", ""))
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL or POSTGRES_URL must be set")
	}

	return &Config{
		DatabaseURL:    dbURL,
		DBPoolMinConns: envInt("DB_POOL_MIN_CONNS", 2),
		DBPoolMaxConns: envInt("DB_POOL_MAX_CONNS", 10),
		DBPoolMaxLife:  time.Duration(envInt("DB_POOL_MAX_LIFE_MINUTES", 30)) * time.Minute,
		DBCallTimeout:  envDur("DB_CALL_TIMEOUT", 5*time.Second),

		RedisURL:    envOr("REDIS_URL", "redis://localhost:6379/0"),
		EventStream: envOr("EVENT_STREAM", "questboard.schedule"),

		SafetyTimeout:    envDur("SCHED_SAFETY_TIMEOUT", 300*time.Second),
		GraceWindow:      envDur("SCHED_GRACE_WINDOW", 60*time.Second),
		SmallLead:        envDur("SCHED_SMALL_LEAD", 10*time.Second),
		NearHorizon:      envDur("SCHED_NEAR_HORIZON", 10*time.Minute),
		BatchLimit:       envInt("SCHED_BATCH_LIMIT", 20),
		MaxPublishRetry:  envInt("SCHED_MAX_PUBLISH_RETRY", 5),
		TransientBackoff: envDur("SCHED_TRANSIENT_BACKOFF", 1*time.Second),
		MaxBackoff:       envDur("SCHED_MAX_BACKOFF", 60*time.Second),

		FallbackOffsets: envInts("REMINDER_FALLBACK_OFFSETS", []int{60, 15}),
		DefaultDuration: envDur("GAME_DEFAULT_DURATION", 120*time.Minute),

		APIHost:     envOr("API_HOST", "0.0.0.0"),
		APIPort:     envInt("API_PORT", envInt("PORT", 8000)),
		Environment: envOr("ENVIRONMENT", "development"),

		CORSAllowOrigins: envList("CORS_ALLOW_ORIGINS", []string{
			"http://localhost:3000",
		}),

		RateLimitEnabled:  envBool("RATE_LIMIT_ENABLED", true),
		RateLimitRequests: envInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:   time.Duration(envInt("RATE_LIMIT_WINDOW", 60)) * time.Second,
	}, nil
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// --------------------------------------------------------------------------
// Env helpers
// --------------------------------------------------------------------------

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

func envDur(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}

func envInts(key string, fallback []int) []int {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]int, 0, len(parts))
		for _, p := range parts {
			if n, err := strconv.Atoi(strings.TrimSpace(p)); err == nil {
				result = append(result, n)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
