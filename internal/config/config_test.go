package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("POSTGRES_URL", "")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/questboard")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 300*time.Second, cfg.SafetyTimeout)
	assert.Equal(t, 60*time.Second, cfg.GraceWindow)
	assert.Equal(t, 10*time.Second, cfg.SmallLead)
	assert.Equal(t, 10*time.Minute, cfg.NearHorizon)
	assert.Equal(t, 20, cfg.BatchLimit)
	assert.Equal(t, 5, cfg.MaxPublishRetry)
	assert.Equal(t, []int{60, 15}, cfg.FallbackOffsets)
	assert.Equal(t, 120*time.Minute, cfg.DefaultDuration)
	assert.Equal(t, "questboard.schedule", cfg.EventStream)
	assert.Equal(t, 8000, cfg.APIPort)
	assert.False(t, cfg.IsProduction())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("POSTGRES_URL", "postgres://db:5432/questboard")
	t.Setenv("SCHED_SAFETY_TIMEOUT", "2m")
	t.Setenv("SCHED_BATCH_LIMIT", "50")
	t.Setenv("REMINDER_FALLBACK_OFFSETS", "1440, 60, 15")
	t.Setenv("GAME_DEFAULT_DURATION", "90m")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("CORS_ALLOW_ORIGINS", "https://questboard.gg, https://admin.questboard.gg")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://db:5432/questboard", cfg.DatabaseURL)
	assert.Equal(t, 2*time.Minute, cfg.SafetyTimeout)
	assert.Equal(t, 50, cfg.BatchLimit)
	assert.Equal(t, []int{1440, 60, 15}, cfg.FallbackOffsets)
	assert.Equal(t, 90*time.Minute, cfg.DefaultDuration)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, []string{"https://questboard.gg", "https://admin.questboard.gg"}, cfg.CORSAllowOrigins)
}

func TestLoadMalformedValuesFallBack(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/questboard")
	t.Setenv("SCHED_BATCH_LIMIT", "lots")
	t.Setenv("SCHED_SAFETY_TIMEOUT", "soon")
	t.Setenv("RATE_LIMIT_ENABLED", "maybe")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.BatchLimit)
	assert.Equal(t, 300*time.Second, cfg.SafetyTimeout)
	assert.True(t, cfg.RateLimitEnabled)
}
