package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg := FromEnv()

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 5, cfg.RateLimit.MaxAttempts)
	assert.Equal(t, 15*time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, 15*time.Minute, cfg.RateLimit.BlockDuration)
	assert.Equal(t, 24*time.Hour, cfg.RateLimit.Retention)
	assert.False(t, cfg.RateLimit.ResetOnSuccess)
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 6, cfg.TOTP.Digits)
	assert.Equal(t, 30*time.Second, cfg.TOTP.Period)
	assert.Equal(t, uint(1), cfg.TOTP.Skew)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("BUREAU_ADDR", ":9090")
	t.Setenv("RATE_LIMIT_MAX_ATTEMPTS", "3")
	t.Setenv("RATE_LIMIT_BLOCK_DURATION", "5m")
	t.Setenv("RATE_LIMIT_RESET_ON_SUCCESS", "true")
	t.Setenv("SESSION_TOKEN_TTL", "1h")

	cfg := FromEnv()

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, 3, cfg.RateLimit.MaxAttempts)
	assert.Equal(t, 5*time.Minute, cfg.RateLimit.BlockDuration)
	assert.True(t, cfg.RateLimit.ResetOnSuccess)
	assert.Equal(t, time.Hour, cfg.SessionTTL)
}

func TestFromEnvRejectsGarbage(t *testing.T) {
	t.Setenv("RATE_LIMIT_MAX_ATTEMPTS", "-1")
	t.Setenv("RATE_LIMIT_WINDOW", "not-a-duration")

	cfg := FromEnv()

	assert.Equal(t, 5, cfg.RateLimit.MaxAttempts, "negative values fall back to default")
	assert.Equal(t, 15*time.Minute, cfg.RateLimit.Window, "unparseable durations fall back to default")
}
