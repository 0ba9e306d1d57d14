package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 15*time.Minute, cfg.Cache.SearchTTL)
	assert.Equal(t, 5*time.Minute, cfg.Cache.SuggestionTTL)
	assert.Equal(t, 30*time.Minute, cfg.Cache.FilterTTL)
	assert.Equal(t, 5*time.Minute, cfg.Sweeper.Interval)
	assert.False(t, cfg.Search.SynonymsEnabled)
	assert.Equal(t, 10, cfg.Search.MaxKeywords)
	assert.Equal(t, "localhost:6379", cfg.Redis.RedisAddr())
}

func TestLoad_RedisAndSweepOverrides(t *testing.T) {
	t.Setenv("REDIS_HOST", "cache.internal")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("SWEEP_INTERVAL", "90s")
	t.Setenv("CACHE_TTL_SEARCH", "120")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "cache.internal:6380", cfg.Redis.RedisAddr())
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.Equal(t, 90*time.Second, cfg.Sweeper.Interval)
	assert.Equal(t, 2*time.Minute, cfg.Cache.SearchTTL)
}

func TestLoad_InvalidDurationFallsBackToDefault(t *testing.T) {
	t.Setenv("CACHE_TTL_FILTER", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, cfg.Cache.FilterTTL)
}

func TestLoad_RejectsNonPositiveSweepInterval(t *testing.T) {
	t.Setenv("SWEEP_INTERVAL", "0s")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_AllowedOrigins(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)

	t.Setenv("ALLOWED_ORIGINS", "https://forum.bjut.edu.cn, ,http://localhost:5173")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://forum.bjut.edu.cn", "http://localhost:5173"}, cfg.Server.AllowedOrigins)
}
