package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{"HTTP_ADDR", "DATABASE_DSN", "CACHE_DRIVER", "NOTIFY_ROLES", "LOG_LEVEL", "CACHE_TTL_COMPLAINT"} {
		t.Setenv(k, "")
	}

	cfg, err := FromEnv()

	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "memory", cfg.Cache.Driver)
	assert.Equal(t, DefaultCacheTTL.ByProtocol, cfg.Cache.TTL.ByProtocol)
	assert.Equal(t, 3*time.Minute, cfg.Cache.TTL.StatusList)
	assert.Equal(t, 15*time.Minute, cfg.Cache.TTL.Stats)
	assert.Equal(t, []string{"admin", "manager"}, cfg.Notify.Roles)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Contains(t, cfg.Database.DSN, "dbname=denuncia")
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("DATABASE_DSN", "postgres://u:p@db:5432/x")
	t.Setenv("CACHE_DRIVER", "Redis")
	t.Setenv("CACHE_TTL_PAGED", "90s")
	t.Setenv("NOTIFY_ROLES", " admin , analyst ,,")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("ATTACHMENT_S3_PATH_STYLE", "true")

	cfg, err := FromEnv()

	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@db:5432/x", cfg.Database.DSN)
	assert.Equal(t, "redis", cfg.Cache.Driver)
	assert.Equal(t, 90*time.Second, cfg.Cache.TTL.Paged)
	assert.Equal(t, []string{"admin", "analyst"}, cfg.Notify.Roles)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.True(t, cfg.Attachments.S3PathStyle)
}

func TestFromEnv_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("CACHE_TTL_STATS", "soon")
	t.Setenv("REDIS_DB", "-1")
	t.Setenv("CACHE_DRIVER", "memcached")
	t.Setenv("LOG_LEVEL", "loud")

	cfg, err := FromEnv()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "CACHE_TTL_STATS")
	assert.Contains(t, err.Error(), "REDIS_DB")
	assert.Contains(t, err.Error(), "CACHE_DRIVER")
	assert.Contains(t, err.Error(), "LOG_LEVEL")
	assert.Equal(t, DefaultCacheTTL.Stats, cfg.Cache.TTL.Stats)
	assert.Equal(t, 0, cfg.Redis.DB)
	assert.Equal(t, "memory", cfg.Cache.Driver)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}
