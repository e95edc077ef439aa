package app

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	iauth "github.com/savorahq/savora/internal/auth"
)

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join("testdata")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Server.LogLevel)

	require.Equal(t, "postgres", cfg.Database.Driver)
	require.Equal(t, "db.example.com", cfg.Database.Postgres.Host)
	require.Equal(t, 5433, cfg.Database.Postgres.Port)

	require.True(t, cfg.Cache.Redis.Enabled)
	require.Equal(t, "cache.example.com:6380", cfg.Cache.Redis.Address)
	require.Equal(t, 2, cfg.Cache.Redis.DB)
	require.True(t, cfg.Cache.Redis.TLS)
	require.Equal(t, 3*time.Second, cfg.Cache.Redis.Timeout)

	require.Equal(t, "jwt-secret", cfg.Auth.JWT.Secret)
	require.Equal(t, "savora-test", cfg.Auth.JWT.Issuer)
	require.Equal(t, 30*time.Minute, cfg.Auth.JWT.TTL)

	require.True(t, cfg.Realtime.Enabled)
	require.Equal(t, []string{"https://app.example.com"}, cfg.Realtime.AllowedOrigins)

	require.Equal(t, 14, cfg.Retention.NotificationDays)
	require.Equal(t, 60, cfg.Retention.OrderDays)
	require.Equal(t, "@hourly", cfg.Retention.Schedule)

	require.Equal(t, 50, cfg.RateLimit.MaxRequests)
	require.Equal(t, 30*time.Second, cfg.RateLimit.Window)
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 8000, cfg.Server.Port)
	require.Equal(t, "info", cfg.Server.LogLevel)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.False(t, cfg.Cache.Redis.Enabled)
	require.Equal(t, "savora", cfg.Auth.JWT.Issuer)
	require.Equal(t, 15*time.Minute, cfg.Auth.JWT.TTL)
	require.True(t, cfg.Realtime.Enabled)
	require.Equal(t, 30, cfg.Retention.NotificationDays)
	require.Equal(t, 90, cfg.Retention.OrderDays)
	require.Equal(t, 100, cfg.RateLimit.MaxRequests)
	require.Equal(t, time.Minute, cfg.RateLimit.Window)
}

func TestConfigAdapters(t *testing.T) {
	cfg := Config{
		Auth: AuthConfig{JWT: JWTSettings{
			Secret: " secret ",
			Issuer: "issuer",
			TTL:    30 * time.Minute,
		}},
		Cache: CacheConfig{Redis: RedisCacheConfig{
			Address:  " cache:6379 ",
			Username: "user",
			Password: "pass",
			DB:       1,
			TLS:      true,
			Timeout:  5 * time.Second,
		}},
	}

	jwtCfg := cfg.Auth.JWTServiceConfig()
	require.Equal(t, iauth.JWTConfig{
		Secret:         "secret",
		Issuer:         "issuer",
		AccessTokenTTL: 30 * time.Minute,
	}, jwtCfg)

	redisCfg := cfg.Cache.RedisClientConfig()
	require.Equal(t, "cache:6379", redisCfg.Address)
	require.Equal(t, "user", redisCfg.Username)
	require.Equal(t, "pass", redisCfg.Password)
	require.Equal(t, 1, redisCfg.DB)
	require.True(t, redisCfg.TLS)
	require.Equal(t, 5*time.Second, redisCfg.Timeout)
}
