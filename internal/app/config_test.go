package app

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backlog-dim/backlog-dim/internal/rbac"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, 60*time.Second, cfg.RBACCacheTTL)
	assert.Equal(t, CacheBackendMemory, cfg.RBACCacheBackend)
	assert.Equal(t, "backlog_session", cfg.SessionCookie)
	assert.False(t, cfg.AuditAsync)
	assert.False(t, cfg.RateLimitTrustProxy)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("RBAC_CACHE_BACKEND", "redis")
	t.Setenv("RBAC_CACHE_TTL", "15s")
	t.Setenv("AUDIT_ASYNC", "true")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "30")
	t.Setenv("RATE_LIMIT_TRUST_PROXY", "true")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, CacheBackendRedis, cfg.RBACCacheBackend)
	assert.Equal(t, 15*time.Second, cfg.RBACCacheTTL)
	assert.True(t, cfg.AuditAsync)
	assert.Equal(t, 30, cfg.RateLimitPerMinute)
	assert.True(t, cfg.RateLimitTrustProxy)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	cases := map[string]map[string]string{
		"unknown backend": {"RBAC_CACHE_BACKEND": "memcached"},
		"zero ttl":        {"RBAC_CACHE_TTL": "0s"},
		"negative rate":   {"RATE_LIMIT_PER_MINUTE": "-1"},
		"malformed ttl":   {"RBAC_CACHE_TTL": "soon"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}

func TestNewPermissionCache(t *testing.T) {
	cfg := &Config{RBACCacheBackend: CacheBackendMemory, RBACCacheTTL: time.Minute}
	cache, err := NewPermissionCache(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &rbac.MemoryCache{}, cache)

	cfg.RBACCacheBackend = CacheBackendRedis
	_, err = NewPermissionCache(cfg, nil)
	assert.Error(t, err)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache, err = NewPermissionCache(cfg, client)
	require.NoError(t, err)
	assert.IsType(t, &rbac.RedisCache{}, cache)

	cfg.RBACCacheBackend = CacheBackendMemory
	cache, err = NewPermissionCache(cfg, client)
	require.NoError(t, err)
	assert.IsType(t, &rbac.BroadcastCache{}, cache)
}
