package config

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("PG_HOST", "localhost")
	t.Setenv("PG_USER", "brainbolt")
	t.Setenv("PG_PASSWORD", "secret")
	t.Setenv("PG_DATABASE", "brainbolt")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("JWT_SECRET", "test-secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "brainbolt", cfg.Name)
	assert.Equal(t, StateBackendRedis, cfg.State.Backend)
	assert.Equal(t, 5, cfg.Adaptive.DefaultDifficulty)
	assert.Equal(t, 0.7, cfg.Adaptive.Threshold)
	assert.Equal(t, time.Second, cfg.RateLimit.Window)
	assert.Equal(t, 5*time.Minute, cfg.Idempotency.TTL)
	assert.Equal(t, 5, cfg.Leaderboard.StreamTopN)
	assert.Equal(t, []string{"http://localhost:3000", "http://127.0.0.1:3000"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "host=localhost port=5432 user=brainbolt password=secret dbname=brainbolt sslmode=disable", cfg.Postgres.DSN())
}

func TestLoadMissingRequired(t *testing.T) {
	setRequired(t)
	t.Setenv("JWT_SECRET", "")

	_, err := Load(context.Background())
	assert.Error(t, err)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string][2]string{
		"unknown backend":    {"STATE_BACKEND", "memcached"},
		"default out of box": {"ADAPTIVE_DEFAULT_DIFFICULTY", "11"},
		"zero window":        {"RATE_LIMIT_WINDOW", "0s"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			setRequired(t)
			t.Setenv(kv[0], kv[1])
			_, err := Load(context.Background())
			assert.Error(t, err)
		})
	}
}

func TestLoadPostgresBackend(t *testing.T) {
	setRequired(t)
	t.Setenv("STATE_BACKEND", "postgres")
	t.Setenv("RATE_LIMIT_WINDOW", "250ms")

	cfg, err := Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateBackendPostgres, cfg.State.Backend)
	assert.Equal(t, 250*time.Millisecond, cfg.RateLimit.Window)
}

func TestLoadPostgresOnly(t *testing.T) {
	t.Setenv("PG_HOST", "db")
	t.Setenv("PG_USER", "u")
	t.Setenv("PG_PASSWORD", "p")
	t.Setenv("PG_DATABASE", "d")
	t.Setenv("PG_PORT", "6543")

	pg, err := LoadPostgres()
	require.NoError(t, err)
	assert.Equal(t, 6543, pg.Port)
	assert.False(t, pg.AutoMigrate)
}

func TestLoadRedisOnly(t *testing.T) {
	t.Setenv("REDIS_ADDR", "cache:6379")
	t.Setenv("REDIS_DB", "2")

	r, err := LoadRedis()
	require.NoError(t, err)
	assert.Equal(t, "cache:6379", r.Addr)
	assert.Equal(t, 2, r.DB)
	assert.Equal(t, 20, r.PoolSize)
}

func TestLoadRedisRequiresAddr(t *testing.T) {
	t.Setenv("REDIS_ADDR", "")

	_, err := LoadRedis()
	assert.Error(t, err)
}
