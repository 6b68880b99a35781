package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNew_Defaults(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("ASSIGNMENT_LOCK_TTL", "45s")
	t.Setenv("ASSIGNMENT_SWEEP_ON_TASK_LOAD", "false")
	t.Setenv("WORKFLOW_CAS_RETRIES", "5")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.local, http://b.local,")

	cfg := New()

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 45*time.Second, cfg.Assignment.LockTTL)
	assert.False(t, cfg.Assignment.SweepOnTaskLoad)
	assert.Equal(t, 5, cfg.Assignment.CASRetries)
	assert.Equal(t, []string{"http://a.local", "http://b.local"}, cfg.Server.AllowedOrigins)
}

func TestNew_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("REDIS_DB", "not-a-number")
	t.Setenv("DB_AUTO_MIGRATE", "maybe")
	t.Setenv("JWT_ACCESS_TTL", "forever")

	cfg := New()

	assert.Equal(t, 0, cfg.Redis.DB)
	assert.True(t, cfg.Postgres.AutoMigrate)
	assert.Equal(t, 24*time.Hour, cfg.JWT.AccessTokenTTL)
}
