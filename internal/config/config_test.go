package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, 10, cfg.Server.LoginAttempts)
	assert.Equal(t, 10*time.Minute, cfg.Cache.PermissionTTL)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
	assert.False(t, cfg.Storage.S3.Enabled())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("JWT_TTL", "15m")
	t.Setenv("LOGIN_WINDOW", "5m")
	t.Setenv("S3_BUCKET_NAME", "media")
	t.Setenv("S3_ACCESS_KEY", "key")
	t.Setenv("S3_SECRET_KEY", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 15*time.Minute, cfg.JWT.TTL)
	assert.Equal(t, 5*time.Minute, cfg.Server.LoginWindow)
	assert.True(t, cfg.Storage.S3.Enabled())
}

func TestLoadRejectsEmptySecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsMalformedDuration(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("JWT_TTL", "forever")
	_, err := Load()
	assert.Error(t, err)
}

func TestDSN(t *testing.T) {
	d := LoadTestConfig().Database
	assert.Equal(t, "host=localhost user=test_user password=test_password dbname=cms0_test port=5432 sslmode=disable", d.DSN())
}
