package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func secureSecret() string { return strings.Repeat("s", 32) }

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8006", cfg.Server.Port)
	assert.Equal(t, 10, cfg.Quota.RegionLimit)
	assert.Equal(t, 500, cfg.Quota.HostLimit)
	assert.Equal(t, 80.0, cfg.Quota.WarningThreshold)
	assert.Equal(t, 5, cfg.Alloc.MaxConflictRetries)
	assert.Equal(t, 30, cfg.Reservation.DefaultTTLMinutes)
	assert.Equal(t, 1440, cfg.Reservation.MaxTTLMinutes)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("QUOTA_REGION_LIMIT", "3")
	t.Setenv("QUOTA_WARNING_THRESHOLD", "90.5")
	t.Setenv("ALLOC_MAX_CONFLICT_RETRIES", "7")

	cfg := Load()
	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, 3, cfg.Quota.RegionLimit)
	assert.Equal(t, 90.5, cfg.Quota.WarningThreshold)
	assert.Equal(t, 7, cfg.Alloc.MaxConflictRetries)
}

func TestLoad_BadIntFallsBackToDefault(t *testing.T) {
	t.Setenv("QUOTA_HOST_LIMIT", "lots")

	cfg := Load()
	assert.Equal(t, 500, cfg.Quota.HostLimit)
}

func TestValidate_RejectsInsecureSecrets(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "")
	t.Setenv("INTERNAL_SECRET", "")
	cfg := Load()
	assert.Error(t, cfg.Validate())

	t.Setenv("JWT_SECRET_KEY", "your-secret-key-change-in-production")
	t.Setenv("INTERNAL_SECRET", secureSecret())
	cfg = Load()
	assert.Error(t, cfg.Validate())

	t.Setenv("JWT_SECRET_KEY", "short")
	cfg = Load()
	assert.Error(t, cfg.Validate())
}

func TestValidate_AcceptsSecureConfig(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", secureSecret())
	t.Setenv("INTERNAL_SECRET", secureSecret())

	cfg := Load()
	require.NoError(t, cfg.Validate())
}

func TestValidate_QuotaBounds(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", secureSecret())
	t.Setenv("INTERNAL_SECRET", secureSecret())
	t.Setenv("QUOTA_REGION_LIMIT", "0")

	cfg := Load()
	assert.Error(t, cfg.Validate())
}

func TestDatabaseConfig_DSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: "5432", User: "u", Password: "p", DBName: "ipam", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@db:5432/ipam?sslmode=disable", c.DSN())
}
