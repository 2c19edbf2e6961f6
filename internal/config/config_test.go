package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"OPP_USER_ID", "OPP_DEBUG", "OPP_TRANS_TYPE", "PUBLIC_URL", "REDIS_DB", "DATABASE_DSN"} {
		t.Setenv(key, "")
	}

	cfg := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.False(t, cfg.EnvFileLoaded)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "http://localhost:8080", cfg.Server.PublicURL)
	assert.Equal(t, "capture", cfg.Gateway.TransactionType)
	assert.False(t, cfg.Gateway.Debug)
	assert.Equal(t, 10*time.Second, cfg.Gateway.HTTPTimeout)
	assert.Equal(t, 0, cfg.Redis.DB)
	assert.Empty(t, cfg.Database.DSN)
	assert.Equal(t, 3, cfg.Breaker.FailureThreshold)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("OPP_USER_ID", "user")
	t.Setenv("OPP_PASSWORD", "secret")
	t.Setenv("OPP_ENTITY_ID", "entity")
	t.Setenv("OPP_TRANS_TYPE", "auth")
	t.Setenv("OPP_DEBUG", "true")
	t.Setenv("OPP_HTTP_TIMEOUT", "3s")
	t.Setenv("PUBLIC_URL", "https://shop.example.com/")
	t.Setenv("REDIS_DB", "not-a-number")

	cfg := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Equal(t, "https://shop.example.com", cfg.Server.PublicURL)
	assert.Equal(t, 3*time.Second, cfg.Gateway.HTTPTimeout)
	assert.Equal(t, 0, cfg.Redis.DB, "invalid ints fall back to the default")

	creds := cfg.Credentials()
	assert.Equal(t, "user", creds.UserID)
	assert.Equal(t, "secret", creds.Password)
	assert.Equal(t, "entity", creds.EntityID)
	assert.False(t, creds.CaptureMode())
	assert.Equal(t, "https://test.oppwa.com", creds.BaseURL())
	require.NoError(t, cfg.Validate())
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("OPP_ENTITY_ID_FROM_FILE_TEST=ignored\nOPP_BRANDS=VISA AMEX\n"), 0o600))
	t.Setenv("OPP_BRANDS", "")
	// godotenv does not override variables that are already set, so clear it first.
	require.NoError(t, os.Unsetenv("OPP_BRANDS"))
	t.Cleanup(func() { _ = os.Unsetenv("OPP_ENTITY_ID_FROM_FILE_TEST") })

	cfg := Load(path)
	assert.True(t, cfg.EnvFileLoaded)
	assert.Equal(t, "VISA AMEX", cfg.Gateway.Brands)
}

func TestValidate(t *testing.T) {
	cfg := &Config{Gateway: GatewayConfig{TransactionType: "sale"}}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPP_USER_ID is required")
	assert.Contains(t, err.Error(), "OPP_PASSWORD is required")
	assert.Contains(t, err.Error(), "OPP_ENTITY_ID is required")
	assert.Contains(t, err.Error(), "OPP_TRANS_TYPE")
}
