package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("APP_JWT_SECRET", "")
	path := writeConfig(t, "server:\n  port: 9000\n")

	_, err := LoadFrom(path)
	assert.ErrorIs(t, err, ErrMissingJWTSecret)
}

func TestLoadDefaultsAndEnv(t *testing.T) {
	t.Setenv("APP_JWT_SECRET", "s3cret")
	t.Setenv("APP_UPLOAD_MAX_BYTES", "1024")
	path := writeConfig(t, "server:\n  port: 9000\n")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, ":9000", cfg.Addr())
	assert.Equal(t, "s3cret", cfg.JWT.Secret)
	assert.Equal(t, 7*24*time.Hour, cfg.JWT.TTL)
	assert.Equal(t, time.Hour, cfg.Auth.ResetTTL)
	assert.Equal(t, int64(1024), cfg.Upload.MaxBytes)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
}

func TestValidateRejectsUnknownDriver(t *testing.T) {
	t.Setenv("APP_JWT_SECRET", "s3cret")
	path := writeConfig(t, "database:\n  driver: mysql\n")

	_, err := LoadFrom(path)
	assert.Error(t, err)
}
