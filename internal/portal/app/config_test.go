package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, "dev", cfg.Env)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, 10*time.Second, cfg.ShutdownGracePeriod)
	require.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	require.Equal(t, 30*24*time.Hour, cfg.RefreshTokenTTL)
	require.Equal(t, "sqlite", cfg.DatabaseDriver)
	require.Equal(t, "local", cfg.StorageBackend)
	require.Equal(t, "Australia/Sydney", cfg.CalendarTimezone)
	require.True(t, cfg.SecureCookies)
	require.EqualValues(t, 25<<20, cfg.MaxUploadBytes)
	require.Empty(t, cfg.CORSAllowedOrigins)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PORTAL_PORT", "9090")
	t.Setenv("PORTAL_ACCESS_TOKEN_TTL", "5")
	t.Setenv("PORTAL_SESSION_TTL", "90m")
	t.Setenv("PORTAL_STORAGE_BACKEND", "S3")
	t.Setenv("PORTAL_STORAGE_S3_BUCKET", "firm-docs")
	t.Setenv("PORTAL_CORS_ALLOWED_ORIGINS", "https://portal.example, https://admin.example")
	t.Setenv("PORTAL_SECURE_COOKIES", "false")
	t.Setenv("PORTAL_DOCUMENT_KEY", "master-secret")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Port)
	require.Equal(t, 5*time.Minute, cfg.AccessTokenTTL)
	require.Equal(t, 90*time.Minute, cfg.SessionTTL)
	require.Equal(t, "s3", cfg.StorageBackend)
	require.Equal(t, "firm-docs", cfg.S3Bucket)
	require.Equal(t, []string{"https://portal.example", "https://admin.example"}, cfg.CORSAllowedOrigins)
	require.False(t, cfg.SecureCookies)
	require.Equal(t, "master-secret", cfg.DocumentKey)
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	yaml := `
env: prod
log:
  level: debug
database:
  driver: postgres
  url: postgres://portal@db/portal
calendar:
  timezone: Australia/Perth
cors:
  allowed_origins:
    - https://portal.example
`
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv(ConfigFileEnv, path)
	t.Setenv("PORTAL_ENV", "staging")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, "staging", cfg.Env, "env overrides the file")
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, "postgres", cfg.DatabaseDriver)
	require.Equal(t, "postgres://portal@db/portal", cfg.DatabaseURL)
	require.Equal(t, "Australia/Perth", cfg.CalendarTimezone)
	require.Equal(t, []string{"https://portal.example"}, cfg.CORSAllowedOrigins)
}

func TestLoadConfigReadsPortalYAML(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "portal.yaml"), []byte("port: 7070\n"), 0o600))

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, 7070, cfg.Port)
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(ConfigFileEnv, filepath.Join(t.TempDir(), "nope.yaml"))

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"postgres without url", map[string]string{"PORTAL_DATABASE_DRIVER": "postgres"}},
		{"unknown driver", map[string]string{"PORTAL_DATABASE_DRIVER": "mysql"}},
		{"s3 without bucket", map[string]string{"PORTAL_STORAGE_BACKEND": "s3"}},
		{"unknown backend", map[string]string{"PORTAL_STORAGE_BACKEND": "gcs"}},
		{"unknown mail mode", map[string]string{"PORTAL_MAIL_MODE": "carrier-pigeon"}},
		{"port out of range", map[string]string{"PORTAL_PORT": "70000"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			require.Error(t, err)
		})
	}
}
