package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"urbanflow/internal/geocode"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, 24*time.Hour, cfg.CacheTTL)
	assert.Equal(t, 10*time.Second, cfg.DeparturesTimeout)
	assert.Equal(t, 30*time.Second, cfg.CatalogTimeout)
	assert.Equal(t, "Europe/Warsaw", cfg.Timezone)
	assert.Empty(t, cfg.AlertsURL)
	assert.False(t, cfg.ServeStale)
	assert.True(t, cfg.WarmCache)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("URBANFLOW_PORT", "8081")
	t.Setenv("URBANFLOW_CACHE_TTL", "1h")
	t.Setenv("URBANFLOW_SERVE_STALE", "true")
	t.Setenv("URBANFLOW_CORS_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("URBANFLOW_LOG_LEVEL", "DEBUG")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8081, cfg.Port)
	assert.Equal(t, time.Hour, cfg.CacheTTL)
	assert.True(t, cfg.ServeStale)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
}

func TestLoad_BadEnvValuesFallBack(t *testing.T) {
	t.Setenv("URBANFLOW_PORT", "not-a-number")
	t.Setenv("URBANFLOW_CACHE_TTL", "forever")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, 24*time.Hour, cfg.CacheTTL)
}

func TestLoad_YAMLFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "urbanflow.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: 9000
cache_ttl: 2h
departures_timeout: 5s
alerts_url: https://example.com/alerts.pb
cors_origins:
  - https://app.example
`), 0o644))

	t.Setenv("URBANFLOW_CONFIG", path)
	t.Setenv("URBANFLOW_PORT", "9100")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Port, "env wins over file")
	assert.Equal(t, 2*time.Hour, cfg.CacheTTL)
	assert.Equal(t, 5*time.Second, cfg.DeparturesTimeout)
	assert.Equal(t, "https://example.com/alerts.pb", cfg.AlertsURL)
	assert.Equal(t, []string{"https://app.example"}, cfg.CORSOrigins)
}

func TestLoad_EmptyEnvDisablesOptionalFeatures(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "urbanflow.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
alerts_url: https://example.com/alerts.pb
admin_token: from-file
`), 0o644))
	t.Setenv("URBANFLOW_CONFIG", path)
	t.Setenv("URBANFLOW_GEOCODER_URL", "")
	t.Setenv("URBANFLOW_ALERTS_URL", "")
	t.Setenv("URBANFLOW_ADMIN_TOKEN", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.GeocoderURL)
	assert.Empty(t, cfg.AlertsURL)
	assert.Empty(t, cfg.AdminToken)
}

func TestLoad_UnsetGeocoderURLKeepsDefault(t *testing.T) {
	t.Setenv("URBANFLOW_GEOCODER_URL", "")
	os.Unsetenv("URBANFLOW_GEOCODER_URL")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, geocode.DefaultURL, cfg.GeocoderURL)
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("URBANFLOW_ADMIN_TOKEN=from-dotenv\n"), 0o644))
	// Register for cleanup so godotenv's Setenv does not leak into other tests.
	t.Setenv("URBANFLOW_ADMIN_TOKEN", "")
	os.Unsetenv("URBANFLOW_ADMIN_TOKEN")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.AdminToken)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"port out of range", "URBANFLOW_PORT", "70000"},
		{"bad stops url", "URBANFLOW_STOPS_URL", "not a url"},
		{"bad geocoder url", "URBANFLOW_GEOCODER_URL", "nominatim"},
		{"bad log level", "URBANFLOW_LOG_LEVEL", "verbose"},
		{"unknown timezone", "URBANFLOW_TIMEZONE", "Mars/Olympus"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingEnvFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}
