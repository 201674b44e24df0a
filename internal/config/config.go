// Package config loads service configuration from defaults, an optional YAML
// file, .env files and environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"urbanflow/internal/geocode"
	"urbanflow/internal/ztm"
)

// Config holds application configuration.
type Config struct {
	Port        int    `yaml:"port" validate:"gt=0,lte=65535"`
	DatabaseURL string `yaml:"database_url" validate:"required"` // SQLite path or postgres:// URL

	StopsURL          string        `yaml:"stops_url" validate:"required,url"`
	DeparturesURL     string        `yaml:"departures_url" validate:"required,url"`
	AlertsURL         string        `yaml:"alerts_url" validate:"omitempty,url"` // empty disables alerts
	AlertsInterval    time.Duration `yaml:"alerts_interval" validate:"gte=0"`
	UserAgent         string        `yaml:"user_agent"`
	GeocoderURL       string        `yaml:"geocoder_url" validate:"omitempty,url"` // empty disables address search
	CatalogTimeout    time.Duration `yaml:"catalog_timeout" validate:"gt=0"`
	DeparturesTimeout time.Duration `yaml:"departures_timeout" validate:"gt=0"`

	CacheTTL   time.Duration `yaml:"cache_ttl" validate:"gt=0"`
	ServeStale bool          `yaml:"serve_stale"`
	WarmCache  bool          `yaml:"warm_cache"`
	Timezone   string        `yaml:"timezone" validate:"required"`

	TokenSecret string        `yaml:"token_secret"` // HMAC key for bearer tokens
	TokenTTL    time.Duration `yaml:"token_ttl" validate:"gt=0"`
	AdminToken  string        `yaml:"admin_token"` // empty disables admin endpoints

	CORSOrigins    []string      `yaml:"cors_origins"`
	StreamInterval time.Duration `yaml:"stream_interval" validate:"gt=0"`
	LogLevel       string        `yaml:"log_level" validate:"oneof=debug info warn error"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Port:              3000,
		DatabaseURL:       "./urbanflow.db",
		StopsURL:          ztm.DefaultStopsURL,
		DeparturesURL:     ztm.DefaultDeparturesURL,
		AlertsInterval:    60 * time.Second,
		UserAgent:         "UrbanFlow/1.0",
		GeocoderURL:       geocode.DefaultURL,
		CatalogTimeout:    30 * time.Second,
		DeparturesTimeout: 10 * time.Second,
		CacheTTL:          24 * time.Hour,
		WarmCache:         true,
		Timezone:          "Europe/Warsaw",
		TokenTTL:          24 * time.Hour,
		CORSOrigins:       []string{"http://localhost:5173"},
		StreamInterval:    30 * time.Second,
		LogLevel:          "info",
	}
}

// Load builds the configuration. envFiles are loaded with godotenv and do not
// override variables already set in the environment; with no envFiles a
// ".env" in the working directory is used if present.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	} else if err := godotenv.Load(envFiles...); err != nil {
		return nil, fmt.Errorf("load env files: %w", err)
	}

	cfg := Default()
	if path := os.Getenv("URBANFLOW_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = envInt("URBANFLOW_PORT", c.Port)
	c.DatabaseURL = envStr("URBANFLOW_DATABASE_URL", c.DatabaseURL)
	c.StopsURL = envStr("URBANFLOW_STOPS_URL", c.StopsURL)
	c.DeparturesURL = envStr("URBANFLOW_DEPARTURES_URL", c.DeparturesURL)
	c.AlertsURL = envStrAllowEmpty("URBANFLOW_ALERTS_URL", c.AlertsURL)
	c.AlertsInterval = envDuration("URBANFLOW_ALERTS_INTERVAL", c.AlertsInterval)
	c.UserAgent = envStr("URBANFLOW_USER_AGENT", c.UserAgent)
	c.GeocoderURL = envStrAllowEmpty("URBANFLOW_GEOCODER_URL", c.GeocoderURL)
	c.CatalogTimeout = envDuration("URBANFLOW_CATALOG_TIMEOUT", c.CatalogTimeout)
	c.DeparturesTimeout = envDuration("URBANFLOW_DEPARTURES_TIMEOUT", c.DeparturesTimeout)
	c.CacheTTL = envDuration("URBANFLOW_CACHE_TTL", c.CacheTTL)
	c.ServeStale = envBool("URBANFLOW_SERVE_STALE", c.ServeStale)
	c.WarmCache = envBool("URBANFLOW_WARM_CACHE", c.WarmCache)
	c.Timezone = envStr("URBANFLOW_TIMEZONE", c.Timezone)
	c.TokenSecret = envStr("URBANFLOW_TOKEN_SECRET", c.TokenSecret)
	c.TokenTTL = envDuration("URBANFLOW_TOKEN_TTL", c.TokenTTL)
	c.AdminToken = envStrAllowEmpty("URBANFLOW_ADMIN_TOKEN", c.AdminToken)
	c.CORSOrigins = envList("URBANFLOW_CORS_ORIGINS", c.CORSOrigins)
	c.StreamInterval = envDuration("URBANFLOW_STREAM_INTERVAL", c.StreamInterval)
	c.LogLevel = strings.ToLower(envStr("URBANFLOW_LOG_LEVEL", c.LogLevel))
}

// Validate checks field constraints and that the timezone exists.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid config: timezone %q: %w", c.Timezone, err)
	}
	return nil
}

// Location returns the configured timezone. Validate has already checked it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// SlogLevel maps LogLevel to a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envStrAllowEmpty honours a variable that is set but empty, for keys where
// an empty value switches a feature off.
func envStrAllowEmpty(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(v)
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// envList reads a comma-separated list, dropping blank entries.
func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
