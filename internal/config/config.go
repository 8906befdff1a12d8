// Package config provides configuration management for ScoutDB.
// Settings come from three layers with increasing precedence: built-in
// defaults, an optional YAML file, and environment variables with the
// SCOUTDB_ prefix.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML files can use "30s"-style values.
type Duration time.Duration

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// UnmarshalYAML parses a duration string like "60s" or "5m".
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration in "60s" form.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Config holds all configuration settings for the ScoutDB application.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Model    ModelConfig    `yaml:"model"`
	Mirror   MirrorConfig   `yaml:"mirror"`
	Security SecurityConfig `yaml:"security"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port int    `yaml:"port"` // Server port (default: 7411)
	Host string `yaml:"host"` // Server host (default: 127.0.0.1)
}

// StorageConfig selects the durable backing store.
type StorageConfig struct {
	Engine      string `yaml:"engine"`       // Storage engine: sqlite, postgres, none (default: sqlite)
	DataPath    string `yaml:"data_path"`    // SQLite data directory (default: ./data)
	PostgresDSN string `yaml:"postgres_dsn"` // Postgres connection string
}

// ModelConfig tunes the in-memory world model.
type ModelConfig struct {
	MaxEvents     int      `yaml:"max_events"`     // Change log ring cap (default: 10000)
	CacheTTL      Duration `yaml:"cache_ttl"`      // Query cache window (default: 60s)
	AuditInterval Duration `yaml:"audit_interval"` // Consistency check rate limit (default: 60s)
}

// MirrorConfig tunes the durable-mirror circuit breaker.
type MirrorConfig struct {
	MaxFailures  int      `yaml:"max_failures"`  // Consecutive failures to trip (default: 5)
	OpenTimeout  Duration `yaml:"open_timeout"`  // Open-state duration (default: 30s)
	WriteTimeout Duration `yaml:"write_timeout"` // Per-write bound (default: 5s)
}

// SecurityConfig contains authentication and rate-limit settings.
type SecurityConfig struct {
	APIToken  string  `yaml:"api_token"`  // Bearer token; empty disables auth
	RateLimit float64 `yaml:"rate_limit"` // Requests per second per server (default: 50)
	RateBurst int     `yaml:"rate_burst"` // Burst allowance (default: 100)
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 7411,
			Host: "127.0.0.1",
		},
		Storage: StorageConfig{
			Engine:   "sqlite",
			DataPath: "./data",
		},
		Model: ModelConfig{
			MaxEvents:     10000,
			CacheTTL:      Duration(60 * time.Second),
			AuditInterval: Duration(60 * time.Second),
		},
		Mirror: MirrorConfig{
			MaxFailures:  5,
			OpenTimeout:  Duration(30 * time.Second),
			WriteTimeout: Duration(5 * time.Second),
		},
		Security: SecurityConfig{
			RateLimit: 50,
			RateBurst: 100,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// non-empty), then SCOUTDB_ environment variables on top.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnvInt("SCOUTDB_PORT", c.Server.Port)
	c.Server.Host = getEnv("SCOUTDB_HOST", c.Server.Host)

	c.Storage.Engine = getEnv("SCOUTDB_STORAGE_ENGINE", c.Storage.Engine)
	c.Storage.DataPath = getEnv("SCOUTDB_DATA_PATH", c.Storage.DataPath)
	c.Storage.PostgresDSN = getEnv("SCOUTDB_POSTGRES_DSN", c.Storage.PostgresDSN)

	c.Model.MaxEvents = getEnvInt("SCOUTDB_MAX_EVENTS", c.Model.MaxEvents)
	c.Model.CacheTTL = getEnvDuration("SCOUTDB_CACHE_TTL", c.Model.CacheTTL)
	c.Model.AuditInterval = getEnvDuration("SCOUTDB_AUDIT_INTERVAL", c.Model.AuditInterval)

	c.Mirror.MaxFailures = getEnvInt("SCOUTDB_MIRROR_MAX_FAILURES", c.Mirror.MaxFailures)
	c.Mirror.OpenTimeout = getEnvDuration("SCOUTDB_MIRROR_OPEN_TIMEOUT", c.Mirror.OpenTimeout)
	c.Mirror.WriteTimeout = getEnvDuration("SCOUTDB_MIRROR_WRITE_TIMEOUT", c.Mirror.WriteTimeout)

	c.Security.APIToken = getEnv("SCOUTDB_API_TOKEN", c.Security.APIToken)
	c.Security.RateLimit = getEnvFloat("SCOUTDB_RATE_LIMIT", c.Security.RateLimit)
	c.Security.RateBurst = getEnvInt("SCOUTDB_RATE_BURST", c.Security.RateBurst)
}

// Validate rejects configurations that cannot serve.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid port %d", c.Server.Port)
	}
	switch c.Storage.Engine {
	case "sqlite", "postgres", "none":
	default:
		return fmt.Errorf("config: unknown storage engine %q", c.Storage.Engine)
	}
	if c.Storage.Engine == "postgres" && c.Storage.PostgresDSN == "" {
		return fmt.Errorf("config: postgres engine requires a DSN")
	}
	if c.Model.MaxEvents <= 0 {
		return fmt.Errorf("config: max_events must be positive, got %d", c.Model.MaxEvents)
	}
	if c.Security.RateLimit <= 0 {
		return fmt.Errorf("config: rate_limit must be positive, got %v", c.Security.RateLimit)
	}
	return nil
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default
// value. An unparseable value falls back to the default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat retrieves a float environment variable or returns a default
// value. An unparseable value falls back to the default.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable ("30s", "5m") or
// returns a default value. An unparseable value falls back to the default.
func getEnvDuration(key string, defaultValue Duration) Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return Duration(d)
		}
	}
	return defaultValue
}
