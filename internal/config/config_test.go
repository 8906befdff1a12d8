package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 7411, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "sqlite", cfg.Storage.Engine)
	assert.Equal(t, 10000, cfg.Model.MaxEvents)
	assert.Equal(t, 60*time.Second, cfg.Model.CacheTTL.Std())
	assert.Equal(t, 60*time.Second, cfg.Model.AuditInterval.Std())
	assert.Equal(t, 5, cfg.Mirror.MaxFailures)
	assert.Equal(t, 50.0, cfg.Security.RateLimit)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SCOUTDB_PORT", "9000")
	t.Setenv("SCOUTDB_STORAGE_ENGINE", "none")
	t.Setenv("SCOUTDB_CACHE_TTL", "5s")
	t.Setenv("SCOUTDB_API_TOKEN", "secret")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "none", cfg.Storage.Engine)
	assert.Equal(t, 5*time.Second, cfg.Model.CacheTTL.Std())
	assert.Equal(t, "secret", cfg.Security.APIToken)
}

func TestEnvUnparseableFallsBack(t *testing.T) {
	t.Setenv("SCOUTDB_PORT", "not-a-port")
	t.Setenv("SCOUTDB_CACHE_TTL", "soon")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7411, cfg.Server.Port)
	assert.Equal(t, 60*time.Second, cfg.Model.CacheTTL.Std())
}

func TestYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scoutdb.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 8080
storage:
  engine: postgres
  postgres_dsn: postgres://localhost/scoutdb
model:
  cache_ttl: 30s
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Storage.Engine)
	assert.Equal(t, 30*time.Second, cfg.Model.CacheTTL.Std())
	// Untouched sections keep their defaults.
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 10000, cfg.Model.MaxEvents)
}

func TestEnvBeatsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scoutdb.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 8080\n"), 0o644))
	t.Setenv("SCOUTDB_PORT", "9000")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
}

func TestValidation(t *testing.T) {
	t.Setenv("SCOUTDB_STORAGE_ENGINE", "etcd")
	_, err := Load("")
	assert.Error(t, err)
}

func TestValidationPostgresNeedsDSN(t *testing.T) {
	t.Setenv("SCOUTDB_STORAGE_ENGINE", "postgres")
	_, err := Load("")
	assert.Error(t, err)
}

func TestMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
