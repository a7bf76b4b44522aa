package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Listen, cfg.Listen)
	assert.Equal(t, 5, cfg.PriorityLimit)
	assert.Equal(t, 30, cfg.StressHorizonDays)
	assert.Equal(t, 1440, cfg.DefaultReminderMinutes)
	assert.False(t, cfg.ICSAllowPrivateHosts)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoadNormalizesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen: ":9000"
log_level: debug
store:
  driver: Redis
  redis_addr: "redis:6379"
priority_limit: 10
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Listen)
	assert.Equal(t, "DEBUG", cfg.LogLevel)
	assert.Equal(t, DriverRedis, cfg.Store.Driver)
	assert.Equal(t, "redis:6379", cfg.Store.RedisAddr)
	assert.Equal(t, "studyplan", cfg.Store.RedisPrefix)
	assert.Equal(t, 10, cfg.PriorityLimit)
	assert.Equal(t, 30, cfg.StressHorizonDays)
	assert.Equal(t, "* * * * *", cfg.ReminderCron)
}

func TestNormalizeRejectsUnknownValues(t *testing.T) {
	cfg := &Config{LogLevel: "verbose", LogFormat: "xml", Store: StoreConfig{Driver: "mongo"}}
	cfg.Normalize()
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, DriverSQLite, cfg.Store.Driver)
}

func TestEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, Save(path, DefaultConfig()))

	t.Setenv(EnvListen, ":7000")
	t.Setenv(EnvStoreDriver, "memory")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Listen)
	assert.Equal(t, DriverMemory, cfg.Store.Driver)

	// overrides are not persisted
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), ":7000")
}

func TestDotEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(EnvSQLitePath+"=/data/plan.db\n"), 0o600))
	t.Setenv(EnvSQLitePath, "")
	os.Unsetenv(EnvSQLitePath)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/plan.db", cfg.Store.SQLitePath)
}

func TestLocation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timezone = "Europe/Berlin"
	assert.Equal(t, "Europe/Berlin", cfg.Location().String())

	cfg.Timezone = "Mars/Olympus"
	assert.Equal(t, time.UTC, cfg.Location())
}

func TestLoadEmptyPath(t *testing.T) {
	_, err := Load("")
	assert.Error(t, err)
}
