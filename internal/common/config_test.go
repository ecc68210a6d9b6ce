package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testEncryptionKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sentio.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8085, cfg.Server.Port)
	assert.Equal(t, 3, cfg.Scheduler.MaxConcurrentJobs)
	assert.Equal(t, 3, cfg.Scheduler.MaxAttempts)
	assert.Equal(t, "1s", cfg.Scheduler.TickInterval)
	assert.Equal(t, 300, cfg.Cache.TTLSeconds)
	assert.Equal(t, 100, cfg.Cache.MaxSize)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 30, cfg.Tokens.ExpiryBufferMinutes)
	assert.Equal(t, 7, cfg.Tokens.StaleAfterDays)
	assert.Equal(t, "0 3 * * *", cfg.Tokens.CleanupSchedule)
	assert.Equal(t, "offline", cfg.Analysis.Provider)
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
[server]
host = "0.0.0.0"
port = 9090

[scheduler]
max_concurrent_jobs = 5

[tokens]
encryption_key = "`+testEncryptionKey+`"
expiry_buffer_minutes = 15
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Scheduler.MaxConcurrentJobs)
	assert.Equal(t, 15, cfg.Tokens.ExpiryBufferMinutes)

	// Untouched sections keep defaults.
	assert.Equal(t, 300, cfg.Cache.TTLSeconds)
	assert.Equal(t, "1s", cfg.Scheduler.TickInterval)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
[server]
port = 9090

[tokens]
encryption_key = "aaaa"
`)

	t.Setenv("SENTIO_SERVER_PORT", "7070")
	t.Setenv("SENTIO_ENCRYPTION_KEY", testEncryptionKey)
	t.Setenv("SENTIO_LOG_LEVEL", "debug")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, testEncryptionKey, cfg.Tokens.EncryptionKey)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig("/nonexistent/sentio.toml")
	assert.Error(t, err)
}

func TestLoadConfig_InvalidToml(t *testing.T) {
	path := writeConfigFile(t, "[[[[not toml")
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfig_ValidationFailures(t *testing.T) {
	// Missing encryption key.
	path := writeConfigFile(t, `
[server]
port = 8085
`)
	_, err := LoadConfig(path)
	assert.Error(t, err)

	// Port out of range.
	path = writeConfigFile(t, `
[server]
port = 99999

[tokens]
encryption_key = "`+testEncryptionKey+`"
`)
	_, err = LoadConfig(path)
	assert.Error(t, err)

	// Malformed tick interval.
	path = writeConfigFile(t, `
[scheduler]
tick_interval = "soon"

[tokens]
encryption_key = "`+testEncryptionKey+`"
`)
	_, err = LoadConfig(path)
	assert.Error(t, err)

	// Unknown analysis provider.
	path = writeConfigFile(t, `
[analysis]
provider = "psychic"

[tokens]
encryption_key = "`+testEncryptionKey+`"
`)
	_, err = LoadConfig(path)
	assert.Error(t, err)
}

func TestDurationGetters(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, time.Second, cfg.Scheduler.Tick())
	assert.Equal(t, 30*time.Second, cfg.Scheduler.DrainTimeout())
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL())
	assert.Equal(t, 5*time.Second, cfg.Cache.Poll())
	assert.Equal(t, 10*time.Minute, cfg.Cache.Ceiling())
	assert.Equal(t, 30*time.Minute, cfg.Tokens.ExpiryBuffer())
	assert.Equal(t, 7*24*time.Hour, cfg.Tokens.StaleWindow())

	// Parse failures fall back to the documented defaults.
	broken := &SchedulerConfig{TickInterval: "nope", ShutdownTimeout: "nope"}
	assert.Equal(t, time.Second, broken.Tick())
	assert.Equal(t, 30*time.Second, broken.DrainTimeout())
}
