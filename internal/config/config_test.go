package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnvOverrides blanks every override variable so ambient shell state
// cannot leak into a test. t.Setenv restores the originals afterwards.
func clearEnvOverrides(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"SOLAGRAM_LEDGER_ENDPOINT",
		"SOLAGRAM_LEDGER_SUBSCRIBE_URL",
		"SOLAGRAM_PROGRAM_ID",
		"SOLAGRAM_WALLET_KEY_FILE",
		"SERVER_HOST",
		"SERVER_PORT",
		"METRICS_PORT",
		"LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	id, err := cfg.ProgramIdentity()
	require.NoError(t, err)
	assert.False(t, id.IsZero())
}

func TestLoadFromFile(t *testing.T) {
	clearEnvOverrides(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
ledger:
  endpoint: http://ledger.internal:8899
  request_timeout: 5s
server:
  port: 9191
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://ledger.internal:8899", cfg.Ledger.Endpoint)
	assert.Equal(t, 5*time.Second, cfg.Ledger.RequestTimeout)
	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Unset keys keep their defaults.
	assert.Equal(t, DefaultProgramID, cfg.Ledger.ProgramID)
	assert.Equal(t, 100, cfg.Ledger.MaxBatchSize)
	assert.Equal(t, 30*time.Second, cfg.Refresh.Interval)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoadNoFileUsesDefaults(t *testing.T) {
	clearEnvOverrides(t)
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestEnvironmentOverrides(t *testing.T) {
	clearEnvOverrides(t)
	t.Setenv("SOLAGRAM_LEDGER_ENDPOINT", "http://env-node:8899")
	t.Setenv("SOLAGRAM_WALLET_KEY_FILE", "/var/lib/solagram/actor.key")
	t.Setenv("SERVER_PORT", "7070")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://env-node:8899", cfg.Ledger.Endpoint)
	assert.Equal(t, "/var/lib/solagram/actor.key", cfg.Wallet.KeyFile)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing endpoint",
			mutate:  func(c *Config) { c.Ledger.Endpoint = "" },
			wantErr: "ledger.endpoint",
		},
		{
			name:    "malformed program id",
			mutate:  func(c *Config) { c.Ledger.ProgramID = "0x1234" },
			wantErr: "ledger.program_id",
		},
		{
			name:    "zero batch size",
			mutate:  func(c *Config) { c.Ledger.MaxBatchSize = 0 },
			wantErr: "max_batch_size",
		},
		{
			name:    "bad server port",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "server port",
		},
		{
			name:    "zero refresh interval",
			mutate:  func(c *Config) { c.Refresh.Interval = 0 },
			wantErr: "refresh.interval",
		},
		{
			name: "rate limiter without rate",
			mutate: func(c *Config) {
				c.Server.RateLimiter.RequestsPerSecond = 0
			},
			wantErr: "requests per second",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestYAMLRendersEffectiveConfig(t *testing.T) {
	cfg := DefaultConfig()
	out, err := cfg.YAML()
	require.NoError(t, err)

	assert.Contains(t, out, "ledger:")
	assert.Contains(t, out, "http://localhost:8899")
	assert.Contains(t, out, DefaultProgramID)
}
