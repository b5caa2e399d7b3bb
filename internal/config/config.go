// Package config provides configuration management for the solagram daemon.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/amitsaini144/solagram/internal/model"
)

// DefaultProgramID is the identity of the solagram program on the devnet
// ledger. Deployments against another ledger override ledger.program_id.
const DefaultProgramID = "0x954ee8e06755711b541f7233ca24f84b6313a5f36c1bcc76aef0e2f568346ef7"

// Config holds all configuration for the solagram daemon.
type Config struct {
	Ledger  LedgerConfig  `mapstructure:"ledger" yaml:"ledger"`
	Engine  EngineConfig  `mapstructure:"engine" yaml:"engine"`
	Wallet  WalletConfig  `mapstructure:"wallet" yaml:"wallet"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Refresh RefreshConfig `mapstructure:"refresh" yaml:"refresh"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// LedgerConfig holds ledger node client configuration.
type LedgerConfig struct {
	Endpoint       string        `mapstructure:"endpoint" yaml:"endpoint"`
	SubscribeURL   string        `mapstructure:"subscribe_url" yaml:"subscribe_url"`
	ProgramID      string        `mapstructure:"program_id" yaml:"program_id"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	MaxRetries     int           `mapstructure:"max_retries" yaml:"max_retries"`
	RetryBackoff   time.Duration `mapstructure:"retry_backoff" yaml:"retry_backoff"`
	RateLimit      float64       `mapstructure:"rate_limit" yaml:"rate_limit"`
	RateBurst      int           `mapstructure:"rate_burst" yaml:"rate_burst"`
	MaxBatchSize   int           `mapstructure:"max_batch_size" yaml:"max_batch_size"`
}

// EngineConfig holds sync engine configuration.
type EngineConfig struct {
	ProfileCacheSize int           `mapstructure:"profile_cache_size" yaml:"profile_cache_size"`
	MaxAge           time.Duration `mapstructure:"max_age" yaml:"max_age"`
}

// WalletConfig holds signing key configuration.
type WalletConfig struct {
	KeyFile  string `mapstructure:"key_file" yaml:"key_file"`
	Generate bool   `mapstructure:"generate" yaml:"generate"`
}

// ServerConfig holds view API server configuration.
type ServerConfig struct {
	Host            string            `mapstructure:"host" yaml:"host"`
	Port            int               `mapstructure:"port" yaml:"port"`
	ReadTimeout     time.Duration     `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration     `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout     time.Duration     `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	ShutdownTimeout time.Duration     `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	RequestTimeout  time.Duration     `mapstructure:"request_timeout" yaml:"request_timeout"`
	CORSOrigins     []string          `mapstructure:"cors_origins" yaml:"cors_origins"`
	RateLimiter     RateLimiterConfig `mapstructure:"rate_limiter" yaml:"rate_limiter"`
}

// RateLimiterConfig holds view API rate limiter configuration.
type RateLimiterConfig struct {
	Enabled           bool    `mapstructure:"enabled" yaml:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	BurstSize         int     `mapstructure:"burst_size" yaml:"burst_size"`
}

// RefreshConfig holds background refresh loop configuration.
type RefreshConfig struct {
	Enabled   bool          `mapstructure:"enabled" yaml:"enabled"`
	Interval  time.Duration `mapstructure:"interval" yaml:"interval"`
	Workers   int           `mapstructure:"workers" yaml:"workers"`
	QueueSize int           `mapstructure:"queue_size" yaml:"queue_size"`
}

// MetricsConfig holds Prometheus metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Port    int    `mapstructure:"port" yaml:"port"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// DefaultConfig returns default configuration values.
func DefaultConfig() *Config {
	return &Config{
		Ledger: LedgerConfig{
			Endpoint:       "http://localhost:8899",
			SubscribeURL:   "ws://localhost:8900",
			ProgramID:      DefaultProgramID,
			RequestTimeout: 10 * time.Second,
			MaxRetries:     3,
			RetryBackoff:   100 * time.Millisecond,
			RateLimit:      100,
			RateBurst:      20,
			MaxBatchSize:   100,
		},
		Engine: EngineConfig{
			ProfileCacheSize: 512,
			MaxAge:           30 * time.Second,
		},
		Wallet: WalletConfig{
			KeyFile:  "solagram.key",
			Generate: true,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			RequestTimeout:  15 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimiter: RateLimiterConfig{
				Enabled:           true,
				RequestsPerSecond: 100,
				BurstSize:         50,
			},
		},
		Refresh: RefreshConfig{
			Enabled:   true,
			Interval:  30 * time.Second,
			Workers:   4,
			QueueSize: 16,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Ledger.Endpoint == "" {
		return fmt.Errorf("ledger.endpoint is required")
	}
	if c.Ledger.ProgramID == "" {
		return fmt.Errorf("ledger.program_id is required")
	}
	if _, err := model.ParseIdentity(c.Ledger.ProgramID); err != nil {
		return fmt.Errorf("ledger.program_id: %w", err)
	}
	if c.Ledger.RequestTimeout <= 0 {
		return fmt.Errorf("ledger.request_timeout must be positive")
	}
	if c.Ledger.MaxBatchSize <= 0 {
		return fmt.Errorf("ledger.max_batch_size must be positive")
	}
	if c.Engine.ProfileCacheSize <= 0 {
		return fmt.Errorf("engine.profile_cache_size must be positive")
	}
	if c.Wallet.KeyFile == "" {
		return fmt.Errorf("wallet.key_file is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("server.request_timeout must be positive")
	}
	if c.Server.RateLimiter.Enabled {
		if c.Server.RateLimiter.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate limiter requests per second must be positive")
		}
		if c.Server.RateLimiter.BurstSize <= 0 {
			return fmt.Errorf("rate limiter burst size must be positive")
		}
	}
	if c.Refresh.Enabled {
		if c.Refresh.Interval <= 0 {
			return fmt.Errorf("refresh.interval must be positive")
		}
		if c.Refresh.Workers <= 0 {
			return fmt.Errorf("refresh.workers must be positive")
		}
	}
	if c.Metrics.Enabled {
		if c.Metrics.Port <= 0 || c.Metrics.Port > 65535 {
			return fmt.Errorf("invalid metrics port: %d", c.Metrics.Port)
		}
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	return nil
}

// ProgramIdentity parses the configured program ID. Validate must have
// accepted the config first.
func (c *Config) ProgramIdentity() (model.Identity, error) {
	return model.ParseIdentity(c.Ledger.ProgramID)
}

// YAML renders the effective configuration for -print-config.
func (c *Config) YAML() (string, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to render config: %w", err)
	}
	return string(out), nil
}
