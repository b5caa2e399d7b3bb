package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/viper"
)

// Load loads configuration from file and environment variables. The file is
// optional; defaults apply for everything it leaves unset, and environment
// variables take precedence over both.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		v := viper.New()
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := v.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	applyEnvironmentOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// applyEnvironmentOverrides applies environment variable overrides to config.
func applyEnvironmentOverrides(cfg *Config) {
	if endpoint := os.Getenv("SOLAGRAM_LEDGER_ENDPOINT"); endpoint != "" {
		cfg.Ledger.Endpoint = endpoint
	}
	if subURL := os.Getenv("SOLAGRAM_LEDGER_SUBSCRIBE_URL"); subURL != "" {
		cfg.Ledger.SubscribeURL = subURL
	}
	if programID := os.Getenv("SOLAGRAM_PROGRAM_ID"); programID != "" {
		cfg.Ledger.ProgramID = programID
	}
	if keyFile := os.Getenv("SOLAGRAM_WALLET_KEY_FILE"); keyFile != "" {
		cfg.Wallet.KeyFile = keyFile
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if port := os.Getenv("METRICS_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Metrics.Port = p
		}
	}
	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		cfg.Logging.Level = logLevel
	}
}
