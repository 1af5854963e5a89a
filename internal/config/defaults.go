package config

import (
	"os"
	"path/filepath"
	"time"
)

// Default values
const (
	// Logging defaults
	DefaultLogLevel  = "info"
	DefaultLogFormat = "pretty"

	// Transport defaults
	DefaultMaxAuthRounds        = 3
	DefaultConnectRetries       = 3
	DefaultRetryInitialInterval = 500 * time.Millisecond
	DefaultRetryMaxInterval     = 10 * time.Second

	// Fetch defaults
	DefaultPrune    = false
	DefaultProgress = true
)

// ConfigDir returns the config directory path
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".remotefetch"
	}
	return filepath.Join(home, ".remotefetch")
}

// ConfigFilePath returns the config file path
func ConfigFilePath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Transport: TransportConfig{
			MaxAuthRounds:        DefaultMaxAuthRounds,
			ConnectRetries:       DefaultConnectRetries,
			RetryInitialInterval: DefaultRetryInitialInterval,
			RetryMaxInterval:     DefaultRetryMaxInterval,
		},
		Fetch: FetchConfig{
			Prune:    DefaultPrune,
			Progress: DefaultProgress,
		},
	}
}
