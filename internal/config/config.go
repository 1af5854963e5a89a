package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/quantmind-br/remotefetch/internal/domain"
)

// Config represents the application configuration
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Transport TransportConfig `mapstructure:"transport" yaml:"transport"`
	Fetch     FetchConfig     `mapstructure:"fetch" yaml:"fetch"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// TransportConfig contains connection settings
type TransportConfig struct {
	MaxAuthRounds        int           `mapstructure:"max_auth_rounds" yaml:"max_auth_rounds"`
	ConnectRetries       int           `mapstructure:"connect_retries" yaml:"connect_retries"`
	RetryInitialInterval time.Duration `mapstructure:"retry_initial_interval" yaml:"retry_initial_interval"`
	RetryMaxInterval     time.Duration `mapstructure:"retry_max_interval" yaml:"retry_max_interval"`
}

// FetchConfig contains defaults for the fetch command
type FetchConfig struct {
	Prune    bool   `mapstructure:"prune" yaml:"prune"`
	Progress bool   `mapstructure:"progress" yaml:"progress"`
	Autotag  string `mapstructure:"autotag" yaml:"autotag"`
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
		c.Logging.Level = strings.ToLower(c.Logging.Level)
	default:
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format != "json" && c.Logging.Format != "pretty" {
		c.Logging.Format = DefaultLogFormat
	}

	if c.Transport.MaxAuthRounds < 1 {
		c.Transport.MaxAuthRounds = DefaultMaxAuthRounds
	}
	if c.Transport.ConnectRetries < 0 {
		c.Transport.ConnectRetries = DefaultConnectRetries
	}
	if c.Transport.RetryInitialInterval < time.Millisecond {
		c.Transport.RetryInitialInterval = DefaultRetryInitialInterval
	}
	if c.Transport.RetryMaxInterval < c.Transport.RetryInitialInterval {
		c.Transport.RetryMaxInterval = max(DefaultRetryMaxInterval, c.Transport.RetryInitialInterval)
	}

	if c.Fetch.Autotag != "" {
		policy, err := domain.ParseAutotag(c.Fetch.Autotag)
		if err != nil {
			return fmt.Errorf("invalid fetch.autotag: %w", err)
		}
		c.Fetch.Autotag = string(policy)
	}
	return nil
}
