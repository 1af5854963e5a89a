package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/quantmind-br/remotefetch/internal/config"
)

// ConfigValues holds form values that map to Config struct.
// Numeric and duration fields are stored as strings for form editing.
type ConfigValues struct {
	LogLevel  string
	LogFormat string

	MaxAuthRounds        string
	ConnectRetries       string
	RetryInitialInterval string
	RetryMaxInterval     string

	Prune    bool
	Progress bool
	Autotag  string
}

// FromConfig converts a Config to ConfigValues for form editing
func FromConfig(cfg *config.Config) *ConfigValues {
	return &ConfigValues{
		LogLevel:  cfg.Logging.Level,
		LogFormat: cfg.Logging.Format,

		MaxAuthRounds:        strconv.Itoa(cfg.Transport.MaxAuthRounds),
		ConnectRetries:       strconv.Itoa(cfg.Transport.ConnectRetries),
		RetryInitialInterval: formatDuration(cfg.Transport.RetryInitialInterval),
		RetryMaxInterval:     formatDuration(cfg.Transport.RetryMaxInterval),

		Prune:    cfg.Fetch.Prune,
		Progress: cfg.Fetch.Progress,
		Autotag:  cfg.Fetch.Autotag,
	}
}

// ToConfig converts ConfigValues back to a validated Config
func (v *ConfigValues) ToConfig() (*config.Config, error) {
	maxAuthRounds, err := parseIntOrDefault(v.MaxAuthRounds, config.DefaultMaxAuthRounds)
	if err != nil {
		return nil, fmt.Errorf("invalid max_auth_rounds: %w", err)
	}

	connectRetries, err := parseIntOrDefault(v.ConnectRetries, config.DefaultConnectRetries)
	if err != nil {
		return nil, fmt.Errorf("invalid connect_retries: %w", err)
	}

	initial, err := parseDurationOrDefault(v.RetryInitialInterval, config.DefaultRetryInitialInterval)
	if err != nil {
		return nil, fmt.Errorf("invalid retry_initial_interval: %w", err)
	}

	maxInterval, err := parseDurationOrDefault(v.RetryMaxInterval, config.DefaultRetryMaxInterval)
	if err != nil {
		return nil, fmt.Errorf("invalid retry_max_interval: %w", err)
	}

	cfg := &config.Config{
		Logging: config.LoggingConfig{
			Level:  v.LogLevel,
			Format: v.LogFormat,
		},
		Transport: config.TransportConfig{
			MaxAuthRounds:        maxAuthRounds,
			ConnectRetries:       connectRetries,
			RetryInitialInterval: initial,
			RetryMaxInterval:     maxInterval,
		},
		Fetch: config.FetchConfig{
			Prune:    v.Prune,
			Progress: v.Progress,
			Autotag:  v.Autotag,
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// reset copies the fields of one category from defaults
func (v *ConfigValues) reset(categoryID string, defaults *ConfigValues) {
	switch categoryID {
	case "logging":
		v.LogLevel, v.LogFormat = defaults.LogLevel, defaults.LogFormat
	case "transport":
		v.MaxAuthRounds = defaults.MaxAuthRounds
		v.ConnectRetries = defaults.ConnectRetries
		v.RetryInitialInterval = defaults.RetryInitialInterval
		v.RetryMaxInterval = defaults.RetryMaxInterval
	case "fetch":
		v.Prune, v.Progress, v.Autotag = defaults.Prune, defaults.Progress, defaults.Autotag
	}
}

// category returns a comparable form of one category's fields
func (v ConfigValues) category(categoryID string) string {
	switch categoryID {
	case "logging":
		return strings.Join([]string{v.LogLevel, v.LogFormat}, "\x00")
	case "transport":
		return strings.Join([]string{v.MaxAuthRounds, v.ConnectRetries, v.RetryInitialInterval, v.RetryMaxInterval}, "\x00")
	case "fetch":
		return fmt.Sprintf("%t\x00%t\x00%s", v.Prune, v.Progress, v.Autotag)
	}
	return ""
}

// summary renders one category's values for the editor menu
func (v ConfigValues) summary(categoryID string) string {
	switch categoryID {
	case "logging":
		return v.LogLevel + ", " + v.LogFormat
	case "transport":
		return fmt.Sprintf("%s auth rounds, %s retries, backoff %s..%s",
			v.MaxAuthRounds, v.ConnectRetries, v.RetryInitialInterval, v.RetryMaxInterval)
	case "fetch":
		autotag := v.Autotag
		if autotag == "" {
			autotag = "per remote"
		}
		return fmt.Sprintf("autotag %s, prune %s, progress %s", autotag, onOff(v.Prune), onOff(v.Progress))
	}
	return ""
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func formatDuration(d time.Duration) string {
	if d == 0 {
		return ""
	}
	return d.String()
}

func parseDurationOrDefault(s string, defaultVal time.Duration) (time.Duration, error) {
	if s == "" {
		return defaultVal, nil
	}
	return time.ParseDuration(s)
}

func parseIntOrDefault(s string, defaultVal int) (int, error) {
	if s == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(s)
}
