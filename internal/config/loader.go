package config

import (
	"errors"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables read by Load
const EnvPrefix = "REMOTEFETCH"

// Load loads configuration from file, environment, and defaults.
// Uses the global viper instance to access CLI flag bindings.
func Load() (*Config, error) {
	return load(viper.GetViper(), "")
}

// LoadFile loads configuration from path instead of the default search
// locations and returns the viper instance, useful for merging CLI flags later
func LoadFile(path string) (*Config, *viper.Viper, error) {
	v := viper.New()
	cfg, err := load(v, path)
	if err != nil {
		return nil, nil, err
	}
	return cfg, v, nil
}

func load(v *viper.Viper, path string) (*Config, error) {
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(ConfigDir())
		v.AddConfigPath(".")
	}

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !(path != "" && errors.Is(err, os.ErrNotExist)) {
			return nil, err
		}
	}

	// Environment variables (REMOTEFETCH_*)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Validate and apply defaults for invalid values
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults sets default values in viper
func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", DefaultLogLevel)
	v.SetDefault("logging.format", DefaultLogFormat)

	v.SetDefault("transport.max_auth_rounds", DefaultMaxAuthRounds)
	v.SetDefault("transport.connect_retries", DefaultConnectRetries)
	v.SetDefault("transport.retry_initial_interval", DefaultRetryInitialInterval)
	v.SetDefault("transport.retry_max_interval", DefaultRetryMaxInterval)

	v.SetDefault("fetch.prune", DefaultPrune)
	v.SetDefault("fetch.progress", DefaultProgress)
	v.SetDefault("fetch.autotag", "")
}

// EnsureConfigDir creates the config directory if it doesn't exist
func EnsureConfigDir() error {
	return os.MkdirAll(ConfigDir(), 0755)
}
