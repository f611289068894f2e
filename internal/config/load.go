package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load configuration from environment variables and optionally a config
// file. Environment variables (prefix EVALBOX_, dots replaced by
// underscores, e.g. EVALBOX_POOL_WORKER_COUNT) take precedence over
// values from the config file, which take precedence over defaults.
// Returns a populated Config struct or an error if loading or validation
// fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("evalbox")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("EVALBOX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; env vars and defaults carry.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")

	v.SetDefault("pool.worker_count", 2)
	v.SetDefault("pool.queue_capacity", 100)
	v.SetDefault("pool.cancel_timeout", 2*time.Second)

	v.SetDefault("buffer.strategy", "lines")
	v.SetDefault("buffer.initial_lines", 16)
	v.SetDefault("buffer.max_lines", 1024)
	v.SetDefault("buffer.max_bytes", 64*1024)
}
