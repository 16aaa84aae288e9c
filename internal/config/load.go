package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from environment variables and an optional
// config file. Environment variables take precedence over file values.
// Returns a populated Config struct or an error if loading or validation
// fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// An optional config.yaml in the working directory supplements the
	// environment. A missing file is not an error.
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// STORYBOARD_SERVER_PORT maps to server.port, and so on.
	v.SetEnvPrefix("STORYBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("llm.model_name", "gemini-2.0-flash")
	v.SetDefault("llm.max_attempts", 3)
	v.SetDefault("llm.initial_delay_ms", 500)
	v.SetDefault("llm.max_delay_ms", 30000)
	v.SetDefault("rate_limit.sweep_interval_seconds", 300)
	v.SetDefault("rate_limit.tier_ttl_hours", 24)
	v.SetDefault("cache.max_entries", 20)
	v.SetDefault("cache.ttl_hours", 24)
	v.SetDefault("task.worker_count", 2)
	v.SetDefault("task.queue_size", 32)
	v.SetDefault("task.stuck_job_age_minutes", 30)
	v.SetDefault("task.stuck_job_check_interval_mins", 5)
	v.SetDefault("task.batch_size", 5)
	v.SetDefault("dedup.threshold", 0.75)
}

// bindEnvKeys registers every config key with viper so AutomaticEnv can
// resolve values that have no default and do not appear in a config file.
func bindEnvKeys(v *viper.Viper) {
	keys := []string{
		"server.port",
		"server.log_level",
		"database.url",
		"llm.gemini_api_key",
		"llm.model_name",
		"llm.max_attempts",
		"llm.initial_delay_ms",
		"llm.max_delay_ms",
		"rate_limit.sweep_interval_seconds",
		"rate_limit.tier_ttl_hours",
		"cache.max_entries",
		"cache.ttl_hours",
		"task.worker_count",
		"task.queue_size",
		"task.stuck_job_age_minutes",
		"task.stuck_job_check_interval_mins",
		"task.batch_size",
		"dedup.threshold",
	}
	for _, key := range keys {
		// BindEnv only errors on an empty key.
		_ = v.BindEnv(key)
	}
}
