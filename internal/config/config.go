package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"    validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database"`
	LLM       LLMConfig       `mapstructure:"llm"       validate:"required"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Task      TaskConfig      `mapstructure:"task"`
	Dedup     DedupConfig     `mapstructure:"dedup"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
// An empty URL selects the in-memory stores, which is the supported mode
// for local development and tests.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"omitempty,uri"`
}

// LLMConfig contains all LLM integration related settings.
type LLMConfig struct {
	GeminiAPIKey   string `mapstructure:"gemini_api_key"   validate:"required"`
	ModelName      string `mapstructure:"model_name"       validate:"required"`
	MaxAttempts    int    `mapstructure:"max_attempts"     validate:"omitempty,gte=1,lte=10"`
	InitialDelayMs int    `mapstructure:"initial_delay_ms" validate:"omitempty,gte=1"`
	MaxDelayMs     int    `mapstructure:"max_delay_ms"     validate:"omitempty,gte=1"`
}

// RateLimitConfig contains admission controller settings.
type RateLimitConfig struct {
	SweepIntervalSeconds int `mapstructure:"sweep_interval_seconds" validate:"omitempty,gte=1"`
	TierTTLHours         int `mapstructure:"tier_ttl_hours"         validate:"omitempty,gte=1"`
}

// CacheConfig contains result cache settings.
type CacheConfig struct {
	MaxEntries int `mapstructure:"max_entries" validate:"omitempty,gte=1"`
	TTLHours   int `mapstructure:"ttl_hours"   validate:"omitempty,gte=1"`
}

// TaskConfig contains background job runner settings.
type TaskConfig struct {
	WorkerCount               int `mapstructure:"worker_count"                 validate:"omitempty,gte=1,lte=64"`
	QueueSize                 int `mapstructure:"queue_size"                   validate:"omitempty,gte=1"`
	StuckJobAgeMinutes        int `mapstructure:"stuck_job_age_minutes"        validate:"omitempty,gte=1"`
	StuckJobCheckIntervalMins int `mapstructure:"stuck_job_check_interval_mins" validate:"omitempty,gte=1"`
	BatchSize                 int `mapstructure:"batch_size"                   validate:"omitempty,gte=1,lte=20"`
}

// DedupConfig contains deduplication engine settings.
type DedupConfig struct {
	Threshold float64 `mapstructure:"threshold" validate:"omitempty,gt=0,lte=1"`
}
