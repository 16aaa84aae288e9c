// Package config loads and validates application configuration from
// environment variables and an optional config file. Values are grouped
// into logical sections (server, database, LLM, rate limiting, cache,
// tasks, dedup) and validated with go-playground/validator before use.
package config
