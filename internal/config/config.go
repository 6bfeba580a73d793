// Package config holds process-level defaults, read from environment
// variables. Per-run parameters (source/target org, object, filters) come
// from the SeedPlan the CLI layer builds, never from environment — see
// spec.md's design note that the two connections are parameters, not
// globals.
package config

import (
	"os"
	"strconv"
)

// Config holds process-level defaults loaded from environment variables.
type Config struct {
	APIVersion         string  // ORGSEED_API_VERSION, default "v60.0"
	DefaultRecordCount int     // ORGSEED_DEFAULT_COUNT, default 10
	RateLimitPerSecond float64 // ORGSEED_RATE_LIMIT, default 10
	RateLimitBurst     int     // ORGSEED_RATE_BURST, default 10
	MaxRetries         int     // ORGSEED_MAX_RETRIES, default 5
}

// Load reads configuration from environment variables with sensible
// defaults.
func Load() Config {
	return Config{
		APIVersion:         envOr("ORGSEED_API_VERSION", "v60.0"),
		DefaultRecordCount: envOrInt("ORGSEED_DEFAULT_COUNT", 10),
		RateLimitPerSecond: envOrFloat("ORGSEED_RATE_LIMIT", 10),
		RateLimitBurst:     envOrInt("ORGSEED_RATE_BURST", 10),
		MaxRetries:         envOrInt("ORGSEED_MAX_RETRIES", 5),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envOrFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
