package config_test

import (
	"testing"

	"github.com/johnwards/orgseed/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ORGSEED_API_VERSION", "")
	t.Setenv("ORGSEED_DEFAULT_COUNT", "")
	t.Setenv("ORGSEED_RATE_LIMIT", "")
	t.Setenv("ORGSEED_RATE_BURST", "")
	t.Setenv("ORGSEED_MAX_RETRIES", "")

	cfg := config.Load()

	if cfg.APIVersion != "v60.0" {
		t.Errorf("APIVersion = %q, want %q", cfg.APIVersion, "v60.0")
	}
	if cfg.DefaultRecordCount != 10 {
		t.Errorf("DefaultRecordCount = %d, want 10", cfg.DefaultRecordCount)
	}
	if cfg.RateLimitPerSecond != 10 {
		t.Errorf("RateLimitPerSecond = %v, want 10", cfg.RateLimitPerSecond)
	}
	if cfg.RateLimitBurst != 10 {
		t.Errorf("RateLimitBurst = %d, want 10", cfg.RateLimitBurst)
	}
	if cfg.MaxRetries != 5 {
		t.Errorf("MaxRetries = %d, want 5", cfg.MaxRetries)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("ORGSEED_API_VERSION", "v59.0")
	t.Setenv("ORGSEED_DEFAULT_COUNT", "25")
	t.Setenv("ORGSEED_RATE_LIMIT", "5.5")
	t.Setenv("ORGSEED_RATE_BURST", "3")
	t.Setenv("ORGSEED_MAX_RETRIES", "2")

	cfg := config.Load()

	if cfg.APIVersion != "v59.0" {
		t.Errorf("APIVersion = %q, want %q", cfg.APIVersion, "v59.0")
	}
	if cfg.DefaultRecordCount != 25 {
		t.Errorf("DefaultRecordCount = %d, want 25", cfg.DefaultRecordCount)
	}
	if cfg.RateLimitPerSecond != 5.5 {
		t.Errorf("RateLimitPerSecond = %v, want 5.5", cfg.RateLimitPerSecond)
	}
	if cfg.RateLimitBurst != 3 {
		t.Errorf("RateLimitBurst = %d, want 3", cfg.RateLimitBurst)
	}
	if cfg.MaxRetries != 2 {
		t.Errorf("MaxRetries = %d, want 2", cfg.MaxRetries)
	}
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("ORGSEED_DEFAULT_COUNT", "not-a-number")
	t.Setenv("ORGSEED_RATE_LIMIT", "also-not-a-number")

	cfg := config.Load()

	if cfg.DefaultRecordCount != 10 {
		t.Errorf("DefaultRecordCount = %d, want fallback 10", cfg.DefaultRecordCount)
	}
	if cfg.RateLimitPerSecond != 10 {
		t.Errorf("RateLimitPerSecond = %v, want fallback 10", cfg.RateLimitPerSecond)
	}
}
