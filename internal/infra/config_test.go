package infra

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("GENERATION_PROVIDER", "")
	t.Setenv("POLL_INTERVAL_SECONDS", "")
	t.Setenv("MAX_POLL_ATTEMPTS", "")
	t.Setenv("RETENTION_DAYS", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.GenerationProvider != "mock" {
		t.Fatalf("GenerationProvider mismatch: got %q want %q", cfg.GenerationProvider, "mock")
	}
	if cfg.PollInterval != 10*time.Second {
		t.Fatalf("PollInterval mismatch: got %v", cfg.PollInterval)
	}
	if cfg.MaxPollAttempts != 30 {
		t.Fatalf("MaxPollAttempts mismatch: got %d", cfg.MaxPollAttempts)
	}
	if cfg.RetentionAge != 7*24*time.Hour {
		t.Fatalf("RetentionAge mismatch: got %v", cfg.RetentionAge)
	}
	if cfg.RetryBackoffFactor != 2 {
		t.Fatalf("RetryBackoffFactor mismatch: got %v", cfg.RetryBackoffFactor)
	}
}

func TestLoadConfigRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error when DATABASE_URL is empty")
	}
}

func TestLoadConfigReplicateRequiresToken(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("GENERATION_PROVIDER", "replicate")
	t.Setenv("REPLICATE_API_TOKEN", "")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error when replicate provider has no token")
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("POLL_INTERVAL_SECONDS", "3")
	t.Setenv("MAX_POLL_ATTEMPTS", "5")
	t.Setenv("RETRY_BACKOFF_FACTOR", "1.5")
	t.Setenv("MAX_RETRY_ATTEMPTS", "9")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.PollInterval != 3*time.Second {
		t.Fatalf("PollInterval mismatch: got %v", cfg.PollInterval)
	}
	if cfg.MaxPollAttempts != 5 {
		t.Fatalf("MaxPollAttempts mismatch: got %d", cfg.MaxPollAttempts)
	}
	if cfg.RetryBackoffFactor != 1.5 {
		t.Fatalf("RetryBackoffFactor mismatch: got %v", cfg.RetryBackoffFactor)
	}
	if cfg.MaxRetryAttempts != 9 {
		t.Fatalf("MaxRetryAttempts mismatch: got %d", cfg.MaxRetryAttempts)
	}
}
