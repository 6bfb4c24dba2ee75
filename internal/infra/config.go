package infra

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	RedisURL    string

	StoragePath    string
	StorageBaseURL string

	// Generation provider selection, resolved once at process wiring time.
	GenerationProvider string
	ReplicateAPIToken  string
	ReplicateBaseURL   string
	SubmitTimeout      time.Duration

	// Orchestrator poll loop.
	PollInterval    time.Duration
	MaxPollAttempts int

	// Whole-job retry policy.
	RetryBaseDelay     time.Duration
	RetryBackoffFactor float64
	RetryMaxDelay      time.Duration
	MaxRetryAttempts   int

	// Single-flight lease per job id.
	LeaseTTL time.Duration

	// Worker claim loop.
	ClaimInterval  time.Duration
	StallThreshold time.Duration

	// Retention sweep.
	RetentionAge   time.Duration
	SweepInterval  time.Duration
	SweepBatchSize int

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),

		StoragePath:    getEnv("STORAGE_PATH", "./storage/media"),
		StorageBaseURL: getEnv("STORAGE_BASE_URL", "http://localhost:8080/media"),

		GenerationProvider: getEnv("GENERATION_PROVIDER", "mock"),
		ReplicateAPIToken:  os.Getenv("REPLICATE_API_TOKEN"),
		ReplicateBaseURL:   getEnv("REPLICATE_BASE_URL", "https://api.replicate.com/v1"),
		SubmitTimeout:      time.Second * time.Duration(getEnvInt("SUBMIT_TIMEOUT_SECONDS", 30)),

		PollInterval:    time.Second * time.Duration(getEnvInt("POLL_INTERVAL_SECONDS", 10)),
		MaxPollAttempts: getEnvInt("MAX_POLL_ATTEMPTS", 30),

		RetryBaseDelay:     time.Second * time.Duration(getEnvInt("RETRY_BASE_DELAY_SECONDS", 60)),
		RetryBackoffFactor: getEnvFloat("RETRY_BACKOFF_FACTOR", 2),
		RetryMaxDelay:      time.Second * time.Duration(getEnvInt("RETRY_MAX_DELAY_SECONDS", 300)),
		MaxRetryAttempts:   getEnvInt("MAX_RETRY_ATTEMPTS", 3),

		LeaseTTL: time.Second * time.Duration(getEnvInt("LEASE_TTL_SECONDS", 600)),

		ClaimInterval:  time.Second * time.Duration(getEnvInt("CLAIM_INTERVAL_SECONDS", 2)),
		StallThreshold: time.Second * time.Duration(getEnvInt("STALL_THRESHOLD_SECONDS", 900)),

		RetentionAge:   24 * time.Hour * time.Duration(getEnvInt("RETENTION_DAYS", 7)),
		SweepInterval:  time.Second * time.Duration(getEnvInt("SWEEP_INTERVAL_SECONDS", 3600)),
		SweepBatchSize: getEnvInt("SWEEP_BATCH_SIZE", 100),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.GenerationProvider == "replicate" && cfg.ReplicateAPIToken == "" {
		return nil, fmt.Errorf("REPLICATE_API_TOKEN is required when GENERATION_PROVIDER=replicate")
	}

	if cfg.MaxPollAttempts <= 0 {
		return nil, fmt.Errorf("MAX_POLL_ATTEMPTS must be positive")
	}

	if cfg.RetryBackoffFactor < 1 {
		return nil, fmt.Errorf("RETRY_BACKOFF_FACTOR must be >= 1")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
