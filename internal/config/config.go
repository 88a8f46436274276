package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env         string
	DatabaseURL string

	// Privacy policy mode: strict, standard, or permissive.
	PrivacyMode string

	// Identifier retention for the cleanup sweep.
	IdentifierRetentionDays int

	// Default country appended to "City, State" locations that omit one.
	DefaultCountry string

	// Default phone region for E.164 normalization of extracted numbers.
	PhoneRegion string

	// Matching defaults.
	MatchTopN          int
	DuplicateMinShared int

	// Redis / asynq.
	RedisURL         string
	AsynqQueue       string
	AsynqConcurrency int

	// Alert email channel. Disabled when SMTPHost is empty.
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	AlertFrom    string

	// Per-task timeout around network-backed enrichment.
	EnrichmentTimeout time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:                     getEnv("APP_ENV", "development"),
		DatabaseURL:             getEnv("DATABASE_URL", ""),
		PrivacyMode:             strings.ToLower(getEnv("PRIVACY_MODE", "standard")),
		IdentifierRetentionDays: getEnvInt("IDENTIFIER_RETENTION_DAYS", 90),
		DefaultCountry:          getEnv("DEFAULT_COUNTRY", "USA"),
		PhoneRegion:             getEnv("PHONE_REGION", "US"),
		MatchTopN:               getEnvInt("MATCH_TOP_N", 10),
		DuplicateMinShared:      getEnvInt("DUPLICATE_MIN_SHARED_IDENTIFIERS", 2),
		RedisURL:                getEnv("REDIS_URL", ""),
		AsynqQueue:              getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:        getEnvInt("ASYNQ_CONCURRENCY", 10),
		SMTPHost:                getEnv("SMTP_HOST", ""),
		SMTPPort:                getEnvInt("SMTP_PORT", 587),
		SMTPUsername:            getEnv("SMTP_USERNAME", ""),
		SMTPPassword:            getEnv("SMTP_PASSWORD", ""),
		AlertFrom:               getEnv("ALERT_FROM_ADDRESS", ""),
		EnrichmentTimeout:       mustDuration(getEnv("ENRICHMENT_TIMEOUT", "10s")),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	switch cfg.PrivacyMode {
	case "strict", "standard", "permissive":
	default:
		return nil, fmt.Errorf("PRIVACY_MODE must be strict, standard, or permissive")
	}
	if cfg.IdentifierRetentionDays < 1 {
		return nil, fmt.Errorf("IDENTIFIER_RETENTION_DAYS must be positive")
	}
	if cfg.SMTPHost != "" && cfg.AlertFrom == "" {
		return nil, fmt.Errorf("ALERT_FROM_ADDRESS is required when SMTP_HOST is set")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	val, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		return fallback
	}
	return parsed
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}
