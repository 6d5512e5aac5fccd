// Package config centralises configuration parsing for the healthsync service.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config captures runtime configuration for the API service, the DLQ manager,
// and the audit consumer.
type Config struct {
	HTTPAddress        string
	HTTPWriteTimeout   time.Duration
	PostgresURL        string // empty selects the in-memory store
	KafkaBrokers       []string
	SchemaRegistryURL  string
	OutboxEnabled      bool
	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	JWTSecret          string
	JWTIssuer          string
	PlatformBridgeURL  string
	PlatformTimeout    time.Duration
	PlatformMaxRetries int
	ConsentTimeout     time.Duration
	StatsTimezone      string
	LogLevel           string
	LogFormat          string
	CORSAllowedOrigins []string
	MetricsAddress     string
	ConsumerGroupID    string
	ConsumerTopics     []string
	DLQPollInterval    time.Duration
	DLQMaxRetries      int
	DLQBaseDelay       time.Duration
}

// Load reads a .env file when present, then environment variables, applying
// defaults suited to local development.
func Load() Config {
	_ = godotenv.Load()

	postgresURL := strings.TrimSpace(os.Getenv("POSTGRES_URL"))
	return Config{
		HTTPAddress:        getEnv("HTTP_ADDRESS", ":8080"),
		HTTPWriteTimeout:   getDurationEnv("HTTP_WRITE_TIMEOUT", 3*time.Minute),
		PostgresURL:        postgresURL,
		KafkaBrokers:       splitAndTrim(getEnv("KAFKA_BROKERS", "kafka:9092")),
		SchemaRegistryURL:  getEnv("SCHEMA_REGISTRY_URL", "http://schema-registry:8081"),
		OutboxEnabled:      getBoolEnv("OUTBOX_ENABLED", postgresURL != ""),
		OutboxPollInterval: getDurationEnv("OUTBOX_POLL_INTERVAL", 2*time.Second),
		OutboxBatchSize:    getIntEnv("OUTBOX_BATCH_SIZE", 25),
		JWTSecret:          getEnv("JWT_SECRET", "dev-secret-change-me"),
		JWTIssuer:          getEnv("JWT_ISSUER", "healthsync.identity"),
		PlatformBridgeURL:  getEnv("PLATFORM_BRIDGE_URL", "http://localhost:8765"),
		PlatformTimeout:    getDurationEnv("PLATFORM_TIMEOUT", 30*time.Second),
		PlatformMaxRetries: getIntEnv("PLATFORM_MAX_RETRIES", 3),
		ConsentTimeout:     getDurationEnv("CONSENT_TIMEOUT", 2*time.Minute),
		StatsTimezone:      getEnv("STATS_TIMEZONE", "Local"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "json"),
		CORSAllowedOrigins: splitAndTrim(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173")),
		MetricsAddress:     getEnv("METRICS_ADDRESS", ":9102"),
		ConsumerGroupID:    getEnv("CONSUMER_GROUP_ID", "healthsync-audit"),
		ConsumerTopics:     splitAndTrim(getEnv("CONSUMER_TOPICS", "health_record_events")),
		DLQPollInterval:    getDurationEnv("DLQ_POLL_INTERVAL", 30*time.Second),
		DLQMaxRetries:      getIntEnv("DLQ_MAX_RETRIES", 5),
		DLQBaseDelay:       getDurationEnv("DLQ_BASE_DELAY", time.Minute),
	}
}

// Location resolves StatsTimezone.
func (c Config) Location() (*time.Location, error) {
	if c.StatsTimezone == "" || strings.EqualFold(c.StatsTimezone, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.StatsTimezone)
	if err != nil {
		return nil, fmt.Errorf("STATS_TIMEZONE: %w", err)
	}
	return loc, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func splitAndTrim(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBoolEnv(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}
