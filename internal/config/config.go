// Package config loads service configuration from the environment, with
// .env support for local development.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

func init() {
	godotenv.Load()
}

// Config holds adjudicator service configuration
type Config struct {
	Port            string
	LogLevel        string
	Environment     string
	ShutdownTimeout time.Duration

	APIKeys     map[string]string
	RateLimit   int
	RateWindow  time.Duration
	CORSOrigins []string

	// OTLPEndpoint empty leaves trace export disabled.
	OTLPEndpoint     string
	TraceSampleRatio float64

	EarlyRefillThresholdDays int
	BatchWorkers             int
	MaxBatchSize             int
}

// Load reads configuration from the environment
func Load() Config {
	return Config{
		Port:            envString("PORT", "8084"),
		LogLevel:        envString("LOG_LEVEL", "info"),
		Environment:     envString("ENVIRONMENT", "development"),
		ShutdownTimeout: envDuration("SHUTDOWN_TIMEOUT", 30*time.Second),

		APIKeys:     apiKeys(),
		RateLimit:   envInt("RATE_LIMIT", 100),
		RateWindow:  envDuration("RATE_WINDOW", time.Minute),
		CORSOrigins: envStrings("CORS_ORIGINS", []string{"*"}),

		OTLPEndpoint:     envString("OTLP_ENDPOINT", ""),
		TraceSampleRatio: envFloat("TRACE_SAMPLE_RATIO", 1.0),

		EarlyRefillThresholdDays: envInt("EARLY_REFILL_THRESHOLD_DAYS", 7),
		BatchWorkers:             envInt("BATCH_WORKERS", 8),
		MaxBatchSize:             envInt("MAX_BATCH_SIZE", 100),
	}
}

// apiKeys returns the demo keys plus an optional environment override.
func apiKeys() map[string]string {
	keys := map[string]string{
		"demo-api-key-12345": "demo-client",
		"test-api-key-67890": "test-client",
	}
	if key := os.Getenv("API_KEY"); key != "" {
		keys[key] = "env-client"
	}
	return keys
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
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

func envFloat(key string, fallback float64) float64 {
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

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envStrings(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
