// Package config reads orchestrator settings from the environment.
package config

import (
	"os"
	"time"
)

// Config is the orchestrator's runtime configuration.
type Config struct {
	// HTTPAddr is the listen address of the event ingress.
	HTTPAddr string
	// InventoryURL is the base URL of the inventory collaborator.
	InventoryURL string
	// RedisAddr backs the order repository; empty selects in-memory.
	RedisAddr string
	// SagaDBPath is the SQLite file for the saga state store; empty selects
	// in-memory.
	SagaDBPath string
	// ReservationTimeout bounds each reserve call; expiry counts as a
	// reservation failure.
	ReservationTimeout time.Duration
	// ServiceName identifies this process in traces and logs.
	ServiceName string
}

// Load builds the configuration from env vars with local-run defaults.
func Load() Config {
	return Config{
		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		InventoryURL:       getEnv("INVENTORY_URL", "http://localhost:8081"),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		SagaDBPath:         getEnv("SAGA_DB_PATH", "./data/sagas.db"),
		ReservationTimeout: getDuration("RESERVATION_TIMEOUT", 10*time.Second),
		ServiceName:        getEnv("OTEL_SERVICE_NAME", "saga-orchestrator"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
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
