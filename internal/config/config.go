package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	ORS_API_ENDPOINT string
	ORS_HTTP_TIMEOUT time.Duration

	// Optional shared cache backend; in-memory when empty
	ORS_REDIS_ADDR     string
	ORS_REDIS_PASSWORD string
	ORS_REDIS_DB       int
	ORS_CACHE_PREFIX   string

	ORS_LOG_LEVEL string

	// Credentials used by the CLI when no flags are given
	ORS_EMAIL    string
	ORS_PASSWORD string

	// Otel
	OTEL_EXPORTER_OTLP_ENDPOINT string
	ORS_TRACES_FILE             string
}

func ReadConfig() *Config {
	timeout := 30 * time.Second
	if raw := os.Getenv("ORS_HTTP_TIMEOUT"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			timeout = d
		}
	}

	redisDB := 0
	if raw := os.Getenv("ORS_REDIS_DB"); raw != "" {
		if db, err := strconv.Atoi(raw); err == nil {
			redisDB = db
		}
	}

	return &Config{
		ORS_API_ENDPOINT: GetEnvOrDefault("ORS_API_ENDPOINT", "http://localhost:5000/api/v1"),
		ORS_HTTP_TIMEOUT: timeout,

		ORS_REDIS_ADDR:     os.Getenv("ORS_REDIS_ADDR"),
		ORS_REDIS_PASSWORD: os.Getenv("ORS_REDIS_PASSWORD"),
		ORS_REDIS_DB:       redisDB,
		ORS_CACHE_PREFIX:   GetEnvOrDefault("ORS_CACHE_PREFIX", "ors_cache:"),

		ORS_LOG_LEVEL: GetEnvOrDefault("ORS_LOG_LEVEL", "info"),

		ORS_EMAIL:    os.Getenv("ORS_EMAIL"),
		ORS_PASSWORD: os.Getenv("ORS_PASSWORD"),

		OTEL_EXPORTER_OTLP_ENDPOINT: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		ORS_TRACES_FILE:             os.Getenv("ORS_TRACES_FILE"),
	}
}

func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
