package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	HTTPPort           string
	AppMode            string
	FiberPrefork       bool
	ClickHouseAddr     string
	ClickHouseDatabase string
	ClickHouseUser     string
	ClickHousePassword string
	DBMaxConns         int
	DBMinConns         int
	DBMaxConnLifetime  time.Duration
	DefaultTimezone    string
	WorkerBufferSize   int
	WorkerBatchSize    int
	WorkerFlushEvery   time.Duration
	FutureTolerance    time.Duration
}

// Load reads configuration from environment variables with sane defaults.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPPort:           getEnv("HTTP_PORT", ":8080"),
		AppMode:            strings.ToLower(getEnv("APP_MODE", "dev")),
		FiberPrefork:       parseBoolEnv("FIBER_PREFORK", false),
		ClickHouseAddr:     getEnv("CLICKHOUSE_ADDR", "localhost:9000"),
		ClickHouseDatabase: getEnv("CLICKHOUSE_DATABASE", "default"),
		ClickHouseUser:     getEnv("CLICKHOUSE_USER", "default"),
		ClickHousePassword: os.Getenv("CLICKHOUSE_PASSWORD"),
		DBMaxConns:         parseIntEnv("DB_MAX_CONNS", 50),
		DBMinConns:         parseIntEnv("DB_MIN_CONNS", 10),
		DBMaxConnLifetime:  parseDurationEnv("DB_MAX_CONN_LIFETIME", 30*time.Minute),
		DefaultTimezone:    getEnv("DEFAULT_TIMEZONE", "UTC"),
		WorkerBufferSize:   parseIntEnv("WORKER_BUFFER_SIZE", 10000),
		WorkerBatchSize:    parseIntEnv("WORKER_BATCH_SIZE", 1000),
		WorkerFlushEvery:   parseDurationEnv("WORKER_FLUSH_EVERY", time.Second),
		FutureTolerance:    parseDurationEnv("FUTURE_TOLERANCE", 5*time.Minute),
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func parseBoolEnv(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseIntEnv(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseDurationEnv(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return parsed
}
