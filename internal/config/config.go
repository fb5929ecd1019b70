// Package config loads runtime configuration for the RADIUS core from
// environment variables, applying the defaults in the external
// interfaces table.
package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Database
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string

	// Redis
	RedisHost     string
	RedisPort     int
	RedisPassword string

	// RADIUS sockets
	BindAddress string
	AuthPort    int
	AcctPort    int

	LogLevel string

	// Behavioral tuning
	AcctInterimInterval   int // seconds, echoed to the NAS
	StaleSessionMultiplier int
	MaxInactiveSessions   int
	RadiusLogRetention    int
	SessionBufferFlush    time.Duration

	// Per-job intervals
	DeadSessionInterval     time.Duration
	InactiveSessionInterval time.Duration
	LogRetentionInterval    time.Duration
	StatsInterval           time.Duration
	StaleSessionMaxAge      time.Duration
	StaleSessionJobInterval time.Duration
}

func Load() *Config {
	dbPassword := getEnv("DB_PASSWORD", "")
	if dbPassword == "" {
		log.Println("WARNING: DB_PASSWORD not set - this is insecure for production!")
		dbPassword = "changeme"
	}

	redisPassword := getEnv("REDIS_PASSWORD", "")
	if redisPassword == "" {
		log.Println("WARNING: REDIS_PASSWORD not set - Redis is not secured!")
	}

	return &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnvInt("DB_PORT", 5432),
		DBUser:     getEnv("DB_USER", "radiusd"),
		DBPassword: dbPassword,
		DBName:     getEnv("DB_NAME", "radiusd"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnvInt("REDIS_PORT", 6379),
		RedisPassword: redisPassword,

		BindAddress: getEnv("BIND_ADDRESS", "0.0.0.0"),
		AuthPort:    getEnvInt("AUTH_PORT", 1812),
		AcctPort:    getEnvInt("ACCT_PORT", 1813),

		LogLevel: getEnv("LOG_LEVEL", "INFO"),

		AcctInterimInterval:    getEnvInt("ACCT_INTERIM_INTERVAL", 600),
		StaleSessionMultiplier: getEnvInt("STALE_SESSION_MULTIPLIER", 5),
		MaxInactiveSessions:    getEnvInt("MAX_INACTIVE_SESSIONS", 100),
		RadiusLogRetention:     getEnvInt("RADIUS_LOG_RETENTION", 10000),
		SessionBufferFlush:     time.Duration(getEnvInt("SESSION_BUFFER_FLUSH_INTERVAL", 5)) * time.Second,

		DeadSessionInterval:     time.Duration(getEnvInt("DEAD_SESSION_INTERVAL", 300)) * time.Second,
		InactiveSessionInterval: time.Duration(getEnvInt("INACTIVE_SESSION_INTERVAL", 3600)) * time.Second,
		LogRetentionInterval:    time.Duration(getEnvInt("LOG_RETENTION_INTERVAL", 300)) * time.Second,
		StatsInterval:           time.Duration(getEnvInt("STATS_INTERVAL", 300)) * time.Second,
		StaleSessionMaxAge:      time.Duration(getEnvInt("STALE_SESSION_MAX_AGE_HOURS", 24)) * time.Hour,
		StaleSessionJobInterval: time.Duration(getEnvInt("STALE_SESSION_JOB_INTERVAL", 3600)) * time.Second,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
