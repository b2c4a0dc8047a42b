package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// JWT (session boundary only)
	JWTSecret string

	// Server secret: signs stream tokens, the audit hash chain, and
	// certificates. Never logged.
	ServerSecret string

	// Policy thresholds
	WatchPercentThreshold float64
	QuizFailureLimit      int
	QuizFailureTTLSeconds int

	// Engagement events
	HeartbeatStalenessSeconds int

	// Streaming grants
	StreamTokenTTLSeconds int

	// Audit chain verification sweep
	ChainVerifyIntervalSeconds int

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:         getEnvOrDefault("PORT", "8080"),
		Env:          getEnvOrDefault("ENV", "development"),
		DatabaseURL:  mustGetEnv("DATABASE_URL"),
		RedisURL:     mustGetEnv("REDIS_URL"),
		JWTSecret:    mustGetEnv("JWT_SECRET"),
		ServerSecret: mustGetEnv("SERVER_SECRET"),

		WatchPercentThreshold: getEnvAsFloatOrDefault("WATCH_PERCENT_THRESHOLD", 80.0),
		QuizFailureLimit:      getEnvAsIntOrDefault("QUIZ_FAILURE_LIMIT", 3),
		QuizFailureTTLSeconds: getEnvAsIntOrDefault("QUIZ_FAILURE_TTL_SECONDS", 1800),

		HeartbeatStalenessSeconds: getEnvAsIntOrDefault("HEARTBEAT_STALENESS_SECONDS", 30),
		StreamTokenTTLSeconds:     getEnvAsIntOrDefault("STREAM_TOKEN_TTL_SECONDS", 600),

		ChainVerifyIntervalSeconds: getEnvAsIntOrDefault("CHAIN_VERIFY_INTERVAL_SECONDS", 3600),

		FrontendURL: getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
	}

	return cfg
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsFloatOrDefault(key string, defaultVal float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return defaultVal
	}
	return f
}
