package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort       string
	AppMode       string
	DBHost        string
	DBUser        string
	DBPassword    string
	DBName        string
	DBPort        string
	DBSSLMode     string
	JWTSecret     string
	JWTExpiryMin  int
	RedisEnabled  bool
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Requests allowed per RateLimitWindowSec.
	RateLimitAuth         int
	RateLimitChatRequests int
	RateLimitWindowSec    int

	OutboxIntervalMs int
	OutboxBatchSize  int

	CORSAllowedOrigins []string
}

func LoadConfig() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		AppPort:               getEnv("APP_PORT", "8080"),
		AppMode:               getEnv("APP_MODE", "debug"),
		DBHost:                getEnv("DB_HOST", "localhost"),
		DBUser:                getEnv("DB_USER", "postgres"),
		DBPassword:            getEnv("DB_PASSWORD", "postgres"),
		DBName:                getEnv("DB_NAME", "chat_requests"),
		DBPort:                getEnv("DB_PORT", "5432"),
		DBSSLMode:             getEnv("DB_SSLMODE", "disable"),
		JWTSecret:             getEnv("JWT_SECRET", "change-me"),
		JWTExpiryMin:          getEnvAsInt("JWT_EXPIRY_MIN", 60),
		RedisEnabled:          getEnvAsBool("REDIS_ENABLED", true),
		RedisHost:             getEnv("REDIS_HOST", "localhost"),
		RedisPort:             getEnv("REDIS_PORT", "6379"),
		RedisPassword:         getEnv("REDIS_PASSWORD", ""),
		RedisDB:               getEnvAsInt("REDIS_DB", 0),
		RateLimitAuth:         getEnvAsInt("RATE_LIMIT_AUTH", 5),
		RateLimitChatRequests: getEnvAsInt("RATE_LIMIT_CHAT_REQUESTS", 20),
		RateLimitWindowSec:    getEnvAsInt("RATE_LIMIT_WINDOW_SEC", 60),
		OutboxIntervalMs:      getEnvAsInt("OUTBOX_INTERVAL_MS", 500),
		OutboxBatchSize:       getEnvAsInt("OUTBOX_BATCH_SIZE", 100),
		CORSAllowedOrigins:    getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsList(key string, fallback []string) []string {
	valueStr := strings.TrimSpace(getEnv(key, ""))
	if valueStr == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
