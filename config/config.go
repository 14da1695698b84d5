package config

import (
	"errors"
	"io/fs"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultJWTSecret is used when JWT_SECRET_KEY is unset. Never use it in production.
const DefaultJWTSecret = "task-tracker-dev-secret-change-me"

// Config holds the process configuration.
type Config struct {
	HTTPAddr        string
	CORSOrigins     string
	ShutdownTimeout time.Duration

	DBPath  string
	DBDebug bool

	JWT JWT

	RedisAddr       string
	RedisPassword   string
	RateLimit       int
	RateLimitWindow time.Duration
	CacheTTL        time.Duration

	AdminEmail    string
	AdminPassword string
}

// JWT holds token signing settings.
type JWT struct {
	SecretKey  string
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// RedisEnabled reports whether a Redis address was configured.
func (c Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}

// Load reads an optional .env file and then the environment.
func Load() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("Warning: failed to load .env file: %v", err)
	}

	cfg := Config{
		HTTPAddr:        getEnv("HTTP_ADDR", ":3000"),
		CORSOrigins:     getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		DBPath:          getEnv("DB_PATH", "task_tracker.db"),
		DBDebug:         getEnvBool("DB_DEBUG", false),
		JWT: JWT{
			SecretKey:  getEnv("JWT_SECRET_KEY", DefaultJWTSecret),
			Issuer:     getEnv("JWT_ISSUER", "task-tracker"),
			AccessTTL:  getEnvDuration("JWT_ACCESS_TTL", 15*time.Minute),
			RefreshTTL: getEnvDuration("JWT_REFRESH_TTL", 7*24*time.Hour),
		},
		RedisAddr:       getEnv("REDIS_ADDR", ""),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RateLimit:       getEnvInt("RATE_LIMIT", 100),
		RateLimitWindow: getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		CacheTTL:        getEnvDuration("CACHE_TTL", 5*time.Minute),
		AdminEmail:      getEnv("ADMIN_EMAIL", ""),
		AdminPassword:   getEnv("ADMIN_PASSWORD", ""),
	}

	if cfg.JWT.SecretKey == DefaultJWTSecret {
		log.Println("Warning: JWT_SECRET_KEY not set, using development secret")
	}

	return cfg
}

// getEnv returns environment variable value or default.
func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns environment variable as a positive int or default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil && intVal > 0 {
			return intVal
		}
		log.Printf("Warning: invalid int value for %s: %s, using default: %d", key, value, defaultValue)
	}
	return defaultValue
}

// getEnvDuration returns environment variable as a positive duration or default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil && duration > 0 {
			return duration
		}
		log.Printf("Warning: invalid duration value for %s: %s, using default: %s", key, value, defaultValue)
	}
	return defaultValue
}

// getEnvBool returns environment variable as bool or default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
		log.Printf("Warning: invalid bool value for %s: %s, using default: %t", key, value, defaultValue)
	}
	return defaultValue
}
