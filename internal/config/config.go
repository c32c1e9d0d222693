package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port      string
	Env       string
	LogLevel  string
	LogFormat string

	// Appointment service (the upstream hospital API)
	AppointmentServiceURL     string
	AppointmentServiceTimeout time.Duration

	// Reconciliation loop
	PollInterval   time.Duration
	InitialRefresh bool

	// Session context
	SessionBackend string // "redis" or "static"
	SessionID      string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int

	// Static session fixtures (used when SessionBackend is "static")
	StaticUserJSON    string
	StaticBearerToken string

	// Notification feed
	NotificationFeedSize int
}

// Load reads configuration from the environment. A .env file in the working
// directory is honored when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:      getEnv("PORT", "8080"),
		Env:       getEnv("ENV", "development"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		AppointmentServiceURL:     strings.TrimRight(getEnv("APPOINTMENT_SERVICE_URL", "http://localhost:8081"), "/"),
		AppointmentServiceTimeout: getEnvAsDuration("APPOINTMENT_SERVICE_TIMEOUT", 15*time.Second),

		PollInterval:   getEnvAsDuration("POLL_INTERVAL", 30*time.Second),
		InitialRefresh: getEnvAsBool("INITIAL_REFRESH", true),

		SessionBackend: strings.ToLower(strings.TrimSpace(getEnv("SESSION_BACKEND", "redis"))),
		SessionID:      getEnv("SESSION_ID", "default"),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisDB:        getEnvAsInt("REDIS_DB", 0),

		StaticUserJSON:    getEnv("STATIC_USER_JSON", ""),
		StaticBearerToken: getEnv("STATIC_BEARER_TOKEN", ""),

		NotificationFeedSize: getEnvAsInt("NOTIFICATION_FEED_SIZE", 50),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
