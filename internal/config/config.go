package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	// Billing provider webhook verification.
	WebhookSecret    string
	WebhookMaxSkew   time.Duration
	WebhookBodyLimit int64

	// Voice platform (phone number provisioning).
	VoiceAPIBaseURL string
	VoiceAPIKey     string
	VoiceAPITimeout time.Duration

	// Operator alerting.
	SlackWebhookURL   string
	SlackAlertChannel string

	// Webhook endpoint rate limiting (redis-backed, disabled when no addr).
	RateLimitEnabled     bool
	RateLimitRedisAddr   string
	RateLimitRedisPass   string
	RateLimitRedisDB     int
	WebhookDeliveryRate  float64
	WebhookDeliveryBurst int

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:          getenv("APP_SERVICE", "vocaldesk"),
		AppVersion:       getenv("APP_VERSION", "0.1.0"),
		Environment:      getenv("ENVIRONMENT", "development"),
		HTTPAddr:         getenv("HTTP_ADDR", ":8080"),
		WebhookSecret:    strings.TrimSpace(getenv("BILLING_WEBHOOK_SECRET", "")),
		WebhookMaxSkew:   getenvDuration("BILLING_WEBHOOK_MAX_SKEW", 300*time.Second),
		WebhookBodyLimit: getenvInt64("BILLING_WEBHOOK_BODY_LIMIT", 256*1024),
		VoiceAPIBaseURL:  strings.TrimRight(getenv("VOICE_API_BASE_URL", ""), "/"),
		VoiceAPIKey:      strings.TrimSpace(getenv("VOICE_API_KEY", "")),
		VoiceAPITimeout:  getenvDuration("VOICE_API_TIMEOUT", 10*time.Second),

		SlackWebhookURL:   strings.TrimSpace(getenv("SLACK_WEBHOOK_URL", "")),
		SlackAlertChannel: getenv("SLACK_ALERT_CHANNEL", "#billing-alerts"),

		RateLimitEnabled:     getenvBool("RATE_LIMIT_ENABLED", false),
		RateLimitRedisAddr:   strings.TrimSpace(getenv("RATE_LIMIT_REDIS_ADDR", "")),
		RateLimitRedisPass:   strings.TrimSpace(getenv("RATE_LIMIT_REDIS_PASSWORD", "")),
		RateLimitRedisDB:     int(getenvInt64("RATE_LIMIT_REDIS_DB", 0)),
		WebhookDeliveryRate:  getenvFloat("WEBHOOK_DELIVERY_RATE", 50),
		WebhookDeliveryBurst: int(getenvInt64("WEBHOOK_DELIVERY_BURST", 100)),

		DBType:     getenv("DATABASE_TYPE", "postgres"),
		DBHost:     getenv("DATABASE_HOST", "localhost"),
		DBPort:     getenv("DATABASE_PORT", "5432"),
		DBName:     getenv("DATABASE_NAME", "postgres"),
		DBUser:     getenv("DATABASE_USER", "postgres"),
		DBPassword: getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:  getenv("DATABASE_SSLMODE", "disable"),
	}

	return cfg
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	if seconds, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Duration(seconds) * time.Second
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}
