package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds push service configuration loaded from the environment.
type Config struct {
	AppName   string
	LogLevel  string
	LogFormat string
	HTTPPort  string

	// ServiceAccountJSON is the raw Firebase service-account blob. Never log it.
	ServiceAccountJSON   string
	TokenEndpoint        string
	FCMEndpoint          string
	WebLink              string
	TokenExchangeTimeout time.Duration
	ProviderTimeout      time.Duration
	TokenCacheEnabled    bool
	TokenRefreshRatio    float64

	DatabaseURL          string
	StatusTable          string
	SettingsTable        string
	AdminTokenSettingKey string

	RedisURL    string
	SuppressTTL time.Duration

	RabbitURL       string
	BookingQueue    string
	DeadLetterQueue string
	PrefetchCount   int
	WorkerCount     int

	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration

	AdminWhatsAppNumber string
	CORSAllowedOrigins  []string
	FunctionsAPIKey     string
}

// Load loads configuration and performs basic validation.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		AppName:   getEnv("APP_NAME", "push_service"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
		HTTPPort:  getEnv("HTTP_PORT", "8082"),

		ServiceAccountJSON:   getEnv("FIREBASE_SERVICE_ACCOUNT", ""),
		TokenEndpoint:        getEnv("TOKEN_ENDPOINT", "https://oauth2.googleapis.com/token"),
		FCMEndpoint:          getEnv("FCM_ENDPOINT", "https://fcm.googleapis.com"),
		WebLink:              getEnv("WEB_LINK", "https://boitex-info.lovable.app/"),
		TokenExchangeTimeout: getEnvAsDuration("TOKEN_EXCHANGE_TIMEOUT", 5*time.Second),
		ProviderTimeout:      getEnvAsDuration("PROVIDER_TIMEOUT", 5*time.Second),
		TokenCacheEnabled:    getEnvAsBool("TOKEN_CACHE_ENABLED", true),
		TokenRefreshRatio:    getEnvAsFloat("TOKEN_REFRESH_RATIO", 0.9),

		DatabaseURL:          getEnv("DATABASE_URL", ""),
		StatusTable:          getEnv("STATUS_TABLE", "push_deliveries"),
		SettingsTable:        getEnv("SETTINGS_TABLE", "settings"),
		AdminTokenSettingKey: getEnv("ADMIN_TOKEN_SETTING_KEY", "admin_fcm_token"),

		RedisURL:    getEnv("REDIS_URL", ""),
		SuppressTTL: getEnvAsDuration("SUPPRESS_TTL", 24*time.Hour),

		RabbitURL:       getEnv("RABBITMQ_URL", ""),
		BookingQueue:    getEnv("BOOKING_QUEUE", "booking.queue"),
		DeadLetterQueue: getEnv("BOOKING_DLQ", "booking.failed"),
		PrefetchCount:   getEnvAsInt("PREFETCH", 20),
		WorkerCount:     getEnvAsInt("WORKER_COUNT", 2),

		RetryMaxAttempts:    getEnvAsInt("RETRY_MAX_ATTEMPTS", 3),
		RetryInitialBackoff: getEnvAsDuration("RETRY_INITIAL_BACKOFF", time.Second),
		RetryMaxBackoff:     getEnvAsDuration("RETRY_MAX_BACKOFF", 10*time.Second),

		AdminWhatsAppNumber: getEnv("ADMIN_WHATSAPP_NUMBER", ""),
		CORSAllowedOrigins:  getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		FunctionsAPIKey:     getEnv("FUNCTIONS_API_KEY", ""),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var missing []string
	if strings.TrimSpace(c.ServiceAccountJSON) == "" {
		missing = append(missing, "FIREBASE_SERVICE_ACCOUNT")
	}
	if c.TokenEndpoint == "" {
		missing = append(missing, "TOKEN_ENDPOINT")
	}
	if c.FCMEndpoint == "" {
		missing = append(missing, "FCM_ENDPOINT")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missing)
	}
	if c.TokenRefreshRatio <= 0 || c.TokenRefreshRatio > 1 {
		return fmt.Errorf("TOKEN_REFRESH_RATIO must be in (0, 1], got %v", c.TokenRefreshRatio)
	}
	return nil
}

func getEnv(key, def string) string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	return value
}

func getEnvAsInt(key string, def int) int {
	if value, ok := os.LookupEnv(key); ok {
		i, err := strconv.Atoi(value)
		if err != nil {
			log.Printf("invalid int for %s, using default %d: %v", key, def, err)
			return def
		}
		return i
	}
	return def
}

func getEnvAsFloat(key string, def float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			log.Printf("invalid float for %s, using default %v: %v", key, def, err)
			return def
		}
		return f
	}
	return def
}

func getEnvAsBool(key string, def bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(value)
		if err != nil {
			log.Printf("invalid bool for %s, using default %t: %v", key, def, err)
			return def
		}
		return b
	}
	return def
}

func getEnvAsDuration(key string, def time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(value)
		if err != nil {
			log.Printf("invalid duration for %s, using default %s: %v", key, def, err)
			return def
		}
		return d
	}
	return def
}

func getEnvAsList(key string, def []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return def
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
