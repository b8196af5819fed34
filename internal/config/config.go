package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string

	HTTPAddr string

	OTLPEndpoint string

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

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// RateLimitEnabled turns on redis-backed throttling of signed
	// stream URL issuance.
	RateLimitEnabled   bool
	StreamURLUserRate  float64
	StreamURLUserBurst int
	StreamURLAddrRate  float64
	StreamURLAddrBurst int

	// MediaSigningSecret signs time-limited CDN stream/upload URLs.
	MediaSigningSecret string
	MediaCDNBaseURL    string
	MediaURLTTLSeconds int

	// Webhook signing secrets per gateway.
	StripeWebhookSecret   string
	RazorpayWebhookSecret string
	PaypalWebhookSecret   string

	// PlatformFeeBps is the default platform revenue share in basis
	// points, overridable by the hot-reloaded revenue config file.
	PlatformFeeBps int

	SchedulerEnabled bool

	// Bootstrap credentials for the first admin account. Left empty in
	// production once real accounts exist.
	AdminBootstrapEmail    string
	AdminBootstrapPassword string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "cadenza"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),

		HTTPAddr: getenv("HTTP_ADDR", ":8080"),

		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "cadenza"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 10),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 50),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 3600),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 600),

		RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		RedisDB:       getenvInt("REDIS_DB", 0),

		RateLimitEnabled:   getenvBool("RATE_LIMIT_ENABLED", false),
		StreamURLUserRate:  getenvFloat("STREAM_URL_USER_RATE", 2),
		StreamURLUserBurst: getenvInt("STREAM_URL_USER_BURST", 10),
		StreamURLAddrRate:  getenvFloat("STREAM_URL_ADDR_RATE", 5),
		StreamURLAddrBurst: getenvInt("STREAM_URL_ADDR_BURST", 20),

		MediaSigningSecret: strings.TrimSpace(getenv("MEDIA_SIGNING_SECRET", "")),
		MediaCDNBaseURL:    strings.TrimRight(getenv("MEDIA_CDN_BASE_URL", "https://cdn.cadenza.local"), "/"),
		MediaURLTTLSeconds: getenvInt("MEDIA_URL_TTL_SECONDS", 300),

		StripeWebhookSecret:   strings.TrimSpace(getenv("STRIPE_WEBHOOK_SECRET", "")),
		RazorpayWebhookSecret: strings.TrimSpace(getenv("RAZORPAY_WEBHOOK_SECRET", "")),
		PaypalWebhookSecret:   strings.TrimSpace(getenv("PAYPAL_WEBHOOK_SECRET", "")),

		PlatformFeeBps: getenvInt("PLATFORM_FEE_BPS", 2000),

		SchedulerEnabled: getenvBool("SCHEDULER_ENABLED", true),

		AdminBootstrapEmail:    strings.TrimSpace(getenv("ADMIN_BOOTSTRAP_EMAIL", "")),
		AdminBootstrapPassword: getenv("ADMIN_BOOTSTRAP_PASSWORD", ""),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvFloat(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}
