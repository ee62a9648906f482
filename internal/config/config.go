package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds application configuration values.
type Config struct {
	AppPort   string
	AppName   string
	LogLevel  string
	LogFormat string

	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	KafkaBrokers  string
	KafkaTopic    string
	KafkaGroupID  string

	JWTSecret         string
	TokenExpires      time.Duration
	AdminID           string
	AdminUsername     string
	AdminPasswordHash string
	AdminPassword     string

	MidtransServerKey    string
	MidtransClientKey    string
	MidtransIsProduction bool

	BackendURL          string
	BackendAPIKey       string
	BackendAPIKeyHeader string

	WARelayURL    string
	WARelayToken  string
	WACountryCode string

	TelegramBotToken  string
	TelegramAdminChat string

	AdminFee        int64
	EventsURL       string
	TicketURLPrefix string
}

// Load reads environment variables and returns a populated Config.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		AppPort:   getEnv("APP_PORT", "8080"),
		AppName:   getEnv("APP_NAME", "Tiketa Checkout"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		KafkaBrokers:  getEnv("KAFKA_BROKERS", ""),
		KafkaTopic:    getEnv("KAFKA_TOPIC", "ticket.confirmed"),
		KafkaGroupID:  getEnv("KAFKA_GROUP_ID", "tiketa-notifier"),

		JWTSecret:         getEnv("JWT_SECRET", ""),
		TokenExpires:      getEnvDuration("JWT_TTL_HOURS", 12) * time.Hour,
		AdminID:           getEnv("ADMIN_ID", "1"),
		AdminUsername:     getEnv("ADMIN_USERNAME", "admin"),
		AdminPasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
		AdminPassword:     getEnv("ADMIN_PASSWORD", ""),

		MidtransServerKey:    getEnv("MIDTRANS_SERVER_KEY", ""),
		MidtransClientKey:    getEnv("MIDTRANS_CLIENT_KEY", ""),
		MidtransIsProduction: getEnvBool("MIDTRANS_IS_PRODUCTION", false),

		BackendURL:          strings.TrimRight(getEnv("BACKEND_API_URL", "http://localhost:8000/api"), "/"),
		BackendAPIKey:       getEnv("BACKEND_API_KEY", ""),
		BackendAPIKeyHeader: getEnv("BACKEND_API_KEY_HEADER", "x-api-key"),

		WARelayURL:    getEnv("WA_RELAY_URL", "https://api.fonnte.com/send"),
		WARelayToken:  getEnv("WA_RELAY_TOKEN", ""),
		WACountryCode: getEnv("WA_COUNTRY_CODE", "62"),

		TelegramBotToken:  getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramAdminChat: getEnv("TELEGRAM_ADMIN_CHAT_ID", ""),

		AdminFee:        int64(getEnvInt("ADMIN_FEE", 2000)),
		EventsURL:       getEnv("EVENTS_URL", "/events"),
		TicketURLPrefix: getEnv("TICKET_URL_PREFIX", "/tickets/"),
	}

	if cfg.AppPort == "" {
		logrus.Fatal("APP_PORT must be set")
	}

	if cfg.JWTSecret == "" {
		logrus.Fatal("JWT_SECRET must be set")
	}

	return cfg
}

// MidtransConfigured reports whether the payment provider credential is present.
func (c *Config) MidtransConfigured() bool {
	return strings.TrimSpace(c.MidtransServerKey) != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(value)
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback int) time.Duration {
	return time.Duration(getEnvInt(key, fallback))
}
