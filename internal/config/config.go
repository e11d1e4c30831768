package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/smallbiznis/giftpool/pkg/db"
)

// Config holds application configuration.
type Config struct {
	AppName        string
	AppVersion     string
	Environment    string
	HTTPAddr       string
	PublicBaseURL  string
	MigrateOnStart bool
	NodeID         int64

	OTLPEndpoint string

	DB    db.Config
	Redis RedisConfig

	GiftCard GiftCardConfig
	Stripe   StripeConfig
	Donation DonationConfig
	Email    EmailConfig
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func (c RedisConfig) Enabled() bool {
	return strings.TrimSpace(c.Addr) != ""
}

type GiftCardConfig struct {
	ClientID     string
	ClientSecret string
	Audience     string
	AuthURL      string
	BaseURL      string
	ProductID    int64
	CountryCode  string
	SenderName   string
}

type StripeConfig struct {
	SecretKey string
	BaseURL   string
}

const (
	DonationModeLedger = "ledger"
	DonationModeHTTP   = "http"
)

type DonationConfig struct {
	Mode    string
	BaseURL string
	APIKey  string
}

type EmailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:        getenv("APP_SERVICE", "giftpool"),
		AppVersion:     getenv("APP_VERSION", "0.1.0"),
		Environment:    getenv("ENVIRONMENT", "development"),
		HTTPAddr:       getenv("HTTP_ADDR", ":8080"),
		PublicBaseURL:  strings.TrimRight(getenv("PUBLIC_BASE_URL", "http://localhost:3000"), "/"),
		MigrateOnStart: getenvBool("MIGRATE_ON_START", true),
		NodeID:         getenvInt64("SNOWFLAKE_NODE_ID", 1),
		OTLPEndpoint:   getenv("OTLP_ENDPOINT", "localhost:4317"),
		DB: db.Config{
			Type:            getenv("DATABASE_TYPE", "postgres"),
			Host:            getenv("DATABASE_HOST", "localhost"),
			Port:            getenv("DATABASE_PORT", "5432"),
			Name:            getenv("DATABASE_NAME", "giftpool"),
			User:            getenv("DATABASE_USER", "postgres"),
			Password:        getenv("DATABASE_PASSWORD", ""),
			SSLMode:         getenv("DATABASE_SSLMODE", "disable"),
			Path:            getenv("DATABASE_PATH", ""),
			MaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
			MaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
			ConnMaxLifetime: time.Duration(getenvInt("DATABASE_CONN_MAX_LIFETIME_SECONDS", 1800)) * time.Second,
			ConnMaxIdleTime: time.Duration(getenvInt("DATABASE_CONN_MAX_IDLE_SECONDS", 300)) * time.Second,
		},
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: strings.TrimSpace(getenv("REDIS_PASSWORD", "")),
			DB:       getenvInt("REDIS_DB", 0),
		},
		GiftCard: GiftCardConfig{
			ClientID:     strings.TrimSpace(getenv("RELOADLY_CLIENT_ID", "")),
			ClientSecret: strings.TrimSpace(getenv("RELOADLY_CLIENT_SECRET", "")),
			Audience:     getenv("RELOADLY_AUDIENCE", "https://giftcards.reloadly.com"),
			AuthURL:      getenv("RELOADLY_AUTH_URL", "https://auth.reloadly.com/oauth/token"),
			BaseURL:      getenv("RELOADLY_BASE_URL", "https://giftcards.reloadly.com"),
			ProductID:    getenvInt64("RELOADLY_PRODUCT_ID", 0),
			CountryCode:  strings.ToUpper(getenv("RELOADLY_COUNTRY_CODE", "US")),
			SenderName:   getenv("RELOADLY_SENDER_NAME", "GiftPool"),
		},
		Stripe: StripeConfig{
			SecretKey: strings.TrimSpace(getenv("STRIPE_SECRET_KEY", "")),
			BaseURL:   getenv("STRIPE_BASE_URL", "https://api.stripe.com"),
		},
		Donation: DonationConfig{
			Mode:    normalizeDonationMode(getenv("DONATION_MODE", DonationModeLedger)),
			BaseURL: strings.TrimRight(getenv("DONATION_BASE_URL", ""), "/"),
			APIKey:  strings.TrimSpace(getenv("DONATION_API_KEY", "")),
		},
		Email: EmailConfig{
			SMTPHost:     getenv("SMTP_HOST", "localhost"),
			SMTPPort:     getenvInt("SMTP_PORT", 1025),
			SMTPUsername: getenv("SMTP_USERNAME", ""),
			SMTPPassword: getenv("SMTP_PASSWORD", ""),
			SMTPFrom:     getenv("SMTP_FROM", "GiftPool <no-reply@giftpool.local>"),
		},
	}

	return cfg
}

func normalizeDonationMode(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case DonationModeHTTP:
		return DonationModeHTTP
	default:
		return DonationModeLedger
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
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
