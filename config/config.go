package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Admin     AdminConfig
	AWS       AWSConfig
	Razorpay  RazorpayConfig
	Payments  PaymentsConfig
	Email     EmailConfig
	WhatsApp  WhatsAppConfig
	Content   ContentConfig
	RateLimit RateLimitConfig
	Log       LogConfig
}

// RazorpayConfig holds webhook and API credentials.
type RazorpayConfig struct {
	KeyID         string
	KeySecret     string
	WebhookSecret string
	BaseURL       string
}

// PaymentsConfig controls payment webhook processing.
type PaymentsConfig struct {
	TrackedProductIDs  []string // empty = every product is tracked
	CaptureOnAuthorize bool
	TxMaxAttempts      int
}

// EmailConfig for SMTP delivery of invite emails.
type EmailConfig struct {
	FromAddress string
	FromName    string
	SMTPHost    string
	SMTPPort    int
	SMTPUser    string
	SMTPPass    string
	Delivery    string // "direct" or "queue"
	SendsPerSec float64
}

// WhatsAppConfig holds the Business webhook and Graph API settings.
type WhatsAppConfig struct {
	Enabled      bool
	VerifyToken  string
	GraphAPIURL  string // full messages endpoint, e.g. https://graph.facebook.com/v19.0/<phone-id>/messages
	GraphToken   string
	TemplateName string
}

// ContentConfig holds the upstream sources for the gear and trail endpoints.
type ContentConfig struct {
	GearSheetCSVURL  string
	NotionToken      string
	NotionDatabaseID string
	NotionBaseURL    string
	NotionVersion    string
	CacheTTLSeconds  int
}

// RateLimitConfig holds ulule-style formatted rates (e.g. "300-M").
type RateLimitConfig struct {
	Content string
}

// LogConfig holds logger settings. Empty File logs to stdout only.
type LogConfig struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// AdminConfig holds the single back-office account used for reconciliation.
type AdminConfig struct {
	Email        string
	PasswordHash string // bcrypt
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is (e.g. postgres://localhost:5432/trails?sslmode=disable)
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds admin token settings.
type JWTConfig struct {
	Secret      string
	ExpireHours int
}

// AWSConfig holds S3 settings for the raw webhook archive. Empty ArchiveBucket disables archiving.
type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	ArchiveBucket   string
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	if c.Host == "" || c.DBName == "" {
		return ""
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
// It does not validate; call Validate before wiring anything.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "3000"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 10),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 10),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", ""),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", ""),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: getEnvInt("DB_MAX_CONNS", 10),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", ""),
			ExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 12),
		},
		Admin: AdminConfig{
			Email:        getEnv("ADMIN_EMAIL", ""),
			PasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
		},
		AWS: AWSConfig{
			Region:          getEnv("AWS_REGION", "ap-south-1"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			ArchiveBucket:   getEnv("AWS_S3_WEBHOOK_ARCHIVE_BUCKET", ""),
		},
		Razorpay: RazorpayConfig{
			KeyID:         getEnv("RAZORPAY_KEY_ID", ""),
			KeySecret:     getEnv("RAZORPAY_KEY_SECRET", ""),
			WebhookSecret: getEnv("RAZORPAY_WEBHOOK_SECRET", ""),
			BaseURL:       getEnv("RAZORPAY_BASE_URL", "https://api.razorpay.com"),
		},
		Payments: PaymentsConfig{
			TrackedProductIDs:  splitTrim(getEnv("TRACKED_PRODUCT_IDS", ""), ","),
			CaptureOnAuthorize: getEnvBool("CAPTURE_ON_AUTHORIZE", false),
			TxMaxAttempts:      getEnvInt("PAYMENT_TX_MAX_ATTEMPTS", 5),
		},
		Email: EmailConfig{
			FromAddress: getEnv("EMAIL_FROM_ADDRESS", getEnv("EMAIL_USER", "")),
			FromName:    getEnv("EMAIL_FROM_NAME", "Manav"),
			SMTPHost:    getEnv("SMTP_HOST", "smtp.gmail.com"),
			SMTPPort:    getEnvInt("SMTP_PORT", 587),
			SMTPUser:    getEnv("SMTP_USER", getEnv("EMAIL_USER", "")),
			SMTPPass:    getEnv("SMTP_PASS", getEnv("EMAIL_PASSWORD", "")),
			Delivery:    getEnv("EMAIL_DELIVERY", "direct"),
			SendsPerSec: getEnvFloat("EMAIL_SENDS_PER_SEC", 1),
		},
		WhatsApp: WhatsAppConfig{
			Enabled:      getEnvBool("WHATSAPP_ENABLED", true),
			VerifyToken:  getEnv("WHATSAPP_VERIFY_TOKEN", getEnv("MYTOKEN", "")),
			GraphAPIURL:  getEnv("FACEBOOK_GRAPH_API_URL", ""),
			GraphToken:   getEnv("FACEBOOK_GRAPH_API_TOKEN", ""),
			TemplateName: getEnv("WHATSAPP_SAFE_RETURN_TEMPLATE", "safe_return_confirmation_beta2"),
		},
		Content: ContentConfig{
			GearSheetCSVURL:  getEnv("GEAR_SHEET_CSV_URL", ""),
			NotionToken:      getEnv("NOTION_TOKEN", ""),
			NotionDatabaseID: getEnv("NOTION_DATABASE_ID", ""),
			NotionBaseURL:    getEnv("NOTION_BASE_URL", "https://api.notion.com"),
			NotionVersion:    getEnv("NOTION_VERSION", "2022-06-28"),
			CacheTTLSeconds:  getEnvInt("CONTENT_CACHE_TTL_SEC", 600),
		},
		RateLimit: RateLimitConfig{
			Content: getEnv("RATE_LIMIT_CONTENT", "300-M"),
		},
		Log: LogConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			File:       getEnv("LOG_FILE", ""),
			MaxSizeMB:  getEnvInt("LOG_MAX_SIZE_MB", 64),
			MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 5),
			MaxAgeDays: getEnvInt("LOG_MAX_AGE_DAYS", 30),
			Compress:   getEnvBool("LOG_COMPRESS", true),
		},
	}
	return cfg, nil
}

// Validate reports every missing required setting at once so startup fails loudly
// instead of a request failing later.
func (c *Config) Validate() error {
	var errs []error
	require := func(value, key string) {
		if strings.TrimSpace(value) == "" {
			errs = append(errs, fmt.Errorf("%s must be set", key))
		}
	}

	require(c.Razorpay.WebhookSecret, "RAZORPAY_WEBHOOK_SECRET")
	require(c.Database.DSN(), "DATABASE_URL (or DB_HOST/DB_NAME)")
	require(c.Email.FromAddress, "EMAIL_FROM_ADDRESS")
	require(c.Email.SMTPHost, "SMTP_HOST")
	require(c.Email.SMTPUser, "SMTP_USER")
	require(c.Email.SMTPPass, "SMTP_PASS")
	require(c.JWT.Secret, "JWT_SECRET")

	if c.Payments.CaptureOnAuthorize {
		require(c.Razorpay.KeyID, "RAZORPAY_KEY_ID")
		require(c.Razorpay.KeySecret, "RAZORPAY_KEY_SECRET")
	}
	if c.WhatsApp.Enabled {
		require(c.WhatsApp.VerifyToken, "WHATSAPP_VERIFY_TOKEN")
		require(c.WhatsApp.GraphAPIURL, "FACEBOOK_GRAPH_API_URL")
		require(c.WhatsApp.GraphToken, "FACEBOOK_GRAPH_API_TOKEN")
	}
	switch c.Email.Delivery {
	case "direct", "queue":
	default:
		errs = append(errs, fmt.Errorf("EMAIL_DELIVERY must be direct or queue, got %q", c.Email.Delivery))
	}
	return errors.Join(errs...)
}

// IsTrackedProduct reports whether a product id passes the allow-list.
// An empty allow-list tracks every product.
func (c PaymentsConfig) IsTrackedProduct(productID string) bool {
	if len(c.TrackedProductIDs) == 0 {
		return true
	}
	for _, id := range c.TrackedProductIDs {
		if id == productID {
			return true
		}
	}
	return false
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := cast.ToIntE(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if n, err := cast.ToFloat64E(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := cast.ToBoolE(v); err == nil {
			return b
		}
	}
	return fallback
}

func splitTrim(s, sep string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(s, sep) {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
