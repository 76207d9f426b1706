package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// PlaceholderStripeKey is the sentinel secret that, like an empty key, selects offline checkout.
const PlaceholderStripeKey = "sk_test_placeholder_key"

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Stripe   StripeConfig
	Storage  StorageConfig
	Redis    RedisConfig
	Sentry   SentryConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port          int
	Environment   string
	FrontendURL   string
	PublicBaseURL string
	MaxUploadMB   int64
}

// Development reports whether the process runs in a local development or
// test environment, where missing secrets are generated on the fly.
func (c ServerConfig) Development() bool {
	switch c.Environment {
	case "development", "dev", "test":
		return true
	}
	return false
}

// Production reports whether cookies must be marked Secure.
func (c ServerConfig) Production() bool {
	return c.Environment == "production"
}

type DatabaseConfig struct {
	Driver       string
	URL          string
	MongoName    string
	StoreTimeout time.Duration
}

type AuthConfig struct {
	JWTSecret     string
	JWTTTL        time.Duration
	SessionSecret string
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	Currency      string
}

// Live reports whether a real provider credential is configured.
func (c StripeConfig) Live() bool {
	return c.SecretKey != "" && c.SecretKey != PlaceholderStripeKey
}

type StorageConfig struct {
	Driver    string
	UploadDir string
	S3        S3Config
}

type S3Config struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	PublicURL       string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type SentryConfig struct {
	DSN         string
	Environment string
}

type LogConfig struct {
	Level  string
	Format string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", 5000)
	v.SetDefault("FRONTEND_URL", "http://localhost:5173")
	v.SetDefault("PUBLIC_BASE_URL", "http://localhost:5000")
	v.SetDefault("MAX_UPLOAD_MB", 10)
	v.SetDefault("DATABASE_DRIVER", "sqlite")
	v.SetDefault("DATABASE_URL", "./data/autovault.db")
	v.SetDefault("MONGO_DATABASE", "autovault")
	v.SetDefault("STORE_TIMEOUT", "5s")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_TTL", "720h")
	v.SetDefault("SESSION_SECRET", "")
	v.SetDefault("STRIPE_SECRET_KEY", PlaceholderStripeKey)
	v.SetDefault("STRIPE_WEBHOOK_SECRET", "")
	v.SetDefault("CURRENCY", "usd")
	v.SetDefault("STORAGE_DRIVER", "local")
	v.SetDefault("UPLOAD_DIR", "./uploads")
	v.SetDefault("S3_ENDPOINT", "")
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("S3_BUCKET", "autovault")
	v.SetDefault("S3_ACCESS_KEY_ID", "")
	v.SetDefault("S3_SECRET_ACCESS_KEY", "")
	v.SetDefault("S3_PUBLIC_URL", "")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("SENTRY_DSN", "")
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
}

// Load reads configuration from the environment, optionally layered over configFile
// (any format viper understands, e.g. .env or .yaml). Environment variables win.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}
	v.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Port:          v.GetInt("PORT"),
			Environment:   strings.ToLower(v.GetString("ENVIRONMENT")),
			FrontendURL:   strings.TrimRight(v.GetString("FRONTEND_URL"), "/"),
			PublicBaseURL: strings.TrimRight(v.GetString("PUBLIC_BASE_URL"), "/"),
			MaxUploadMB:   v.GetInt64("MAX_UPLOAD_MB"),
		},
		Database: DatabaseConfig{
			Driver:       v.GetString("DATABASE_DRIVER"),
			URL:          v.GetString("DATABASE_URL"),
			MongoName:    v.GetString("MONGO_DATABASE"),
			StoreTimeout: v.GetDuration("STORE_TIMEOUT"),
		},
		Auth: AuthConfig{
			JWTSecret:     v.GetString("JWT_SECRET"),
			JWTTTL:        v.GetDuration("JWT_TTL"),
			SessionSecret: v.GetString("SESSION_SECRET"),
		},
		Stripe: StripeConfig{
			SecretKey:     v.GetString("STRIPE_SECRET_KEY"),
			WebhookSecret: v.GetString("STRIPE_WEBHOOK_SECRET"),
			Currency:      strings.ToLower(v.GetString("CURRENCY")),
		},
		Storage: StorageConfig{
			Driver:    v.GetString("STORAGE_DRIVER"),
			UploadDir: v.GetString("UPLOAD_DIR"),
			S3: S3Config{
				Endpoint:        v.GetString("S3_ENDPOINT"),
				Region:          v.GetString("S3_REGION"),
				Bucket:          v.GetString("S3_BUCKET"),
				AccessKeyID:     v.GetString("S3_ACCESS_KEY_ID"),
				SecretAccessKey: v.GetString("S3_SECRET_ACCESS_KEY"),
				PublicURL:       strings.TrimRight(v.GetString("S3_PUBLIC_URL"), "/"),
			},
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Sentry: SentryConfig{
			DSN:         v.GetString("SENTRY_DSN"),
			Environment: strings.ToLower(v.GetString("ENVIRONMENT")),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "sqlite", "mongo":
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.Database.Driver)
	}
	switch c.Storage.Driver {
	case "local", "s3":
	default:
		return fmt.Errorf("unsupported STORAGE_DRIVER %q", c.Storage.Driver)
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("PORT must be positive, got %d", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("MAX_UPLOAD_MB must be positive, got %d", c.Server.MaxUploadMB)
	}
	if c.Database.StoreTimeout <= 0 {
		return fmt.Errorf("STORE_TIMEOUT must be positive")
	}
	if c.Auth.JWTSecret == "" && !c.Server.Development() {
		return fmt.Errorf("JWT_SECRET is required in the %s environment", c.Server.Environment)
	}
	if c.Auth.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive")
	}
	if c.Stripe.Live() && c.Stripe.WebhookSecret == "" {
		return fmt.Errorf("STRIPE_WEBHOOK_SECRET is required when STRIPE_SECRET_KEY is set")
	}
	if c.Storage.Driver == "s3" && c.Storage.S3.Bucket == "" {
		return fmt.Errorf("S3_BUCKET is required for the s3 storage driver")
	}
	return nil
}
