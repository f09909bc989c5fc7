package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Payment   PaymentConfig
	Checkout  CheckoutConfig
	S3        S3Config
	Scheduler SchedulerConfig
}

type ServerConfig struct {
	Port        string
	GinMode     string
	Environment string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	CartTTL  time.Duration
}

type JWTConfig struct {
	Secret             string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

type PaymentConfig struct {
	// DemoMode bypasses Razorpay and simulates payments locally
	DemoMode        bool
	DemoDelay       time.Duration
	DemoAutoConfirm bool
	Razorpay        RazorpayConfig
}

type RazorpayConfig struct {
	KeyID      string
	KeySecret  string
	BaseURL    string
	Currency   string
	StoreName  string
	ThemeColor string
}

type CheckoutConfig struct {
	OrderNumberPrefix     string
	FreeShippingThreshold decimal.Decimal
	ShippingFee           decimal.Decimal
	TaxRate               decimal.Decimal
	DefaultCountry        string
	RequireLogin          bool
	MaxLineQuantity       int
	PaymentTimeout        time.Duration // 0 waits for the hosted UI indefinitely
	IdempotencyTTL        time.Duration
}

type S3Config struct {
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	BaseURL         string // CloudFront or S3 direct URL
}

type SchedulerConfig struct {
	OrphanOrderSpec string
	OrphanOrderTTL  time.Duration
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:        getEnv("SERVER_PORT", "8080"),
			GinMode:     getEnv("GIN_MODE", "debug"),
			Environment: getEnv("ENVIRONMENT", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "carpore"),
			Password: getEnv("DB_PASSWORD", "carpore"),
			DBName:   getEnv("DB_NAME", "carpore"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Enabled:  getEnvBool("REDIS_ENABLED", true),
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			CartTTL:  parseDuration(getEnv("CART_TTL", "168h"), 7*24*time.Hour),
		},
		JWT: JWTConfig{
			Secret:             getEnv("JWT_SECRET", "your-secret-key"),
			AccessTokenExpiry:  parseDuration(getEnv("JWT_ACCESS_TOKEN_EXPIRY", "15m"), 15*time.Minute),
			RefreshTokenExpiry: parseDuration(getEnv("JWT_REFRESH_TOKEN_EXPIRY", "168h"), 7*24*time.Hour),
		},
		CORS: CORSConfig{
			AllowedOrigins: parseSlice(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "console"),
		},
		Payment: PaymentConfig{
			DemoMode:        getEnvBool("PAYMENT_DEMO_MODE", true),
			DemoDelay:       parseDuration(getEnv("PAYMENT_DEMO_DELAY", "2s"), 2*time.Second),
			DemoAutoConfirm: getEnvBool("PAYMENT_DEMO_AUTO_CONFIRM", false),
			Razorpay: RazorpayConfig{
				KeyID:      getEnv("RAZORPAY_KEY_ID", ""),
				KeySecret:  getEnv("RAZORPAY_KEY_SECRET", ""),
				BaseURL:    getEnv("RAZORPAY_BASE_URL", "https://api.razorpay.com/v1"),
				Currency:   getEnv("RAZORPAY_CURRENCY", "INR"),
				StoreName:  getEnv("RAZORPAY_STORE_NAME", "CarPore"),
				ThemeColor: getEnv("RAZORPAY_THEME_COLOR", "#FBBF24"),
			},
		},
		Checkout: CheckoutConfig{
			OrderNumberPrefix:     getEnv("ORDER_NUMBER_PREFIX", "CP"),
			FreeShippingThreshold: getEnvDecimal("FREE_SHIPPING_THRESHOLD", decimal.NewFromInt(500)),
			ShippingFee:           getEnvDecimal("SHIPPING_FEE", decimal.NewFromInt(50)),
			TaxRate:               getEnvDecimal("TAX_RATE", decimal.Zero),
			DefaultCountry:        getEnv("DEFAULT_COUNTRY", "India"),
			RequireLogin:          getEnvBool("CHECKOUT_REQUIRE_LOGIN", true),
			MaxLineQuantity:       getEnvInt("CART_MAX_LINE_QUANTITY", 0),
			PaymentTimeout:        parseDuration(getEnv("CHECKOUT_PAYMENT_TIMEOUT", "0s"), 0),
			IdempotencyTTL:        parseDuration(getEnv("IDEMPOTENCY_TTL", "24h"), 24*time.Hour),
		},
		S3: S3Config{
			Region:          getEnv("AWS_REGION", "ap-south-1"),
			Bucket:          getEnv("AWS_S3_BUCKET", "carpore-catalog"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			BaseURL:         getEnv("AWS_S3_BASE_URL", ""),
		},
		Scheduler: SchedulerConfig{
			OrphanOrderSpec: getEnv("ORPHAN_ORDER_SWEEP_SPEC", "@every 15m"),
			OrphanOrderTTL:  parseDuration(getEnv("ORPHAN_ORDER_TTL", "2h"), 2*time.Hour),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects combinations the server cannot run with
func (c *Config) Validate() error {
	if !c.Payment.DemoMode {
		if c.Payment.Razorpay.KeyID == "" || c.Payment.Razorpay.KeySecret == "" {
			return errors.New("razorpay key id and secret are required when demo mode is off")
		}
	}
	if c.Checkout.ShippingFee.IsNegative() || c.Checkout.FreeShippingThreshold.IsNegative() {
		return errors.New("shipping fee and free shipping threshold must not be negative")
	}
	if c.Checkout.TaxRate.IsNegative() || c.Checkout.TaxRate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("tax rate must be between 0 and 1, got %s", c.Checkout.TaxRate)
	}
	if c.Checkout.OrderNumberPrefix == "" {
		return errors.New("order number prefix must not be empty")
	}
	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		log.Printf("Invalid bool %s=%s, using default %v", key, value, defaultValue)
		return defaultValue
	}
	return b
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Invalid int %s=%s, using default %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		log.Printf("Invalid decimal %s=%s, using default %s", key, value, defaultValue)
		return defaultValue
	}
	return d
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	duration, err := time.ParseDuration(s)
	if err != nil {
		log.Printf("Invalid duration %s, using default %s", s, fallback)
		return fallback
	}
	return duration
}

func parseSlice(s string) []string {
	result := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}
