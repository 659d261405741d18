package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"outsourcing-market/internal/lifecycle"
	"outsourcing-market/internal/settlement"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Database   DatabaseConfig
	Server     ServerConfig
	App        AppConfig
	Settlement SettlementConfig
	Notify     NotifyConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver     string // postgres or sqlite
	Host       string
	Port       string
	User       string
	Password   string
	DBName     string
	SQLitePath string
}

// ServerConfig holds server settings
type ServerConfig struct {
	Port           string
	AllowedOrigins []string
}

// AppConfig holds application-specific settings
type AppConfig struct {
	JWTSecret   string
	Environment string
}

// SettlementConfig holds commission rates and the auto-completion policy
type SettlementConfig struct {
	WorkRequestRate  decimal.Decimal
	ServiceOrderRate decimal.Decimal
	ListingFee       int64
	AutoCompleteDays int
	WarningHours     int
}

// NotifyConfig holds outbound notification settings
type NotifyConfig struct {
	WebhookURL       string
	WebhookAdminOnly bool
	BaseURL          string
	QueueSize        int
	Workers          int
	ReminderInterval time.Duration
}

// policyFile is the optional YAML overlay named by CONFIG_FILE.
type policyFile struct {
	WorkRequestCommissionRate  string `yaml:"work_request_commission_rate"`
	ServiceOrderCommissionRate string `yaml:"service_order_commission_rate"`
	ListingFee                 *int64 `yaml:"listing_fee"`
	AutoCompleteDays           *int   `yaml:"auto_complete_days"`
	AutoCompleteWarningHours   *int   `yaml:"auto_complete_warning_hours"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	defaults := settlement.DefaultRates()
	config := &Config{
		Database: DatabaseConfig{
			Driver:     getEnv("DB_DRIVER", "postgres"),
			Host:       getEnv("DB_HOST", "localhost"),
			Port:       getEnv("DB_PORT", "5432"),
			User:       getEnv("DB_USER", "postgres"),
			Password:   getEnv("DB_PASSWORD", ""),
			DBName:     getEnv("DB_NAME", "outsourcing_market"),
			SQLitePath: getEnv("SQLITE_PATH", "outsourcing.db"),
		},
		Server: ServerConfig{
			Port:           getEnv("SERVER_PORT", "8080"),
			AllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		},
		App: AppConfig{
			JWTSecret:   getEnv("JWT_SECRET", ""),
			Environment: getEnv("APP_ENV", "development"),
		},
		Settlement: SettlementConfig{
			WorkRequestRate:  defaults.WorkRequest,
			ServiceOrderRate: defaults.ServiceOrder,
			ListingFee:       30000,
			AutoCompleteDays: 7,
			WarningHours:     24,
		},
		Notify: NotifyConfig{
			WebhookURL:       getEnv("NOTIFY_WEBHOOK_URL", ""),
			WebhookAdminOnly: getEnv("NOTIFY_WEBHOOK_ADMIN_ONLY", "true") == "true",
			BaseURL:          getEnv("APP_BASE_URL", "http://localhost:3000"),
		},
	}

	var err error
	if config.Settlement.WorkRequestRate, err = getEnvDecimal("WORK_REQUEST_COMMISSION_RATE", config.Settlement.WorkRequestRate); err != nil {
		return nil, err
	}
	if config.Settlement.ServiceOrderRate, err = getEnvDecimal("SERVICE_ORDER_COMMISSION_RATE", config.Settlement.ServiceOrderRate); err != nil {
		return nil, err
	}
	if config.Settlement.ListingFee, err = getEnvInt64("LISTING_FEE", config.Settlement.ListingFee); err != nil {
		return nil, err
	}
	if config.Notify.QueueSize, err = getEnvInt("NOTIFY_QUEUE_SIZE", 256); err != nil {
		return nil, err
	}
	if config.Notify.Workers, err = getEnvInt("NOTIFY_WORKERS", 2); err != nil {
		return nil, err
	}
	minutes, err := getEnvInt("REMINDER_INTERVAL_MINUTES", 15)
	if err != nil {
		return nil, err
	}
	config.Notify.ReminderInterval = time.Duration(minutes) * time.Minute

	if path := getEnv("CONFIG_FILE", ""); path != "" {
		if err := config.applyFile(path); err != nil {
			return nil, err
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// applyFile overlays settlement and lifecycle policy from a YAML file.
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var f policyFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if f.WorkRequestCommissionRate != "" {
		rate, err := decimal.NewFromString(f.WorkRequestCommissionRate)
		if err != nil {
			return fmt.Errorf("work_request_commission_rate: %w", err)
		}
		c.Settlement.WorkRequestRate = rate
	}
	if f.ServiceOrderCommissionRate != "" {
		rate, err := decimal.NewFromString(f.ServiceOrderCommissionRate)
		if err != nil {
			return fmt.Errorf("service_order_commission_rate: %w", err)
		}
		c.Settlement.ServiceOrderRate = rate
	}
	if f.ListingFee != nil {
		c.Settlement.ListingFee = *f.ListingFee
	}
	if f.AutoCompleteDays != nil {
		c.Settlement.AutoCompleteDays = *f.AutoCompleteDays
	}
	if f.AutoCompleteWarningHours != nil {
		c.Settlement.WarningHours = *f.AutoCompleteWarningHours
	}
	return nil
}

// Validate checks the settings the server cannot run without
func (c *Config) Validate() error {
	if c.App.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Database.Driver != "postgres" && c.Database.Driver != "sqlite" {
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	if err := c.Rates().Validate(); err != nil {
		return fmt.Errorf("invalid commission rate: %w", err)
	}
	if c.Settlement.ListingFee < 0 {
		return fmt.Errorf("listing fee must not be negative")
	}
	if c.Settlement.AutoCompleteDays <= 0 {
		return fmt.Errorf("auto_complete_days must be positive")
	}
	if c.Settlement.WarningHours < 0 || c.Settlement.WarningHours >= c.Settlement.AutoCompleteDays*24 {
		return fmt.Errorf("auto_complete_warning_hours must be shorter than the auto-complete period")
	}
	if c.Notify.QueueSize <= 0 || c.Notify.Workers <= 0 {
		return fmt.Errorf("notification queue size and workers must be positive")
	}
	return nil
}

// Rates returns the configured commission rates
func (c *Config) Rates() settlement.Rates {
	return settlement.Rates{
		WorkRequest:  c.Settlement.WorkRequestRate,
		ServiceOrder: c.Settlement.ServiceOrderRate,
	}
}

// Policy returns the configured auto-completion policy
func (c *Config) Policy() lifecycle.Policy {
	return lifecycle.Policy{
		AutoCompleteAfter: time.Duration(c.Settlement.AutoCompleteDays) * 24 * time.Hour,
		WarnBefore:        time.Duration(c.Settlement.WarningHours) * time.Hour,
	}
}

// GetDSN returns the connection string for the configured driver
func (c *Config) GetDSN() string {
	if c.Database.Driver == "sqlite" {
		return c.Database.SQLitePath
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
	)
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvInt64(key string, defaultValue int64) (int64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) (decimal.Decimal, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
