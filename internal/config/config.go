// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Filename string `yaml:"filename"`
}

// EmailConfig configures Amazon SES. An empty sender disables SES and
// messages are only logged.
type EmailConfig struct {
	Region          string `yaml:"region"`
	Sender          string `yaml:"sender"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"-"` // Loaded from environment
}

func (e EmailConfig) Enabled() bool {
	return e.Sender != ""
}

// SMSConfig configures Twilio. An empty account SID disables SMS delivery.
type SMSConfig struct {
	AccountSID    string `yaml:"account_sid"`
	FromNumber    string `yaml:"from_number"`
	DefaultRegion string `yaml:"default_region"`
	AuthToken     string `yaml:"-"` // Loaded from environment
}

func (s SMSConfig) Enabled() bool {
	return s.AccountSID != ""
}

type NotificationsConfig struct {
	RatePerSecond float64 `yaml:"rate_per_second"`
	Burst         int     `yaml:"burst"`
	SMSFallback   bool    `yaml:"sms_fallback"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
	TrustProxy        bool    `yaml:"trust_proxy"`
}

// SchedulerConfig holds the standard five-field cron expression of each
// maintenance job.
type SchedulerConfig struct {
	SweepExpiredTokens    string `yaml:"sweep_expired_tokens"`
	AutoCompleteBookings  string `yaml:"auto_complete_bookings"`
	AutoCancelBookings    string `yaml:"auto_cancel_bookings"`
	DispatchNotifications string `yaml:"dispatch_notifications"`
	SendDailyReminders    string `yaml:"send_daily_reminders"`
	PurgeNotifications    string `yaml:"purge_notifications"`
}

func (s SchedulerConfig) expressions() map[string]string {
	return map[string]string{
		"sweep_expired_tokens":   s.SweepExpiredTokens,
		"auto_complete_bookings": s.AutoCompleteBookings,
		"auto_cancel_bookings":   s.AutoCancelBookings,
		"dispatch_notifications": s.DispatchNotifications,
		"send_daily_reminders":   s.SendDailyReminders,
		"purge_notifications":    s.PurgeNotifications,
	}
}

type Config struct {
	App struct {
		Name            string `yaml:"name"`
		Environment     string `yaml:"environment"`
		Port            int    `yaml:"port"`
		BaseURL         string `yaml:"base_url"`
		Timezone        string `yaml:"timezone"`
		ShutdownTimeout int    `yaml:"shutdown_timeout_seconds"`
	} `yaml:"app"`

	Database      DatabaseConfig      `yaml:"database"`
	Email         EmailConfig         `yaml:"email"`
	SMS           SMSConfig           `yaml:"sms"`
	Notifications NotificationsConfig `yaml:"notifications"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	Scheduler     SchedulerConfig     `yaml:"scheduler"`

	Features struct {
		EnableMetrics bool `yaml:"enable_metrics"`
		EnableDebug   bool `yaml:"enable_debug"`
	} `yaml:"features"`

	location *time.Location
}

// Load loads both .env and yaml configuration
func Load(configPath string) (*Config, error) {
	// Load .env file if it exists
	envPath := filepath.Join(filepath.Dir(configPath), ".env")
	if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration, applies defaults and environment secrets,
// and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	cfg.applyDefaults()

	// Load sensitive values from environment
	cfg.Email.SecretAccessKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	cfg.SMS.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.Environment == "" {
		c.App.Environment = "development"
	}
	if c.App.Timezone == "" {
		c.App.Timezone = "UTC"
	}
	if c.App.ShutdownTimeout == 0 {
		c.App.ShutdownTimeout = 30
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.SMS.DefaultRegion == "" {
		c.SMS.DefaultRegion = "US"
	}
	if c.Notifications.RatePerSecond == 0 {
		c.Notifications.RatePerSecond = 10
	}
	if c.Notifications.Burst == 0 {
		c.Notifications.Burst = 10
	}
	if c.RateLimit.RequestsPerSecond == 0 {
		c.RateLimit.RequestsPerSecond = 10
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 20
	}

	s := &c.Scheduler
	setDefault(&s.SweepExpiredTokens, "0 3 * * *")
	setDefault(&s.AutoCompleteBookings, "0 * * * *")
	setDefault(&s.AutoCancelBookings, "30 * * * *")
	setDefault(&s.DispatchNotifications, "* * * * *")
	setDefault(&s.SendDailyReminders, "0 8 * * *")
	setDefault(&s.PurgeNotifications, "0 4 * * *")
}

func setDefault(field *string, value string) {
	if strings.TrimSpace(*field) == "" {
		*field = value
	}
}

func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app name is required")
	}
	if c.App.Port == 0 {
		return fmt.Errorf("app port is required")
	}

	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.App.Timezone, err)
	}
	c.location = loc

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Filename == "" {
			return fmt.Errorf("database filename is required for sqlite")
		}
	case "":
		return fmt.Errorf("database driver is required")
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	if c.Email.Enabled() {
		if c.Email.Region == "" || c.Email.AccessKeyID == "" {
			return fmt.Errorf("email region and access key id are required when a sender is set")
		}
		if c.Email.SecretAccessKey == "" {
			return fmt.Errorf("AWS_SECRET_ACCESS_KEY is required when a sender is set")
		}
	}
	if c.SMS.Enabled() {
		if c.SMS.FromNumber == "" {
			return fmt.Errorf("sms from number is required when twilio is enabled")
		}
		if c.SMS.AuthToken == "" {
			return fmt.Errorf("TWILIO_AUTH_TOKEN is required when twilio is enabled")
		}
	}

	if c.Notifications.RatePerSecond < 0 || c.RateLimit.RequestsPerSecond < 0 {
		return fmt.Errorf("rates must not be negative")
	}

	for name, expr := range c.Scheduler.expressions() {
		if _, err := cron.ParseStandard(expr); err != nil {
			return fmt.Errorf("invalid cron expression for %s: %w", name, err)
		}
	}

	return nil
}

// Location returns the configured timezone, UTC when unset or invalid.
func (c *Config) Location() *time.Location {
	if c.location != nil {
		return c.location
	}
	if loc, err := time.LoadLocation(c.App.Timezone); err == nil && c.App.Timezone != "" {
		return loc
	}
	return time.UTC
}

func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}
