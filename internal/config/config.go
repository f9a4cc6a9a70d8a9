package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Schedule ScheduleConfig
	Notify   NotifyConfig
	Azure    AzureConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port               string
	Environment        string
	ShutdownTimeout    time.Duration
	SlowRequestTimeout time.Duration
	AllowedOrigins     []string
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds the optional Redis used for notification rate limits.
// An empty Addr selects the in-process limiter.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// ScheduleConfig holds reminder and status windows
type ScheduleConfig struct {
	DueWindow       time.Duration
	GraceWindow     time.Duration
	DefaultDelay    time.Duration
	MaxDelay        time.Duration
	CheckInterval   time.Duration
	BatchSize       int
	AutoMissAfter   time.Duration
	DefaultTimezone string
}

// NotifyConfig holds delivery channel settings. A channel without
// credentials is not registered.
type NotifyConfig struct {
	SendGrid      SendGridConfig
	Twilio        TwilioConfig
	MQTT          MQTTConfig
	DeviceTimeout time.Duration
	MaxRetries    int
	RetryBackoff  time.Duration
	RateLimit     int
	RateWindow    time.Duration
}

// SendGridConfig holds email delivery configuration
type SendGridConfig struct {
	APIKey   string
	FromName string
	FromAddr string
}

// TwilioConfig holds SMS delivery configuration
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	From       string
}

// MQTTConfig holds MQTT broker configuration
type MQTTConfig struct {
	BrokerURL   string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	QoS         int
}

// AzureConfig holds Azure service configuration
type AzureConfig struct {
	OpenAI  OpenAIConfig
	Storage StorageConfig
}

// OpenAIConfig holds Azure OpenAI configuration
type OpenAIConfig struct {
	Endpoint   string
	APIKey     string
	Deployment string
}

// StorageConfig holds Azure Blob Storage configuration
type StorageConfig struct {
	AccountName     string
	AccountKey      string
	ReportContainer string
}

// SecurityConfig holds the key notification targets are encrypted with
type SecurityConfig struct {
	EncryptionKey string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string // json or console
}

// OpenAIEnabled reports whether report narratives can be generated
func (c AzureConfig) OpenAIEnabled() bool {
	return c.OpenAI.Endpoint != "" && c.OpenAI.APIKey != "" && c.OpenAI.Deployment != ""
}

// BlobEnabled reports whether reports are stored in Azure Blob Storage
func (c AzureConfig) BlobEnabled() bool {
	return c.Storage.AccountName != "" && c.Storage.AccountKey != ""
}

// Load reads configuration from a .env file when present, then from
// environment variables
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	// Set default values
	setDefaults(v)

	// Read from environment variables
	v.AutomaticEnv()

	// Bind specific environment variables
	bindEnvVars(v)

	// Unmarshal into config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.shutdowntimeout", 30*time.Second)
	v.SetDefault("server.slowrequesttimeout", 2*time.Second)
	v.SetDefault("server.allowedorigins", []string{"*"})

	// Database defaults
	v.SetDefault("database.maxopenconns", 25)
	v.SetDefault("database.maxidleconns", 5)
	v.SetDefault("database.connmaxlifetime", 5*time.Minute)

	// Schedule defaults
	v.SetDefault("schedule.duewindow", 15*time.Minute)
	v.SetDefault("schedule.gracewindow", 10*time.Minute)
	v.SetDefault("schedule.defaultdelay", 15*time.Minute)
	v.SetDefault("schedule.maxdelay", 12*time.Hour)
	v.SetDefault("schedule.checkinterval", time.Minute)
	v.SetDefault("schedule.batchsize", 100)
	v.SetDefault("schedule.automissafter", time.Duration(0))
	v.SetDefault("schedule.defaulttimezone", "UTC")

	// Notification defaults
	v.SetDefault("notify.sendgrid.fromname", "Med Alert Hub")
	v.SetDefault("notify.mqtt.clientid", "med-alert-hub")
	v.SetDefault("notify.mqtt.topicprefix", "medications")
	v.SetDefault("notify.mqtt.qos", 1)
	v.SetDefault("notify.devicetimeout", 5*time.Second)
	v.SetDefault("notify.maxretries", 2)
	v.SetDefault("notify.retrybackoff", time.Second)
	v.SetDefault("notify.ratelimit", 20)
	v.SetDefault("notify.ratewindow", time.Hour)

	// Azure Storage defaults
	v.SetDefault("azure.storage.reportcontainer", "adherence-reports")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// bindEnvVars binds environment variables to config keys
func bindEnvVars(v *viper.Viper) {
	// Server
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.environment", "ENV", "ENVIRONMENT")
	v.BindEnv("server.allowedorigins", "CORS_ALLOWED_ORIGINS")

	// Database
	v.BindEnv("database.url", "DATABASE_URL")

	// Redis
	v.BindEnv("redis.addr", "REDIS_ADDR")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("redis.db", "REDIS_DB")

	// Schedule
	v.BindEnv("schedule.duewindow", "DUE_WINDOW")
	v.BindEnv("schedule.gracewindow", "GRACE_WINDOW")
	v.BindEnv("schedule.defaultdelay", "DEFAULT_DELAY")
	v.BindEnv("schedule.checkinterval", "REMINDER_CHECK_INTERVAL")
	v.BindEnv("schedule.automissafter", "AUTO_MISS_AFTER")
	v.BindEnv("schedule.defaulttimezone", "DEFAULT_TIMEZONE")

	// SendGrid
	v.BindEnv("notify.sendgrid.apikey", "SENDGRID_API_KEY")
	v.BindEnv("notify.sendgrid.fromname", "SENDGRID_FROM_NAME")
	v.BindEnv("notify.sendgrid.fromaddr", "SENDGRID_FROM_EMAIL")

	// Twilio
	v.BindEnv("notify.twilio.accountsid", "TWILIO_ACCOUNT_SID")
	v.BindEnv("notify.twilio.authtoken", "TWILIO_AUTH_TOKEN")
	v.BindEnv("notify.twilio.from", "TWILIO_FROM_NUMBER")

	// MQTT
	v.BindEnv("notify.mqtt.brokerurl", "MQTT_BROKER_URL")
	v.BindEnv("notify.mqtt.clientid", "MQTT_CLIENT_ID")
	v.BindEnv("notify.mqtt.username", "MQTT_USERNAME")
	v.BindEnv("notify.mqtt.password", "MQTT_PASSWORD")
	v.BindEnv("notify.mqtt.topicprefix", "MQTT_TOPIC_PREFIX")

	// Notification delivery
	v.BindEnv("notify.devicetimeout", "DEVICE_TIMEOUT")
	v.BindEnv("notify.maxretries", "NOTIFY_MAX_RETRIES")
	v.BindEnv("notify.ratelimit", "NOTIFY_RATE_LIMIT")

	// Azure OpenAI
	v.BindEnv("azure.openai.endpoint", "AZURE_OPENAI_ENDPOINT")
	v.BindEnv("azure.openai.apikey", "AZURE_OPENAI_API_KEY")
	v.BindEnv("azure.openai.deployment", "AZURE_OPENAI_DEPLOYMENT")

	// Azure Storage
	v.BindEnv("azure.storage.accountname", "AZURE_STORAGE_ACCOUNT_NAME")
	v.BindEnv("azure.storage.accountkey", "AZURE_STORAGE_ACCOUNT_KEY")
	v.BindEnv("azure.storage.reportcontainer", "AZURE_STORAGE_REPORT_CONTAINER")

	// Security
	v.BindEnv("security.encryptionkey", "ENCRYPTION_KEY")

	// Logging
	v.BindEnv("logging.level", "LOG_LEVEL")
	v.BindEnv("logging.format", "LOG_FORMAT")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate required fields
	if c.Database.URL == "" {
		return fmt.Errorf("database.url is required")
	}

	if c.Security.EncryptionKey == "" {
		return fmt.Errorf("security.encryptionkey is required")
	}
	key, err := base64.StdEncoding.DecodeString(c.Security.EncryptionKey)
	if err != nil {
		return fmt.Errorf("security.encryptionkey must be base64: %w", err)
	}
	if len(key) != 32 {
		return fmt.Errorf("security.encryptionkey must decode to 32 bytes, got %d", len(key))
	}

	if _, err := time.LoadLocation(c.Schedule.DefaultTimezone); err != nil {
		return fmt.Errorf("schedule.defaulttimezone %q is not a known time zone", c.Schedule.DefaultTimezone)
	}

	if c.Schedule.DueWindow <= 0 || c.Schedule.GraceWindow <= 0 {
		return fmt.Errorf("schedule windows must be positive")
	}

	if c.Schedule.DefaultDelay <= 0 || c.Schedule.DefaultDelay > c.Schedule.MaxDelay {
		return fmt.Errorf("schedule.defaultdelay must be in (0, %s]", c.Schedule.MaxDelay)
	}

	if c.Schedule.AutoMissAfter < 0 {
		return fmt.Errorf("schedule.automissafter must not be negative")
	}

	if c.Notify.SendGrid.APIKey != "" && c.Notify.SendGrid.FromAddr == "" {
		return fmt.Errorf("notify.sendgrid.fromaddr is required when a SendGrid key is set")
	}

	if c.Notify.MQTT.QoS < 0 || c.Notify.MQTT.QoS > 2 {
		return fmt.Errorf("notify.mqtt.qos must be 0, 1 or 2")
	}

	if (c.Azure.Storage.AccountName == "") != (c.Azure.Storage.AccountKey == "") {
		return fmt.Errorf("azure storage requires both account name and account key")
	}

	return nil
}
