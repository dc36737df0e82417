package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig
	MongoDB    MongoDBConfig
	JWT        JWTConfig
	Email      EmailConfig
	Automation AutomationConfig
	Events     EventsConfig
	Log        LogConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port           string   `validate:"required,numeric"`
	AllowedOrigins []string
}

// MongoDBConfig holds MongoDB-specific configuration
type MongoDBConfig struct {
	URI      string `validate:"required"`
	Database string `validate:"required"`
}

// JWTConfig holds JWT-specific configuration
type JWTConfig struct {
	Secret string `validate:"required,min=16"`
	Issuer string
	// TTLHours is the lifetime of tokens issued by campaignctl
	TTLHours int `validate:"gte=1"`
}

// EmailConfig selects and configures the outbound mail provider
type EmailConfig struct {
	Provider     string `validate:"oneof=smtp resend mock"`
	From         string `validate:"required"`
	SMTPHost     string `validate:"required_if=Provider smtp"`
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	ResendAPIKey string `validate:"required_if=Provider resend"`
}

// AutomationConfig holds the scheduled job and progress settings
type AutomationConfig struct {
	BatchSize     int    `validate:"gte=1,lte=1000"`
	ProcessorCron string `validate:"required"`
	ReminderCron  string `validate:"required"`
	InstancerCron string `validate:"required"`
	Timezone      string `validate:"required"`
	// AutoRetry requeues failed notifications with exponential backoff up to MaxRetries
	AutoRetry      bool
	MaxRetries     int `validate:"gte=0"`
	RetryBaseDelay string
	// MaxCatchUp bounds how many missed instances one instancer run creates per campaign
	MaxCatchUp  int `validate:"gte=1"`
	XPPerVideo  int `validate:"gte=0"`
	XPPerAnswer int `validate:"gte=0"`
	AppBaseURL  string
}

// EventsConfig holds the AMQP broker settings; an empty URL disables publishing
type EventsConfig struct {
	URL      string
	Exchange string
}

// LogConfig holds logger settings
type LogConfig struct {
	Level      string `validate:"oneof=debug info warn error"`
	Format     string `validate:"oneof=json text"`
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// LoadEnv loads variables from .env files into the process environment.
// A missing file is not an error.
func LoadEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		_ = godotenv.Load(f)
	}
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// It's okay if config file is not found, we'll use environment variables
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks the struct tags on every section
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// setDefaults sets default values for configuration
func setDefaults(v *viper.Viper) {
	v.SetDefault("Server.Port", "8080")
	v.SetDefault("Server.AllowedOrigins", []string{"http://localhost:3000"})
	v.SetDefault("MongoDB.URI", "mongodb://localhost:27017")
	v.SetDefault("MongoDB.Database", "learnloop")
	v.SetDefault("JWT.Secret", "")
	v.SetDefault("JWT.Issuer", "")
	v.SetDefault("JWT.TTLHours", 24)
	v.SetDefault("Email.Provider", "mock")
	v.SetDefault("Email.From", "LearnLoop <no-reply@learnloop.local>")
	v.SetDefault("Email.SMTPHost", "")
	v.SetDefault("Email.SMTPPort", 587)
	v.SetDefault("Email.SMTPUsername", "")
	v.SetDefault("Email.SMTPPassword", "")
	v.SetDefault("Email.ResendAPIKey", "")
	v.SetDefault("Automation.BatchSize", 100)
	v.SetDefault("Automation.ProcessorCron", "*/5 * * * *")
	v.SetDefault("Automation.ReminderCron", "0 9 * * *")
	v.SetDefault("Automation.InstancerCron", "0 0 * * *")
	v.SetDefault("Automation.Timezone", "UTC")
	v.SetDefault("Automation.AutoRetry", false)
	v.SetDefault("Automation.MaxRetries", 3)
	v.SetDefault("Automation.RetryBaseDelay", "5m")
	v.SetDefault("Automation.MaxCatchUp", 12)
	v.SetDefault("Automation.XPPerVideo", 10)
	v.SetDefault("Automation.XPPerAnswer", 5)
	v.SetDefault("Automation.AppBaseURL", "http://localhost:3000")
	v.SetDefault("Events.URL", "")
	v.SetDefault("Events.Exchange", "learnloop.campaigns")
	v.SetDefault("Log.Level", "info")
	v.SetDefault("Log.Format", "json")
	v.SetDefault("Log.File", "")
	v.SetDefault("Log.MaxSizeMB", 100)
	v.SetDefault("Log.MaxBackups", 5)
	v.SetDefault("Log.MaxAgeDays", 28)
}
