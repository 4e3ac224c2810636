package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	SMTP      SMTPConfig
	Storage   StorageConfig
	Scheduler SchedulerConfig
	Outbox    OutboxConfig
	Intake    IntakeConfig
}

type ServerConfig struct {
	Port           int `mapstructure:"port"`
	TimeoutSeconds int `mapstructure:"timeoutSeconds"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpiryHours int    `mapstructure:"expiry_hours"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type StorageConfig struct {
	Bucket string `mapstructure:"bucket"`
}

// IntakeConfig tunes the inbound mailbox poller.
type IntakeConfig struct {
	PollSeconds int `mapstructure:"poll_seconds"`
}

func (c IntakeConfig) PollInterval() time.Duration {
	if c.PollSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.PollSeconds) * time.Second
}

// SchedulerConfig tunes the renewal worker. Timezone is the IANA name of
// the location used for day boundaries; an empty value means UTC.
type SchedulerConfig struct {
	IntervalMinutes int    `mapstructure:"interval_minutes"`
	Timezone        string `mapstructure:"timezone"`
	StaleAfterHours int    `mapstructure:"stale_after_hours"`
}

func (c SchedulerConfig) Interval() time.Duration {
	if c.IntervalMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(c.IntervalMinutes) * time.Minute
}

func (c SchedulerConfig) StaleAfter() time.Duration {
	if c.StaleAfterHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.StaleAfterHours) * time.Hour
}

func (c SchedulerConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}

type OutboxConfig struct {
	Channel      string `mapstructure:"channel"`
	BatchSize    int    `mapstructure:"batch_size"`
	PollSeconds  int    `mapstructure:"poll_seconds"`
	RetainedDays int    `mapstructure:"retained_days"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.timeoutSeconds", 30)
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("jwt.expiry_hours", 24)
	viper.SetDefault("scheduler.interval_minutes", 15)
	viper.SetDefault("scheduler.stale_after_hours", 24)
	viper.SetDefault("outbox.channel", "ordonnance.events")
	viper.SetDefault("outbox.batch_size", 100)
	viper.SetDefault("outbox.poll_seconds", 5)
	viper.SetDefault("intake.poll_seconds", 60)

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}
