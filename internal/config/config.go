// Package config provides configuration management using viper.
// It supports loading from YAML files and environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage drivers accepted in database.driver.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds all application configuration.
type Config struct {
	Bot       BotConfig       `mapstructure:"bot"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Rewards   RewardsConfig   `mapstructure:"rewards"`
	Checkin   CheckinConfig   `mapstructure:"checkin"`
	Verify    VerifyConfig    `mapstructure:"verify"`
	Links     LinksConfig     `mapstructure:"links"`
	Broadcast BroadcastConfig `mapstructure:"broadcast"`
	Log       LogConfig       `mapstructure:"log"`
}

// BotConfig holds Telegram bot configuration.
type BotConfig struct {
	Token       string        `mapstructure:"token"`
	PollTimeout time.Duration `mapstructure:"poll_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// AdminConfig holds the identity of the single bot administrator.
type AdminConfig struct {
	ID int64 `mapstructure:"id"`
}

// RewardsConfig holds the fixed credit amounts granted by the bot.
type RewardsConfig struct {
	Registration int64 `mapstructure:"registration"`
	Referral     int64 `mapstructure:"referral"`
	Checkin      int64 `mapstructure:"checkin"`
}

// CheckinConfig controls the daily check-in command.
type CheckinConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Timezone string `mapstructure:"timezone"`
}

// VerifyConfig holds the verification price shown to users.
type VerifyConfig struct {
	Cost int64 `mapstructure:"cost"`
}

// LinksConfig holds external URLs printed in help texts.
type LinksConfig struct {
	ChannelURL string `mapstructure:"channel_url"`
	HelpURL    string `mapstructure:"help_url"`
}

// BroadcastConfig holds broadcast pacing.
type BroadcastConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// LogConfig holds logger output settings.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// Location resolves the check-in time zone. Empty means time.Local.
func (c *CheckinConfig) Location() (*time.Location, error) {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid checkin timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the config directory.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Environment variables use underscore separator and uppercase
	// e.g., BOT_TOKEN, DATABASE_HOST, ADMIN_ID
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file is optional - env vars can provide all config
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks values that have no safe fallback.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Rewards.Registration < 0 || c.Rewards.Referral < 0 || c.Rewards.Checkin < 0 {
		return fmt.Errorf("rewards must not be negative")
	}
	if _, err := c.Checkin.Location(); err != nil {
		return err
	}
	return nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Keys need a default to be picked up from the environment on Unmarshal.
	v.SetDefault("bot.token", "")
	v.SetDefault("bot.poll_timeout", "10s")

	// Database defaults
	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "pointsbot")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "pointsbot")
	v.SetDefault("database.pool_size", 20)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	v.SetDefault("admin.id", 0)

	v.SetDefault("rewards.registration", 1)
	v.SetDefault("rewards.referral", 2)
	v.SetDefault("rewards.checkin", 1)

	v.SetDefault("checkin.enabled", true)
	v.SetDefault("checkin.timezone", "Local")

	v.SetDefault("verify.cost", 1)

	v.SetDefault("links.channel_url", "")
	v.SetDefault("links.help_url", "")

	v.SetDefault("broadcast.interval", "50ms")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 50)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)
}

// IsAdmin reports whether userID is the configured administrator.
// An unset admin id matches nobody.
func (c *Config) IsAdmin(userID int64) bool {
	return c.Admin.ID != 0 && c.Admin.ID == userID
}
