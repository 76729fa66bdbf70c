// Package config provides configuration management for the application.
// It handles loading, validation, and access to configuration values from
// YAML files and environment variables via Viper.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/jonesrussell/godocscan/internal/logger"
)

// Defaults applied before the config file and environment are read.
const (
	defaultServerAddress      = ":8085"
	defaultServerReadTimeout  = 30 * time.Second
	defaultServerWriteTimeout = 30 * time.Second
	defaultServerIdleTimeout  = 60 * time.Second

	defaultScanCron          = "*/30 * * * *"
	defaultMaxAttempts       = 3
	defaultRetryDelayMinutes = 5
	defaultStuckThreshold    = 10 * time.Minute
	defaultPageSize          = 100

	defaultAnalysisTimeout = 120 * time.Second
	defaultAnalysisModel   = "gpt-4o-mini"

	defaultDBPort    = "5432"
	defaultDBSSLMode = "disable"
)

// Config represents the application configuration.
type Config struct {
	// Logger holds logger configuration.
	Logger logger.Config `yaml:"logger" mapstructure:"logger"`
	// Database holds PostgreSQL connection configuration.
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`
	// Server holds admin API server configuration.
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	// Scheduler holds scan/process scheduling configuration.
	Scheduler SchedulerConfig `yaml:"scheduler" mapstructure:"scheduler"`
	// Analysis holds AI analysis endpoint configuration.
	Analysis AnalysisConfig `yaml:"analysis" mapstructure:"analysis"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     string `yaml:"port" mapstructure:"port"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	DBName   string `yaml:"dbname" mapstructure:"dbname"`
	SSLMode  string `yaml:"sslmode" mapstructure:"sslmode"`
}

// Validate validates the database configuration.
func (c *DatabaseConfig) Validate() error {
	if c.Host == "" {
		return errors.New("database host is required")
	}
	if c.User == "" {
		return errors.New("database user is required")
	}
	if c.DBName == "" {
		return errors.New("database name is required")
	}
	return nil
}

// ServerConfig holds the admin API server settings.
type ServerConfig struct {
	Address      string        `yaml:"address" mapstructure:"address"`
	APIKey       string        `yaml:"api_key" mapstructure:"api_key"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
}

// Validate validates the server configuration.
func (c *ServerConfig) Validate() error {
	if c.Address == "" {
		return errors.New("server address is required")
	}
	return nil
}

// SchedulerConfig holds scan and queue processing settings.
type SchedulerConfig struct {
	// DefaultScanCron is used when an instance has no cron expression.
	DefaultScanCron string `yaml:"default_scan_cron" mapstructure:"default_scan_cron"`
	// MaxAttempts is the default attempt budget for new queue entries.
	MaxAttempts int `yaml:"max_attempts" mapstructure:"max_attempts"`
	// RetryDelayMinutes scales the linear retry backoff.
	RetryDelayMinutes int `yaml:"retry_delay_minutes" mapstructure:"retry_delay_minutes"`
	// StuckThreshold is how long a processing entry may sit before it is
	// considered orphaned.
	StuckThreshold time.Duration `yaml:"stuck_threshold" mapstructure:"stuck_threshold"`
	// PageSize is the remote fetch page size.
	PageSize int `yaml:"page_size" mapstructure:"page_size"`
}

// Validate validates the scheduler configuration.
func (c *SchedulerConfig) Validate() error {
	if c.MaxAttempts <= 0 {
		return errors.New("scheduler max_attempts must be positive")
	}
	if c.RetryDelayMinutes <= 0 {
		return errors.New("scheduler retry_delay_minutes must be positive")
	}
	if c.StuckThreshold <= 0 {
		return errors.New("scheduler stuck_threshold must be positive")
	}
	if c.PageSize <= 0 {
		return errors.New("scheduler page_size must be positive")
	}
	return nil
}

// AnalysisConfig holds settings for the AI analysis endpoint.
type AnalysisConfig struct {
	BaseURL string        `yaml:"base_url" mapstructure:"base_url"`
	APIKey  string        `yaml:"api_key" mapstructure:"api_key"`
	Model   string        `yaml:"model" mapstructure:"model"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// Validate validates the analysis configuration.
func (c *AnalysisConfig) Validate() error {
	if c.BaseURL == "" {
		return errors.New("analysis base_url is required")
	}
	if c.Model == "" {
		return errors.New("analysis model is required")
	}
	return nil
}

// Validate validates the full configuration.
func (c *Config) Validate() error {
	if err := c.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Scheduler.Validate(); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	if err := c.Analysis.Validate(); err != nil {
		return fmt.Errorf("analysis: %w", err)
	}
	return nil
}

// SetDefaults registers default values on the given Viper instance. It must
// run before ReadInConfig so environment variables and file values can
// override them.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.encoding", "console")
	v.SetDefault("logger.development", false)

	v.SetDefault("database.port", defaultDBPort)
	v.SetDefault("database.sslmode", defaultDBSSLMode)

	v.SetDefault("server.address", defaultServerAddress)
	v.SetDefault("server.read_timeout", defaultServerReadTimeout)
	v.SetDefault("server.write_timeout", defaultServerWriteTimeout)
	v.SetDefault("server.idle_timeout", defaultServerIdleTimeout)

	v.SetDefault("scheduler.default_scan_cron", defaultScanCron)
	v.SetDefault("scheduler.max_attempts", defaultMaxAttempts)
	v.SetDefault("scheduler.retry_delay_minutes", defaultRetryDelayMinutes)
	v.SetDefault("scheduler.stuck_threshold", defaultStuckThreshold)
	v.SetDefault("scheduler.page_size", defaultPageSize)

	v.SetDefault("analysis.model", defaultAnalysisModel)
	v.SetDefault("analysis.timeout", defaultAnalysisTimeout)
}

// Load unmarshals the given Viper instance into a Config and validates it.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}
