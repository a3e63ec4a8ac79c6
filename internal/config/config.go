// Package config provides configuration management for wurmstatus
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for wurmstatus
type Config struct {
	Wurm     WurmConfig     `yaml:"wurm"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Monitor  MonitorConfig  `yaml:"monitor"`
	Log      LogConfig      `yaml:"log"`
}

// WurmConfig holds connection options for the Wurm REST API
type WurmConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	APIKey       string        `yaml:"api_key"`
	APIKeyHeader string        `yaml:"api_key_header"`
	Timeout      time.Duration `yaml:"timeout"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         string        `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DatabaseConfig holds history database configuration
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// AuthConfig holds operator authentication configuration
type AuthConfig struct {
	JWTSecret    string        `yaml:"jwt_secret"`
	PasswordHash string        `yaml:"password_hash"`
	TokenExpiry  time.Duration `yaml:"token_expiry"`
}

// MonitorConfig holds status polling configuration
type MonitorConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	Retention    time.Duration `yaml:"retention"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Format string `yaml:"format"`
	Level  string `yaml:"level"`
}

// Supported database drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// DefaultJWTSecret is used when WURMSTATUS_JWT_SECRET is unset
const DefaultJWTSecret = "wurmstatus-dev-secret-change-in-production"

// Load loads configuration from environment with defaults
func Load() *Config {
	return &Config{
		Wurm: WurmConfig{
			Host:         getEnv("WURM_HOST", "localhost"),
			Port:         getEnvInt("WURM_PORT", 80),
			APIKey:       getEnv("WURM_API_KEY", ""),
			APIKeyHeader: getEnv("WURM_API_KEY_HEADER", ""),
			Timeout:      getEnvDuration("WURM_TIMEOUT", 30*time.Second),
		},
		Server: ServerConfig{
			Port:         getEnv("WURMSTATUS_PORT", "8090"),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Driver: getEnv("WURMSTATUS_DB_DRIVER", DriverSQLite),
			DSN:    getEnv("WURMSTATUS_DB_DSN", "./wurmstatus.db"),
		},
		Auth: AuthConfig{
			JWTSecret:    getEnv("WURMSTATUS_JWT_SECRET", DefaultJWTSecret),
			PasswordHash: getEnv("WURMSTATUS_PASSWORD_HASH", ""),
			TokenExpiry:  12 * time.Hour,
		},
		Monitor: MonitorConfig{
			PollInterval: getEnvDuration("WURMSTATUS_POLL_INTERVAL", 30*time.Second),
			Retention:    getEnvDuration("WURMSTATUS_RETENTION", 7*24*time.Hour),
		},
		Log: LogConfig{
			Format: getEnv("WURMSTATUS_LOG_FORMAT", "text"),
			Level:  getEnv("WURMSTATUS_LOG_LEVEL", "info"),
		},
	}
}

// LoadFile loads the environment configuration and overlays the YAML file at path.
// Keys missing from the file keep their environment or default values.
func LoadFile(path string) (*Config, error) {
	cfg := Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	return cfg, nil
}

// UsesDefaultJWTSecret reports whether tokens are signed with the built-in
// development secret, which anyone can use to forge operator tokens.
func (c *Config) UsesDefaultJWTSecret() bool {
	return c.Auth.JWTSecret == DefaultJWTSecret
}

// Validate checks the configuration for values the service cannot run with
func (c *Config) Validate() error {
	var errs []error

	if c.Wurm.Host == "" {
		errs = append(errs, errors.New("wurm.host is required"))
	}
	if c.Wurm.Port < 1 || c.Wurm.Port > 65535 {
		errs = append(errs, fmt.Errorf("wurm.port %d out of range", c.Wurm.Port))
	}
	if c.Wurm.Timeout < 0 {
		errs = append(errs, errors.New("wurm.timeout must not be negative"))
	}
	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("database.driver %q not supported", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn is required"))
	}
	if c.Monitor.PollInterval <= 0 {
		errs = append(errs, errors.New("monitor.poll_interval must be positive"))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret is required"))
	}

	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}
