package database

import (
	"errors"
	"fmt"
	"time"
)

// Config defines the database configuration
type Config struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"` // disable, require, verify-ca, verify-full
	Timezone string `mapstructure:"timezone"`

	MaxIdleConns    int           `mapstructure:"maxidleconns"`
	MaxOpenConns    int           `mapstructure:"maxopenconns"`
	ConnMaxLifetime time.Duration `mapstructure:"connmaxlifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"connmaxidletime"`

	LogLevel      string        `mapstructure:"loglevel"` // silent, error, warn, info
	SlowThreshold time.Duration `mapstructure:"slowthreshold"`
	PrepareStmt   bool          `mapstructure:"preparestmt"`
	AutoMigrate   bool          `mapstructure:"automigrate"`
}

// DefaultConfig returns the default database configuration
func DefaultConfig() *Config {
	return &Config{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "postgres",
		DBName:   "videoshare",
		SSLMode:  "disable",
		Timezone: "UTC",

		MaxIdleConns:    10,
		MaxOpenConns:    50,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 10 * time.Minute,

		LogLevel:      "warn",
		SlowThreshold: 200 * time.Millisecond,
		PrepareStmt:   true,
		AutoMigrate:   true,
	}
}

var (
	validSSLModes  = map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	validLogLevels = map[string]bool{"silent": true, "error": true, "warn": true, "info": true}
)

// Validate validates the database configuration
func (c *Config) Validate() error {
	if c.Host == "" {
		return errors.New("database host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return errors.New("database port must be between 1 and 65535")
	}
	if c.User == "" {
		return errors.New("database user is required")
	}
	if c.DBName == "" {
		return errors.New("database name is required")
	}
	if !validSSLModes[c.SSLMode] {
		return fmt.Errorf("invalid SSL mode %q", c.SSLMode)
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid database log level %q", c.LogLevel)
	}
	if c.MaxIdleConns < 0 || c.MaxOpenConns < 0 {
		return errors.New("connection pool sizes must be >= 0")
	}
	if c.MaxOpenConns > 0 && c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max idle connections cannot exceed max open connections")
	}
	if c.ConnMaxLifetime < 0 || c.ConnMaxIdleTime < 0 || c.SlowThreshold < 0 {
		return errors.New("durations must be >= 0")
	}
	return nil
}

// DSN returns the PostgreSQL connection string
func (c *Config) DSN() string {
	tz := c.Timezone
	if tz == "" {
		tz = "UTC"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode, tz)
}
