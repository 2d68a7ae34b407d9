package logger

import (
	"fmt"
	"strings"
)

// Config defines the logger configuration
type Config struct {
	Level            string     `mapstructure:"level"`  // debug, info, warn, error
	Format           string     `mapstructure:"format"` // json, console
	Output           string     `mapstructure:"output"` // console, file, both
	File             FileConfig `mapstructure:"file"`
	EnableCaller     bool       `mapstructure:"enablecaller"`
	EnableStacktrace bool       `mapstructure:"enablestacktrace"`
}

// FileConfig defines rotated file output
type FileConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"maxsize"` // megabytes
	MaxAge     int    `mapstructure:"maxage"`  // days
	MaxBackups int    `mapstructure:"maxbackups"`
	Compress   bool   `mapstructure:"compress"`
}

// DefaultConfig returns default logger configuration
func DefaultConfig() *Config {
	return &Config{
		Level:            "info",
		Format:           "json",
		Output:           "console",
		EnableCaller:     true,
		EnableStacktrace: true,
		File: FileConfig{
			Filename:   "logs/video-share.log",
			MaxSize:    100,
			MaxAge:     30,
			MaxBackups: 10,
			Compress:   true,
		},
	}
}

var validLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "error": true,
	"dpanic": true, "panic": true, "fatal": true,
}

// Validate validates the logger configuration
func (c *Config) Validate() error {
	if !validLevels[strings.ToLower(c.Level)] {
		return fmt.Errorf("invalid log level %q", c.Level)
	}

	switch c.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log format %q, must be json or console", c.Format)
	}

	switch c.Output {
	case "console":
	case "file", "both":
		if c.File.Filename == "" {
			return fmt.Errorf("log file name is required when output is %q", c.Output)
		}
		if c.File.MaxSize <= 0 || c.File.MaxAge <= 0 {
			return fmt.Errorf("log file maxsize and maxage must be greater than 0")
		}
		if c.File.MaxBackups < 0 {
			return fmt.Errorf("log file maxbackups must be >= 0")
		}
	default:
		return fmt.Errorf("invalid log output %q, must be console, file or both", c.Output)
	}

	return nil
}
