package redis

import (
	"errors"
	"time"
)

// DeployMode is the Redis topology the client connects to
type DeployMode string

const (
	ModeSingle   DeployMode = "single"
	ModeSentinel DeployMode = "sentinel"
	ModeCluster  DeployMode = "cluster"
)

// Config Redis configuration
type Config struct {
	Mode DeployMode `mapstructure:"mode" yaml:"mode"`

	// Addrs holds one address in single mode, the sentinels in sentinel
	// mode and the seed nodes in cluster mode
	Addrs      []string `mapstructure:"addrs" yaml:"addrs"`
	MasterName string   `mapstructure:"master_name" yaml:"master_name"`

	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db"`

	PoolSize     int `mapstructure:"pool_size" yaml:"pool_size"`
	MinIdleConns int `mapstructure:"min_idle_conns" yaml:"min_idle_conns"`

	DialTimeout  time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	MaxRetries   int           `mapstructure:"max_retries" yaml:"max_retries"`

	EnableTLS bool `mapstructure:"enable_tls" yaml:"enable_tls"`

	// KeyPrefix namespaces every key written by this service
	KeyPrefix string `mapstructure:"key_prefix" yaml:"key_prefix"`
}

// DefaultConfig returns a single node configuration for localhost
func DefaultConfig() *Config {
	return &Config{
		Mode:         ModeSingle,
		Addrs:        []string{"localhost:6379"},
		PoolSize:     20,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		MaxRetries:   2,
		KeyPrefix:    "videoshare:",
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if len(c.Addrs) == 0 {
		return errors.New("redis: at least one address is required")
	}

	switch c.Mode {
	case ModeSingle:
		if len(c.Addrs) != 1 {
			return errors.New("redis: single mode takes exactly one address")
		}
	case ModeSentinel:
		if c.MasterName == "" {
			return errors.New("redis: master name is required in sentinel mode")
		}
	case ModeCluster:
		if c.DB != 0 {
			return errors.New("redis: cluster mode only supports db 0")
		}
	default:
		return ErrInvalidConfig
	}

	if c.PoolSize < 0 || c.MinIdleConns < 0 {
		return errors.New("redis: pool sizes must be >= 0")
	}
	return nil
}
