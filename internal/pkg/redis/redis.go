package redis

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/lk2023060901/video-share-backend/internal/pkg/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Client wraps a go-redis universal client and prefixes every key
type Client struct {
	rdb    redis.UniversalClient
	config *Config
	logger *logger.Logger
}

// New builds a client for cfg.Mode and pings it
func New(cfg *Config, log *logger.Logger) (*Client, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := NewWithClient(newUniversalClient(cfg), cfg, log)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Ping(ctx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	log.Info("redis client initialized",
		zap.String("mode", string(cfg.Mode)),
		zap.Strings("addrs", cfg.Addrs),
	)
	return c, nil
}

// NewWithClient wraps an existing go-redis client
func NewWithClient(rdb redis.UniversalClient, cfg *Config, log *logger.Logger) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Client{rdb: rdb, config: cfg, logger: log}
}

func universalOptions(cfg *Config) *redis.UniversalOptions {
	opts := &redis.UniversalOptions{
		Addrs:        cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		MaxRetries:   cfg.MaxRetries,
	}
	if cfg.Mode == ModeSentinel {
		opts.MasterName = cfg.MasterName
	}
	if cfg.EnableTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return opts
}

func newUniversalClient(cfg *Config) redis.UniversalClient {
	opts := universalOptions(cfg)
	switch cfg.Mode {
	case ModeSentinel:
		return redis.NewFailoverClient(opts.Failover())
	case ModeCluster:
		return redis.NewClusterClient(opts.Cluster())
	default:
		return redis.NewClient(opts.Simple())
	}
}

// Key applies the configured prefix
func (c *Client) Key(key string) string {
	return c.config.KeyPrefix + key
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	return c.rdb.Get(ctx, c.Key(key)).Bytes()
}

func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, c.Key(key), value, ttl).Err()
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = c.Key(k)
	}
	return c.rdb.Del(ctx, prefixed...).Err()
}

// Close releases the connection pool
func (c *Client) Close() error {
	if err := c.rdb.Close(); err != nil && !IsClosed(err) {
		return err
	}
	return nil
}

// Raw returns the underlying go-redis client
func (c *Client) Raw() redis.UniversalClient {
	return c.rdb
}
