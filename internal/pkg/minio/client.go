package minio

import (
	"context"
	"os"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// Client wraps the MinIO client with logging and error wrapping
type Client struct {
	client *minio.Client
	config *Config
	logger *zap.Logger
	mu     sync.RWMutex
	closed bool
}

// NewClient creates a new MinIO client. No request is sent until first use.
func NewClient(cfg *Config, logger *zap.Logger) (*Client, error) {
	if cfg == nil {
		return nil, ErrInvalidArgument
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, WrapErrorWithMessage("NewClient", err, "invalid configuration")
	}

	mc, err := minio.New(cfg.Endpoint, clientOptions(cfg))
	if err != nil {
		return nil, WrapErrorWithMessage("NewClient", err, "failed to create minio client")
	}
	if cfg.TraceEnabled {
		mc.TraceOn(os.Stderr)
	}

	logger.Info("minio client initialized",
		zap.String("endpoint", cfg.Endpoint),
		zap.String("region", cfg.Region),
		zap.Bool("use_ssl", cfg.UseSSL),
		zap.Int("max_retries", cfg.MaxRetries),
	)

	return &Client{client: mc, config: cfg, logger: logger}, nil
}

// clientOptions maps cfg onto minio-go options. MaxRetries caps the
// requests minio-go sends per call; callers that run their own retry loop
// keep it at 1.
func clientOptions(cfg *Config) *minio.Options {
	opts := &minio.Options{
		Creds:      credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		Secure:     cfg.UseSSL,
		Region:     cfg.Region,
		MaxRetries: cfg.MaxRetries,
	}
	switch cfg.BucketLookup {
	case BucketLookupDNS:
		opts.BucketLookup = minio.BucketLookupDNS
	case BucketLookupPath:
		opts.BucketLookup = minio.BucketLookupPath
	default:
		opts.BucketLookup = minio.BucketLookupAuto
	}
	return opts
}

// Ping checks that the server answers an authenticated request
func (c *Client) Ping(ctx context.Context) error {
	if err := c.checkClosed(); err != nil {
		return err
	}
	if _, err := c.client.ListBuckets(ctx); err != nil {
		return WrapErrorWithMessage("Ping", err, "failed to connect to minio server")
	}
	return nil
}

// Close marks the client closed; later calls fail with ErrClientClosed
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		c.logger.Info("minio client closed")
	}
	return nil
}

func (c *Client) checkClosed() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClientClosed
	}
	return nil
}
