package minio

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

// BucketLookupType represents the type of bucket lookup
type BucketLookupType string

const (
	BucketLookupAuto BucketLookupType = "auto"
	BucketLookupDNS  BucketLookupType = "dns"  // bucket.endpoint
	BucketLookupPath BucketLookupType = "path" // endpoint/bucket
)

// Config holds the connection settings of an S3-compatible endpoint
type Config struct {
	// Endpoint is host[:port] without scheme, e.g. "localhost:9000"
	Endpoint        string           `mapstructure:"endpoint"`
	AccessKeyID     string           `mapstructure:"access_key"`
	SecretAccessKey string           `mapstructure:"secret_key"`
	SessionToken    string           `mapstructure:"session_token"`
	Region          string           `mapstructure:"region"`
	UseSSL          bool             `mapstructure:"use_ssl"`
	BucketLookup    BucketLookupType `mapstructure:"bucket_lookup"`

	// PublicBaseURL overrides the base of generated public object URLs,
	// e.g. a CDN in front of the bucket. Empty means scheme://endpoint.
	PublicBaseURL string `mapstructure:"public_base_url"`

	TraceEnabled bool `mapstructure:"trace"`

	// RequestTimeout bounds non-streaming calls such as stat and remove
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	// MaxRetries is how many requests minio-go may send for one call.
	// 1 disables its internal retries.
	MaxRetries int `mapstructure:"max_retries"`
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("minio: endpoint is required")
	}
	if strings.Contains(c.Endpoint, "://") {
		return errors.New("minio: endpoint must not contain a scheme")
	}
	if c.AccessKeyID == "" {
		return errors.New("minio: access key ID is required")
	}
	if c.SecretAccessKey == "" {
		return errors.New("minio: secret access key is required")
	}

	if c.MaxRetries < 0 {
		return errors.New("minio: max retries must not be negative")
	}

	switch c.BucketLookup {
	case "", BucketLookupAuto, BucketLookupDNS, BucketLookupPath:
	default:
		return errors.New("minio: invalid bucket lookup type")
	}

	if c.PublicBaseURL != "" {
		u, err := url.Parse(c.PublicBaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return errors.New("minio: public base url must be an absolute URL")
		}
	}
	return nil
}

// SetDefaults fills unset fields
func (c *Config) SetDefaults() {
	if c.BucketLookup == "" {
		c.BucketLookup = BucketLookupAuto
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 1
	}
}

// BaseURL returns the URL objects are publicly addressed under
func (c *Config) BaseURL() string {
	if c.PublicBaseURL != "" {
		return strings.TrimRight(c.PublicBaseURL, "/")
	}
	scheme := "http"
	if c.UseSSL {
		scheme = "https"
	}
	return scheme + "://" + c.Endpoint
}
