package conf

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/lk2023060901/video-share-backend/internal/pkg/database"
	"github.com/lk2023060901/video-share-backend/internal/pkg/logger"
	pkgminio "github.com/lk2023060901/video-share-backend/internal/pkg/minio"
	pkgredis "github.com/lk2023060901/video-share-backend/internal/pkg/redis"
	"github.com/lk2023060901/video-share-backend/internal/pkg/workerpool"
	"github.com/lk2023060901/video-share-backend/internal/video/biz"
	"github.com/lk2023060901/video-share-backend/internal/video/service"
)

// EnvPrefix 环境变量前缀，例如 VIDEOSHARE_SERVER_PORT
const EnvPrefix = "VIDEOSHARE"

const (
	StorageDriverMinIO = "minio"
	StorageDriverS3    = "s3"
)

type Config struct {
	Server   ServerConfig      `mapstructure:"server"`
	Log      logger.Config     `mapstructure:"log"`
	Database database.Config   `mapstructure:"database"`
	Redis    RedisConfig       `mapstructure:"redis"`
	Storage  StorageConfig     `mapstructure:"storage"`
	Video    biz.Config        `mapstructure:"video"`
	Upload   workerpool.Config `mapstructure:"upload"`
	Share    service.Config    `mapstructure:"share"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`

	// uploads and event streams are long lived, so only the header read
	// and idle keep-alive are bounded
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`

	// MaxMultipartMemory is how much of a multipart body gin keeps in memory
	// before spooling to disk
	MaxMultipartMemory int64 `mapstructure:"max_multipart_memory"`

	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig limits upload requests per client IP
type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	Rate    float64 `mapstructure:"rate"` // requests per second
	Burst   int     `mapstructure:"burst"`
	// IdleTTL drops the limiter of a client that has been quiet this long
	IdleTTL time.Duration `mapstructure:"idle_ttl"`
}

func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RedisConfig 分享链接缓存，可关闭
type RedisConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	CacheTTL        time.Duration `mapstructure:"cache_ttl"`
	pkgredis.Config `mapstructure:",squash"`
}

// StorageConfig selects the blob backend. Both drivers speak to an
// S3-compatible endpoint described by the embedded connection settings.
type StorageConfig struct {
	Driver     string `mapstructure:"driver"` // minio, s3
	Bucket     string `mapstructure:"bucket"`
	PublicRead bool   `mapstructure:"public_read"`
	// CreateBucket creates the bucket on startup when it is missing
	CreateBucket    bool `mapstructure:"create_bucket"`
	pkgminio.Config `mapstructure:",squash"`
}

// Load reads path (if not empty), then applies VIDEOSHARE_* environment
// overrides on top of the defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Storage.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_header_timeout", 10*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.max_multipart_memory", 32<<20)
	v.SetDefault("server.rate_limit.enabled", true)
	v.SetDefault("server.rate_limit.rate", 1.0)
	v.SetDefault("server.rate_limit.burst", 5)
	v.SetDefault("server.rate_limit.idle_ttl", 10*time.Minute)

	lc := logger.DefaultConfig()
	v.SetDefault("log.level", lc.Level)
	v.SetDefault("log.format", lc.Format)
	v.SetDefault("log.output", lc.Output)
	v.SetDefault("log.enablecaller", lc.EnableCaller)
	v.SetDefault("log.enablestacktrace", lc.EnableStacktrace)
	v.SetDefault("log.file.filename", lc.File.Filename)
	v.SetDefault("log.file.maxsize", lc.File.MaxSize)
	v.SetDefault("log.file.maxage", lc.File.MaxAge)
	v.SetDefault("log.file.maxbackups", lc.File.MaxBackups)
	v.SetDefault("log.file.compress", lc.File.Compress)

	dc := database.DefaultConfig()
	v.SetDefault("database.host", dc.Host)
	v.SetDefault("database.port", dc.Port)
	v.SetDefault("database.user", dc.User)
	v.SetDefault("database.password", dc.Password)
	v.SetDefault("database.dbname", dc.DBName)
	v.SetDefault("database.sslmode", dc.SSLMode)
	v.SetDefault("database.timezone", dc.Timezone)
	v.SetDefault("database.maxidleconns", dc.MaxIdleConns)
	v.SetDefault("database.maxopenconns", dc.MaxOpenConns)
	v.SetDefault("database.connmaxlifetime", dc.ConnMaxLifetime)
	v.SetDefault("database.connmaxidletime", dc.ConnMaxIdleTime)
	v.SetDefault("database.loglevel", dc.LogLevel)
	v.SetDefault("database.slowthreshold", dc.SlowThreshold)
	v.SetDefault("database.preparestmt", dc.PrepareStmt)
	v.SetDefault("database.automigrate", dc.AutoMigrate)

	rc := pkgredis.DefaultConfig()
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.cache_ttl", 10*time.Minute)
	v.SetDefault("redis.mode", string(rc.Mode))
	v.SetDefault("redis.addrs", rc.Addrs)
	v.SetDefault("redis.master_name", "")
	v.SetDefault("redis.username", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", rc.DB)
	v.SetDefault("redis.pool_size", rc.PoolSize)
	v.SetDefault("redis.min_idle_conns", rc.MinIdleConns)
	v.SetDefault("redis.dial_timeout", rc.DialTimeout)
	v.SetDefault("redis.read_timeout", rc.ReadTimeout)
	v.SetDefault("redis.write_timeout", rc.WriteTimeout)
	v.SetDefault("redis.max_retries", rc.MaxRetries)
	v.SetDefault("redis.enable_tls", rc.EnableTLS)
	v.SetDefault("redis.key_prefix", rc.KeyPrefix)

	v.SetDefault("storage.driver", StorageDriverMinIO)
	v.SetDefault("storage.bucket", "videos")
	v.SetDefault("storage.public_read", true)
	v.SetDefault("storage.create_bucket", true)
	v.SetDefault("storage.endpoint", "localhost:9000")
	v.SetDefault("storage.access_key", "")
	v.SetDefault("storage.secret_key", "")
	v.SetDefault("storage.session_token", "")
	v.SetDefault("storage.region", "")
	v.SetDefault("storage.use_ssl", false)
	v.SetDefault("storage.bucket_lookup", string(pkgminio.BucketLookupAuto))
	v.SetDefault("storage.public_base_url", "")
	v.SetDefault("storage.trace", false)
	v.SetDefault("storage.request_timeout", 30*time.Second)
	v.SetDefault("storage.max_retries", 1)

	vc := biz.DefaultConfig()
	v.SetDefault("video.key_prefix", vc.KeyPrefix)
	v.SetDefault("video.compensation_timeout", vc.CompensationTimeout)
	v.SetDefault("video.retry.max_attempts", vc.Retry.MaxAttempts)
	v.SetDefault("video.retry.base_delay", vc.Retry.BaseDelay)
	v.SetDefault("video.retry.max_delay", vc.Retry.MaxDelay)
	v.SetDefault("video.retry.attempt_timeout", vc.Retry.AttemptTimeout)

	uc := workerpool.DefaultConfig()
	v.SetDefault("upload.size", uc.Size)
	v.SetDefault("upload.max_waiting", uc.MaxWaiting)

	sc := service.DefaultConfig()
	v.SetDefault("share.share_base_url", sc.ShareBaseURL)
	v.SetDefault("share.share_not_found_dismiss", sc.ShareNotFoundDismiss)
	v.SetDefault("share.sse_keep_alive", sc.SSEKeepAlive)
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server: invalid port %d", c.Server.Port)
	}
	if rl := c.Server.RateLimit; rl.Enabled && (rl.Rate <= 0 || rl.Burst <= 0) {
		return errors.New("server: rate_limit needs a positive rate and burst")
	}
	if err := c.Log.Validate(); err != nil {
		return err
	}
	if err := c.Database.Validate(); err != nil {
		return err
	}
	if c.Redis.Enabled {
		if err := c.Redis.Config.Validate(); err != nil {
			return err
		}
	}

	switch c.Storage.Driver {
	case StorageDriverMinIO, StorageDriverS3:
	default:
		return fmt.Errorf("storage: unknown driver %q", c.Storage.Driver)
	}
	if c.Storage.Bucket == "" {
		return errors.New("storage: bucket is required")
	}
	if err := c.Storage.Config.Validate(); err != nil {
		return err
	}

	if strings.Trim(c.Video.KeyPrefix, "/") == "" {
		return errors.New("video: key_prefix is required")
	}
	if c.Video.Retry.MaxAttempts < 0 {
		return errors.New("video: retry.max_attempts must not be negative")
	}
	if err := c.Upload.Validate(); err != nil {
		return err
	}
	if c.Share.ShareBaseURL == "" {
		return errors.New("share: share_base_url is required")
	}
	return nil
}
