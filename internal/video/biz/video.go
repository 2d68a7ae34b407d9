package biz

import (
	"context"
	"io"
	"time"

	"github.com/google/wire"
	"go.uber.org/zap"
)

// ProviderSet is biz providers.
var ProviderSet = wire.NewSet(NewVideoUseCase, NewShareTokenIssuer)

// VideoRecord is a published video
type VideoRecord struct {
	ID            string
	Name          string
	Size          int64
	MediaType     string
	StoragePath   string
	ThumbnailPath *string
	PublicURL     string
	ShareToken    string
	UploadDate    time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ListFilter selects a page of records, newest first
type ListFilter struct {
	Query    string // case-insensitive substring of the name
	Page     int
	PageSize int
}

// PublishInput is one file handed to Publish
type PublishInput struct {
	Name      string
	Size      int64
	MediaType string
	Content   io.ReadSeeker

	// optional preview image
	Thumbnail     []byte
	ThumbnailType string
}

// ObjectStore stores blobs under keys
type ObjectStore interface {
	// Put writes size bytes from body. onProgress, if not nil, receives the
	// bytes sent so far and may be called from several goroutines.
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string, onProgress func(sent int64)) error
	// Remove deletes key; a missing key is not an error
	Remove(ctx context.Context, key string) error
	PublicURL(key string) string
	Ping(ctx context.Context) error
}

// VideoRepo persists video metadata
type VideoRepo interface {
	// Insert assigns ID and timestamps. A taken share token yields ErrShareTokenConflict.
	Insert(ctx context.Context, v *VideoRecord) (*VideoRecord, error)
	Update(ctx context.Context, v *VideoRecord) error
	Delete(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (*VideoRecord, error)
	FindByShareToken(ctx context.Context, token string) (*VideoRecord, error)
	List(ctx context.Context, filter ListFilter) ([]*VideoRecord, int64, error)
	Ping(ctx context.Context) error
}

// ShareLinkCache keeps resolved share tokens close. Misses return ErrNotFound.
type ShareLinkCache interface {
	Get(ctx context.Context, token string) (*VideoRecord, error)
	Set(ctx context.Context, v *VideoRecord) error
	Evict(ctx context.Context, token string) error
}

// Config tunes VideoUseCase
type Config struct {
	KeyPrefix           string        `mapstructure:"key_prefix"`
	CompensationTimeout time.Duration `mapstructure:"compensation_timeout"`
	Retry               RetryPolicy   `mapstructure:"retry"`
}

func DefaultConfig() *Config {
	return &Config{
		KeyPrefix:           "videos",
		CompensationTimeout: 30 * time.Second,
		Retry:               DefaultRetryPolicy(),
	}
}

// VideoUseCase publishes, resolves and deletes videos
type VideoUseCase struct {
	repo   VideoRepo
	store  ObjectStore
	tokens TokenIssuer
	cache  ShareLinkCache
	cfg    *Config
	log    *zap.Logger
	now    func() time.Time
}

func NewVideoUseCase(repo VideoRepo, store ObjectStore, tokens TokenIssuer, cache ShareLinkCache, cfg *Config, logger *zap.Logger) *VideoUseCase {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cache == nil {
		cache = noopCache{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VideoUseCase{
		repo:   repo,
		store:  store,
		tokens: tokens,
		cache:  cache,
		cfg:    cfg,
		log:    logger.Named("video"),
		now:    time.Now,
	}
}

// PublicURL returns the public address of a stored key
func (uc *VideoUseCase) PublicURL(key string) string {
	return uc.store.PublicURL(key)
}

type noopCache struct{}

func (noopCache) Get(context.Context, string) (*VideoRecord, error) { return nil, ErrNotFound }
func (noopCache) Set(context.Context, *VideoRecord) error           { return nil }
func (noopCache) Evict(context.Context, string) error               { return nil }
