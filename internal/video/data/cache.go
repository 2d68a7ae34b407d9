package data

import (
	"context"
	"encoding/json"
	"time"

	"github.com/lk2023060901/video-share-backend/internal/pkg/redis"
	"github.com/lk2023060901/video-share-backend/internal/video/biz"
)

const shareKeyPrefix = "share:"

// cachedVideo is the redis representation of a record
type cachedVideo struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Size          int64     `json:"size"`
	MediaType     string    `json:"type"`
	StoragePath   string    `json:"file_path"`
	ThumbnailPath *string   `json:"thumbnail_path,omitempty"`
	PublicURL     string    `json:"public_url"`
	ShareToken    string    `json:"share_token"`
	UploadDate    time.Time `json:"upload_date"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ShareLinkCache implements biz.ShareLinkCache on redis
type ShareLinkCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewShareLinkCache(rdb *redis.Client, ttl time.Duration) *ShareLinkCache {
	return &ShareLinkCache{rdb: rdb, ttl: ttl}
}

func (c *ShareLinkCache) Get(ctx context.Context, token string) (*biz.VideoRecord, error) {
	raw, err := c.rdb.Get(ctx, shareKeyPrefix+token)
	if err != nil {
		if redis.IsNil(err) {
			return nil, biz.ErrNotFound
		}
		return nil, err
	}

	var cv cachedVideo
	if err := json.Unmarshal(raw, &cv); err != nil {
		return nil, err
	}
	return &biz.VideoRecord{
		ID:            cv.ID,
		Name:          cv.Name,
		Size:          cv.Size,
		MediaType:     cv.MediaType,
		StoragePath:   cv.StoragePath,
		ThumbnailPath: cv.ThumbnailPath,
		PublicURL:     cv.PublicURL,
		ShareToken:    cv.ShareToken,
		UploadDate:    cv.UploadDate,
		CreatedAt:     cv.CreatedAt,
		UpdatedAt:     cv.UpdatedAt,
	}, nil
}

func (c *ShareLinkCache) Set(ctx context.Context, v *biz.VideoRecord) error {
	raw, err := json.Marshal(cachedVideo{
		ID:            v.ID,
		Name:          v.Name,
		Size:          v.Size,
		MediaType:     v.MediaType,
		StoragePath:   v.StoragePath,
		ThumbnailPath: v.ThumbnailPath,
		PublicURL:     v.PublicURL,
		ShareToken:    v.ShareToken,
		UploadDate:    v.UploadDate,
		CreatedAt:     v.CreatedAt,
		UpdatedAt:     v.UpdatedAt,
	})
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, shareKeyPrefix+v.ShareToken, raw, c.ttl)
}

func (c *ShareLinkCache) Evict(ctx context.Context, token string) error {
	return c.rdb.Del(ctx, shareKeyPrefix+token)
}
