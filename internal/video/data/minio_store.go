package data

import (
	"context"
	"fmt"
	"io"

	"github.com/lk2023060901/video-share-backend/internal/pkg/logger"
	pkgminio "github.com/lk2023060901/video-share-backend/internal/pkg/minio"
	"github.com/lk2023060901/video-share-backend/internal/video/biz"
	"go.uber.org/zap"
)

// blobs are immutable once written; keys are never reused
const blobCacheControl = "public, max-age=3600"

// MinIOStore MinIO 文件存储实现
type MinIOStore struct {
	client *pkgminio.Client
	bucket string
	logger *logger.Logger
}

// NewMinIOStore 创建 MinIO 文件存储
func NewMinIOStore(client *pkgminio.Client, bucket string, lgr *logger.Logger) *MinIOStore {
	if lgr == nil {
		lgr = logger.L()
	}
	return &MinIOStore{client: client, bucket: bucket, logger: lgr}
}

// Put 上传文件
func (s *MinIOStore) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string, onProgress func(int64)) error {
	opts := pkgminio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: blobCacheControl,
	}
	if onProgress != nil {
		opts.Progress = pkgminio.NewProgressHook(size, func(sent, _ int64) { onProgress(sent) })
	}

	if _, err := s.client.PutObject(ctx, s.bucket, key, body, size, opts); err != nil {
		return classifyMinIOError(err)
	}

	s.logger.Debug("blob stored", zap.String("bucket", s.bucket), zap.String("key", key), zap.Int64("size", size))
	return nil
}

// Remove 删除文件，不存在视为成功
func (s *MinIOStore) Remove(ctx context.Context, key string) error {
	return classifyMinIOError(s.client.RemoveObject(ctx, s.bucket, key))
}

func (s *MinIOStore) PublicURL(key string) string {
	return s.client.ObjectURL(s.bucket, key)
}

func (s *MinIOStore) Ping(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return classifyMinIOError(err)
	}
	if !ok {
		return fmt.Errorf("bucket %s does not exist", s.bucket)
	}
	return nil
}

// classifyMinIOError tags server responses for the retry policy. Network
// failures pass through unchanged and are classified by biz.IsTransient.
func classifyMinIOError(err error) error {
	switch {
	case err == nil:
		return nil
	case pkgminio.IsAccessDenied(err):
		return fmt.Errorf("%w: %w", biz.ErrAccessDenied, err)
	case pkgminio.IsTransient(err):
		return fmt.Errorf("%w: %w", biz.ErrTransientTransport, err)
	default:
		return err
	}
}
