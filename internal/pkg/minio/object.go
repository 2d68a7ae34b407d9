package minio

import (
	"context"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

// PutObjectOptions represents options for uploading an object
type PutObjectOptions struct {
	ContentType  string
	CacheControl string
	UserMetadata map[string]string
	// Progress receives a Read call with the size of every chunk sent
	Progress io.Reader
}

// UploadInfo describes a stored object
type UploadInfo struct {
	Bucket    string
	Key       string
	ETag      string
	Size      int64
	VersionID string
}

// ObjectInfo is the subset of object metadata callers need
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	ETag         string
	LastModified time.Time
}

// PutObject uploads size bytes from reader to bucketName/objectName
func (c *Client) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, size int64, opts PutObjectOptions) (UploadInfo, error) {
	if err := c.checkNames("PutObject", bucketName, objectName); err != nil {
		return UploadInfo{}, err
	}

	info, err := c.client.PutObject(ctx, bucketName, objectName, reader, size, minio.PutObjectOptions{
		ContentType:  opts.ContentType,
		CacheControl: opts.CacheControl,
		UserMetadata: opts.UserMetadata,
		Progress:     opts.Progress,
	})
	if err != nil {
		return UploadInfo{}, WrapError("PutObject", err, bucketName, objectName)
	}

	c.logger.Debug("object uploaded",
		zap.String("bucket", bucketName),
		zap.String("object", objectName),
		zap.Int64("size", info.Size),
		zap.String("etag", info.ETag),
	)

	return UploadInfo{
		Bucket:    info.Bucket,
		Key:       info.Key,
		ETag:      info.ETag,
		Size:      info.Size,
		VersionID: info.VersionID,
	}, nil
}

// StatObject returns object metadata
func (c *Client) StatObject(ctx context.Context, bucketName, objectName string) (ObjectInfo, error) {
	if err := c.checkNames("StatObject", bucketName, objectName); err != nil {
		return ObjectInfo{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	info, err := c.client.StatObject(ctx, bucketName, objectName, minio.StatObjectOptions{})
	if err != nil {
		return ObjectInfo{}, WrapError("StatObject", err, bucketName, objectName)
	}
	return ObjectInfo{
		Key:          info.Key,
		Size:         info.Size,
		ContentType:  info.ContentType,
		ETag:         info.ETag,
		LastModified: info.LastModified,
	}, nil
}

// RemoveObject deletes an object. Removing a missing key succeeds.
func (c *Client) RemoveObject(ctx context.Context, bucketName, objectName string) error {
	if err := c.checkNames("RemoveObject", bucketName, objectName); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	err := c.client.RemoveObject(ctx, bucketName, objectName, minio.RemoveObjectOptions{})
	if err != nil && !IsNotFound(err) {
		return WrapError("RemoveObject", err, bucketName, objectName)
	}

	c.logger.Debug("object removed",
		zap.String("bucket", bucketName),
		zap.String("object", objectName),
	)
	return nil
}

// ObjectURL returns the unsigned path-style URL of an object
func (c *Client) ObjectURL(bucketName, objectName string) string {
	return ObjectURL(c.config.BaseURL(), bucketName, objectName)
}

// ObjectURL joins base, bucket and an escaped object key
func ObjectURL(base, bucketName, objectName string) string {
	segments := strings.Split(objectName, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.TrimRight(base, "/") + "/" + bucketName + "/" + strings.Join(segments, "/")
}

func (c *Client) checkNames(op, bucketName, objectName string) error {
	if err := c.checkClosed(); err != nil {
		return err
	}
	if bucketName == "" {
		return WrapError(op, ErrInvalidBucketName, bucketName, objectName)
	}
	if err := ValidateObjectName(objectName); err != nil {
		return WrapError(op, err, bucketName, objectName)
	}
	return nil
}

// ValidateObjectName rejects empty, oversized or absolute keys
func ValidateObjectName(objectName string) error {
	if objectName == "" || len(objectName) > 1024 || strings.HasPrefix(objectName, "/") {
		return ErrInvalidObjectName
	}
	return nil
}
