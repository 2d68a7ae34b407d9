package minio

import (
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

// publicReadPolicy grants anonymous GetObject on every key of a bucket
const publicReadPolicy = `{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"AWS":["*"]},"Action":["s3:GetObject"],"Resource":["arn:aws:s3:::%s/*"]}]}`

// BucketExists checks whether bucketName exists
func (c *Client) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	if err := c.checkClosed(); err != nil {
		return false, err
	}
	if bucketName == "" {
		return false, WrapError("BucketExists", ErrInvalidBucketName, bucketName, "")
	}

	ok, err := c.client.BucketExists(ctx, bucketName)
	if err != nil {
		return false, WrapError("BucketExists", err, bucketName, "")
	}
	return ok, nil
}

// EnsureBucket creates bucketName when missing. With publicRead the bucket
// gets an anonymous read policy so object URLs resolve without signing.
func (c *Client) EnsureBucket(ctx context.Context, bucketName string, publicRead bool) error {
	exists, err := c.BucketExists(ctx, bucketName)
	if err != nil {
		return err
	}

	if !exists {
		err := c.client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{Region: c.config.Region})
		if err != nil {
			// a concurrent instance may have won the race
			if ok, existsErr := c.client.BucketExists(ctx, bucketName); existsErr != nil || !ok {
				return WrapError("MakeBucket", err, bucketName, "")
			}
		}
		c.logger.Info("bucket created", zap.String("bucket", bucketName))
	}

	if publicRead {
		if err := c.client.SetBucketPolicy(ctx, bucketName, fmt.Sprintf(publicReadPolicy, bucketName)); err != nil {
			return WrapError("SetBucketPolicy", err, bucketName, "")
		}
	}
	return nil
}
