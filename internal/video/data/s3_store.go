package data

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/lk2023060901/video-share-backend/internal/pkg/logger"
	pkgminio "github.com/lk2023060901/video-share-backend/internal/pkg/minio"
	"github.com/lk2023060901/video-share-backend/internal/video/biz"
	"go.uber.org/zap"
)

const defaultS3Region = "us-east-1"

// S3Store stores blobs through the AWS SDK. It talks to AWS S3 as well as
// any S3-compatible endpoint configured in cfg.
type S3Store struct {
	client  *s3.Client
	bucket  string
	baseURL string
	logger  *logger.Logger
}

func NewS3Store(ctx context.Context, cfg *pkgminio.Config, bucket string, lgr *logger.Logger) (*S3Store, error) {
	if lgr == nil {
		lgr = logger.L()
	}
	region := cfg.Region
	if region == "" {
		region = defaultS3Region
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	scheme := "http://"
	if cfg.UseSSL {
		scheme = "https://"
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(scheme + cfg.Endpoint)
		o.UsePathStyle = cfg.BucketLookup != pkgminio.BucketLookupDNS
		// retries are decided by biz.RetryPolicy
		o.RetryMaxAttempts = 1
	})

	return &S3Store{
		client:  client,
		bucket:  bucket,
		baseURL: cfg.BaseURL(),
		logger:  lgr,
	}, nil
}

func (s *S3Store) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string, onProgress func(int64)) error {
	if onProgress != nil {
		body = withProgress(body, onProgress)
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
		CacheControl:  aws.String(blobCacheControl),
	})
	if err != nil {
		return classifyS3Error(fmt.Errorf("s3: put %s: %w", key, err))
	}

	s.logger.Debug("blob stored", zap.String("bucket", s.bucket), zap.String("key", key), zap.Int64("size", size))
	return nil
}

// Remove deletes key. S3 reports success for missing keys.
func (s *S3Store) Remove(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return classifyS3Error(fmt.Errorf("s3: delete %s: %w", key, err))
	}
	return nil
}

func (s *S3Store) PublicURL(key string) string {
	return pkgminio.ObjectURL(s.baseURL, s.bucket, key)
}

func (s *S3Store) Ping(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		return classifyS3Error(fmt.Errorf("s3: head bucket %s: %w", s.bucket, err))
	}
	return nil
}

func classifyS3Error(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return fmt.Errorf("%w: %w", biz.ErrAccessDenied, err)
		case "SlowDown", "InternalError", "ServiceUnavailable", "RequestTimeout":
			return fmt.Errorf("%w: %w", biz.ErrTransientTransport, err)
		}
	}

	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		status := respErr.HTTPStatusCode()
		if status >= http.StatusInternalServerError || status == http.StatusTooManyRequests || status == http.StatusRequestTimeout {
			return fmt.Errorf("%w: %w", biz.ErrTransientTransport, err)
		}
	}
	return err
}

// progressReader counts bytes read from r
type progressReader struct {
	r    io.Reader
	sent atomic.Int64
	fn   func(int64)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.fn(p.sent.Add(int64(n)))
	}
	return n, err
}

// progressReadSeeker keeps the body seekable, which the SDK needs to sign
// payloads over plain HTTP. Seeking resets the count.
type progressReadSeeker struct {
	progressReader
	s io.Seeker
}

func (p *progressReadSeeker) Seek(offset int64, whence int) (int64, error) {
	pos, err := p.s.Seek(offset, whence)
	if err == nil {
		p.sent.Store(pos)
	}
	return pos, err
}

func withProgress(r io.Reader, fn func(int64)) io.Reader {
	if rs, ok := r.(io.ReadSeeker); ok {
		return &progressReadSeeker{progressReader: progressReader{r: rs, fn: fn}, s: rs}
	}
	return &progressReader{r: r, fn: fn}
}
