package minio

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/minio/minio-go/v7"
)

var (
	ErrInvalidArgument   = errors.New("minio: invalid argument")
	ErrInvalidBucketName = errors.New("minio: invalid bucket name")
	ErrInvalidObjectName = errors.New("minio: invalid object name")
	ErrObjectNotFound    = errors.New("minio: object not found")
	ErrAccessDenied      = errors.New("minio: access denied")
	ErrClientClosed      = errors.New("minio: client is closed")
)

// Error adds operation context to a MinIO failure
type Error struct {
	Op      string
	Err     error
	Bucket  string
	Object  string
	Message string
}

func (e *Error) Error() string {
	switch {
	case e.Bucket != "" && e.Object != "":
		return fmt.Sprintf("minio: %s failed for bucket=%s, object=%s: %v", e.Op, e.Bucket, e.Object, e.Err)
	case e.Bucket != "":
		return fmt.Sprintf("minio: %s failed for bucket=%s: %v", e.Op, e.Bucket, e.Err)
	case e.Message != "":
		return fmt.Sprintf("minio: %s failed: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("minio: %s failed: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WrapError wraps an error with operation context
func WrapError(op string, err error, bucket, object string) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err, Bucket: bucket, Object: object}
}

// WrapErrorWithMessage wraps an error with operation context and a message
func WrapErrorWithMessage(op string, err error, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err, Message: message}
}

// IsNotFound reports a missing bucket, key or upload
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrObjectNotFound) {
		return true
	}

	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		switch resp.Code {
		case "NoSuchBucket", "NoSuchKey", "NoSuchUpload":
			return true
		}
	}
	return false
}

// IsAccessDenied reports an authorization failure
func IsAccessDenied(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrAccessDenied) {
		return true
	}

	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		switch resp.Code {
		case "AccessDenied", "Forbidden", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return true
		}
	}
	return false
}

// IsTransient reports server responses that are worth retrying: throttling,
// request timeouts and 5xx. Network level failures carry no ErrorResponse
// and are classified by the caller.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var resp minio.ErrorResponse
	if !errors.As(err, &resp) {
		return false
	}

	switch resp.Code {
	case "RequestTimeout", "SlowDown", "SlowDownWrite", "SlowDownRead",
		"InternalError", "ServiceUnavailable", "XMinioServerNotInitialized":
		return true
	}
	return resp.StatusCode >= http.StatusInternalServerError ||
		resp.StatusCode == http.StatusRequestTimeout ||
		resp.StatusCode == http.StatusTooManyRequests
}
