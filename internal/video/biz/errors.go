package biz

import (
	"errors"
	"fmt"
)

var (
	ErrValidation          = errors.New("validation failed")
	ErrTransientTransport  = errors.New("transient transport failure")
	ErrUploadFailed        = errors.New("video upload failed")
	ErrMetadataWriteFailed = errors.New("video metadata write failed")
	ErrNotFound            = errors.New("video not found")
	ErrShareTokenConflict  = errors.New("share token already in use")
	ErrAccessDenied        = errors.New("access denied")
	ErrConflict            = errors.New("conflict")
)

// ValidationError reports bad input. No I/O has happened when it is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// UploadError is returned when the blob write gave up. Attempts counts every
// try including the first.
type UploadError struct {
	Key      string
	Attempts int
	Err      error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %s failed after %d attempt(s): %v", e.Key, e.Attempts, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

func (e *UploadError) Is(target error) bool {
	return target == ErrUploadFailed
}

// MetadataWriteError is returned when the blob was stored but the record
// could not be saved. The blob has been removed again (best-effort) by the
// time the caller sees it.
type MetadataWriteError struct {
	Key string
	Err error
}

func (e *MetadataWriteError) Error() string {
	return fmt.Sprintf("save metadata for %s: %v", e.Key, e.Err)
}

func (e *MetadataWriteError) Unwrap() error {
	return e.Err
}

func (e *MetadataWriteError) Is(target error) bool {
	return target == ErrMetadataWriteFailed
}
