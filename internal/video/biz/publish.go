package biz

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/lk2023060901/video-share-backend/internal/pkg/metrics"
)

const maxTokenAttempts = 3

// Publish stores the file, then its metadata, and returns the saved record
// with a fresh share token.
//
// A blob write that keeps failing returns *UploadError and never touches the
// repository. A metadata write that fails removes the stored blob again and
// returns *MetadataWriteError. onProgress may be nil.
func (uc *VideoUseCase) Publish(ctx context.Context, in *PublishInput, onProgress ProgressFunc) (record *VideoRecord, err error) {
	start := time.Now()
	tracker := newProgressTracker(ctx, onProgress)
	defer tracker.seal()

	if err := validatePublish(in); err != nil {
		metrics.RecordPublish(publishStatus(err), 0, time.Since(start).Seconds())
		return nil, err
	}
	defer func() {
		metrics.RecordPublish(publishStatus(err), in.Size, time.Since(start).Seconds())
	}()

	tracker.report(progressStarted)

	mediaType := NormalizeMediaType(in.MediaType)
	if mediaType == "" {
		mediaType = unknownMediaType
	}
	id := newObjectID()
	key := VideoKey(uc.cfg.KeyPrefix, id, videoExtension(in.Name, mediaType))
	log := uc.log.With(zap.String("key", key), zap.String("name", in.Name), zap.Int64("size", in.Size))

	err = uc.putWithRetry(ctx, key, in.Content, in.Size, mediaType, func(sent int64) {
		tracker.bytes(sent, in.Size)
	})
	if err != nil {
		log.Error("video upload failed", zap.Error(err))
		return nil, err
	}
	tracker.report(progressUploaded)

	var thumbKey *string
	if len(in.Thumbnail) > 0 {
		k := ThumbnailKey(uc.cfg.KeyPrefix, id, imageExtension(in.ThumbnailType))
		terr := uc.putWithRetry(ctx, k, bytes.NewReader(in.Thumbnail), int64(len(in.Thumbnail)), NormalizeMediaType(in.ThumbnailType), nil)
		if terr != nil {
			log.Warn("thumbnail upload failed, publishing without it", zap.Error(terr))
		} else {
			thumbKey = &k
		}
	}

	now := uc.now().UTC()
	saved, err := uc.insertWithToken(ctx, &VideoRecord{
		Name:          in.Name,
		Size:          in.Size,
		MediaType:     mediaType,
		StoragePath:   key,
		ThumbnailPath: thumbKey,
		PublicURL:     uc.store.PublicURL(key),
		UploadDate:    now,
	})
	if err != nil {
		log.Error("saving video metadata failed, removing stored blob", zap.Error(err))
		uc.compensate(ctx, log, key, thumbKey)
		return nil, &MetadataWriteError{Key: key, Err: err}
	}
	tracker.report(progressSaved)

	if cerr := uc.cache.Set(ctx, saved); cerr != nil {
		log.Warn("priming share link cache failed", zap.Error(cerr))
	}

	tracker.report(progressDone)
	log.Info("video published", zap.String("video_id", saved.ID))
	return saved, nil
}

// putWithRetry writes body under key, retrying transient failures. Every
// attempt starts from the beginning of body.
func (uc *VideoUseCase) putWithRetry(ctx context.Context, key string, body io.ReadSeeker, size int64, contentType string, onProgress func(int64)) error {
	policy := uc.cfg.Retry

	for attempt := 0; ; attempt++ {
		if _, err := body.Seek(0, io.SeekStart); err != nil {
			return &UploadError{Key: key, Attempts: attempt + 1, Err: fmt.Errorf("rewind: %w", err)}
		}

		err := uc.putOnce(ctx, key, body, size, contentType, onProgress)
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return &UploadError{Key: key, Attempts: attempt + 1, Err: ctxErr}
		}

		d := policy.Decide(err, attempt)
		if !d.Retry {
			return &UploadError{Key: key, Attempts: attempt + 1, Err: err}
		}

		uc.log.Warn("upload attempt failed, retrying",
			zap.String("key", key),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", d.Delay),
			zap.Error(err))
		metrics.RecordRetry()

		if err := sleepCtx(ctx, d.Delay); err != nil {
			return &UploadError{Key: key, Attempts: attempt + 1, Err: err}
		}
	}
}

func (uc *VideoUseCase) putOnce(ctx context.Context, key string, body io.Reader, size int64, contentType string, onProgress func(int64)) error {
	if t := uc.cfg.Retry.AttemptTimeout; t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}
	return uc.store.Put(ctx, key, body, size, contentType, onProgress)
}

// insertWithToken issues a new token whenever the previous one is taken
func (uc *VideoUseCase) insertWithToken(ctx context.Context, v *VideoRecord) (*VideoRecord, error) {
	var lastErr error
	for i := 0; i < maxTokenAttempts; i++ {
		token, err := uc.tokens.Issue()
		if err != nil {
			return nil, fmt.Errorf("issue share token: %w", err)
		}
		v.ShareToken = token

		saved, err := uc.repo.Insert(ctx, v)
		if err == nil {
			return saved, nil
		}
		if !errors.Is(err, ErrShareTokenConflict) {
			return nil, err
		}
		uc.log.Warn("share token collision, issuing another", zap.Int("try", i+1))
		lastErr = err
	}
	return nil, lastErr
}

// compensate removes blobs of a publish that could not be saved. It runs
// even if the caller has gone away.
func (uc *VideoUseCase) compensate(ctx context.Context, log *zap.Logger, key string, thumbKey *string) {
	timeout := uc.cfg.CompensationTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().CompensationTimeout
	}
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	keys := []string{key}
	if thumbKey != nil {
		keys = append(keys, *thumbKey)
	}
	for _, k := range keys {
		if err := uc.store.Remove(cctx, k); err != nil {
			metrics.RecordCompensation("failure")
			log.Error("orphaned blob left in storage", zap.String("orphan_key", k), zap.Error(err))
			continue
		}
		metrics.RecordCompensation("success")
	}
}

func publishStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrUploadFailed):
		return "upload_failed"
	case errors.Is(err, ErrMetadataWriteFailed):
		return "metadata_failed"
	default:
		return "error"
	}
}
