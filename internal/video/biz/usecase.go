package biz

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Get returns the record with id
func (uc *VideoUseCase) Get(ctx context.Context, id string) (*VideoRecord, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	return uc.repo.FindByID(ctx, id)
}

// List returns a page of records, newest first, and the total match count
func (uc *VideoUseCase) List(ctx context.Context, filter ListFilter) ([]*VideoRecord, int64, error) {
	return uc.repo.List(ctx, filter)
}

// GetByShareToken resolves a share link. Tokens that could never have been
// issued are rejected without a lookup.
func (uc *VideoUseCase) GetByShareToken(ctx context.Context, token string) (*VideoRecord, error) {
	if !ValidShareToken(token) {
		return nil, ErrNotFound
	}

	if v, err := uc.cache.Get(ctx, token); err == nil {
		return v, nil
	} else if !errors.Is(err, ErrNotFound) {
		uc.log.Warn("share link cache read failed", zap.Error(err))
	}

	v, err := uc.repo.FindByShareToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if !uc.primeShareLink(ctx, v) {
		return nil, ErrNotFound
	}
	return v, nil
}

// primeShareLink caches v under its share token and reports whether the
// record still exists afterwards. A Delete that finished between the caller's
// read and the cache write has already evicted, so the repository is asked
// again and the entry dropped if the record is gone.
func (uc *VideoUseCase) primeShareLink(ctx context.Context, v *VideoRecord) bool {
	if _, disabled := uc.cache.(noopCache); disabled {
		return true
	}
	if err := uc.cache.Set(ctx, v); err != nil {
		uc.log.Warn("share link cache write failed", zap.Error(err))
		return true
	}

	if _, err := uc.repo.FindByShareToken(ctx, v.ShareToken); !errors.Is(err, ErrNotFound) {
		return true
	}
	if err := uc.cache.Evict(ctx, v.ShareToken); err != nil {
		uc.log.Warn("share link cache evict failed", zap.Error(err))
	}
	return false
}

// Delete removes the blobs, then the record. Blob removal failures are
// logged and do not stop the record from going away.
func (uc *VideoUseCase) Delete(ctx context.Context, id string) error {
	v, err := uc.Get(ctx, id)
	if err != nil {
		return err
	}
	log := uc.log.With(zap.String("video_id", v.ID), zap.String("key", v.StoragePath))

	if err := uc.store.Remove(ctx, v.StoragePath); err != nil {
		log.Warn("removing video blob failed", zap.Error(err))
	}
	if v.ThumbnailPath != nil {
		if err := uc.store.Remove(ctx, *v.ThumbnailPath); err != nil {
			log.Warn("removing thumbnail failed", zap.String("thumbnail", *v.ThumbnailPath), zap.Error(err))
		}
	}

	if err := uc.repo.Delete(ctx, v.ID); err != nil {
		return err
	}
	if err := uc.cache.Evict(ctx, v.ShareToken); err != nil {
		log.Warn("share link cache evict failed", zap.Error(err))
	}

	log.Info("video deleted")
	return nil
}

// AttachThumbnail stores a new preview image for an existing record and
// replaces the previous one.
func (uc *VideoUseCase) AttachThumbnail(ctx context.Context, id string, data []byte, contentType string) (*VideoRecord, error) {
	if err := validateThumbnail(data, contentType); err != nil {
		return nil, err
	}
	v, err := uc.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	key := ThumbnailKey(uc.cfg.KeyPrefix, newObjectID(), imageExtension(contentType))
	if err := uc.putWithRetry(ctx, key, bytes.NewReader(data), int64(len(data)), NormalizeMediaType(contentType), nil); err != nil {
		return nil, err
	}

	previous := v.ThumbnailPath
	v.ThumbnailPath = &key
	if err := uc.repo.Update(ctx, v); err != nil {
		uc.compensate(ctx, uc.log.With(zap.String("video_id", v.ID)), key, nil)
		return nil, &MetadataWriteError{Key: key, Err: err}
	}

	if previous != nil {
		if err := uc.store.Remove(ctx, *previous); err != nil {
			uc.log.Warn("removing replaced thumbnail failed", zap.String("thumbnail", *previous), zap.Error(err))
		}
	}
	uc.primeShareLink(ctx, v)
	return v, nil
}

// ComponentStatus is the outcome of one backend probe
type ComponentStatus struct {
	Healthy bool          `json:"healthy"`
	Latency time.Duration `json:"latency"`
	Error   string        `json:"error,omitempty"`
}

// BackendStatus reports whether the service can reach its backends
type BackendStatus struct {
	Database ComponentStatus `json:"database"`
	Storage  ComponentStatus `json:"storage"`
}

func (s *BackendStatus) Healthy() bool {
	return s.Database.Healthy && s.Storage.Healthy
}

// Status probes the repository and the object store concurrently
func (uc *VideoUseCase) Status(ctx context.Context) *BackendStatus {
	var status BackendStatus
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		status.Database = probe(gctx, uc.repo.Ping)
		return nil
	})
	g.Go(func() error {
		status.Storage = probe(gctx, uc.store.Ping)
		return nil
	})
	_ = g.Wait()

	return &status
}

func probe(ctx context.Context, ping func(context.Context) error) ComponentStatus {
	start := time.Now()
	err := ping(ctx)
	s := ComponentStatus{Healthy: err == nil, Latency: time.Since(start)}
	if err != nil {
		s.Error = err.Error()
	}
	return s
}
