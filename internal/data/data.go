package data

import (
	"context"
	"fmt"
	"time"

	"github.com/google/wire"
	"go.uber.org/zap"

	"github.com/lk2023060901/video-share-backend/internal/conf"
	"github.com/lk2023060901/video-share-backend/internal/pkg/database"
	"github.com/lk2023060901/video-share-backend/internal/pkg/logger"
	pkgminio "github.com/lk2023060901/video-share-backend/internal/pkg/minio"
	pkgredis "github.com/lk2023060901/video-share-backend/internal/pkg/redis"
	"github.com/lk2023060901/video-share-backend/internal/video/biz"
	videodata "github.com/lk2023060901/video-share-backend/internal/video/data"
)

// ProviderSet is data providers.
var ProviderSet = wire.NewSet(NewData, NewVideoRepo, NewObjectStore, NewShareLinkCache)

// Data holds the backend connections shared by all repositories
type Data struct {
	DB    *database.DB
	Redis *pkgredis.Client // nil when the share link cache is disabled
	Store biz.ObjectStore

	cacheTTL time.Duration
	logger   *logger.Logger
}

func NewData(config *conf.Config, log *logger.Logger) (*Data, func(), error) {
	db, err := database.New(&config.Database, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init database: %w", err)
	}
	if err := db.AutoMigrate(videodata.Models()...); err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	var rdb *pkgredis.Client
	if config.Redis.Enabled {
		rdb, err = pkgredis.New(&config.Redis.Config, log)
		if err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("failed to init redis: %w", err)
		}
	}

	store, minioClient, err := initStore(config, log)
	if err != nil {
		_ = db.Close()
		if rdb != nil {
			_ = rdb.Close()
		}
		return nil, nil, fmt.Errorf("failed to init object storage: %w", err)
	}

	d := &Data{
		DB:       db,
		Redis:    rdb,
		Store:    store,
		cacheTTL: config.Redis.CacheTTL,
		logger:   log,
	}

	cleanup := func() {
		log.Info("cleaning up data resources")

		if err := db.Close(); err != nil {
			log.Warn("failed to close database", zap.Error(err))
		}
		if minioClient != nil {
			_ = minioClient.Close()
		}
		if rdb != nil {
			if err := rdb.Close(); err != nil {
				log.Warn("failed to close redis", zap.Error(err))
			}
		}
	}

	return d, cleanup, nil
}

// initStore returns the store for storage.driver; the minio client is only
// set for the minio driver.
func initStore(config *conf.Config, log *logger.Logger) (biz.ObjectStore, *pkgminio.Client, error) {
	sc := config.Storage
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch sc.Driver {
	case conf.StorageDriverS3:
		store, err := videodata.NewS3Store(ctx, &sc.Config, sc.Bucket, log)
		if err != nil {
			return nil, nil, err
		}
		// the bucket is managed outside the service on S3
		if err := store.Ping(ctx); err != nil {
			log.Warn("object storage not reachable at startup", zap.String("bucket", sc.Bucket), zap.Error(err))
		}
		return store, nil, nil
	default:
		client, err := pkgminio.NewClient(&sc.Config, log.Logger)
		if err != nil {
			return nil, nil, err
		}
		if err := client.Ping(ctx); err != nil {
			return nil, nil, err
		}
		if sc.CreateBucket {
			if err := client.EnsureBucket(ctx, sc.Bucket, sc.PublicRead); err != nil {
				return nil, nil, err
			}
		}
		return videodata.NewMinIOStore(client, sc.Bucket, log), client, nil
	}
}

func NewVideoRepo(d *Data) biz.VideoRepo {
	return videodata.NewVideoRepo(d.DB)
}

func NewObjectStore(d *Data) biz.ObjectStore {
	return d.Store
}

// NewShareLinkCache returns nil when redis is disabled; the use case then
// reads straight from the repository.
func NewShareLinkCache(d *Data) biz.ShareLinkCache {
	if d.Redis == nil {
		return nil
	}
	return videodata.NewShareLinkCache(d.Redis, d.cacheTTL)
}
