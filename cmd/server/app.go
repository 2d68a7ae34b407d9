package main

import (
	"context"
	"time"

	"github.com/google/wire"
	"go.uber.org/zap"

	"github.com/lk2023060901/video-share-backend/internal/conf"
	"github.com/lk2023060901/video-share-backend/internal/pkg/logger"
	"github.com/lk2023060901/video-share-backend/internal/pkg/sse"
	"github.com/lk2023060901/video-share-backend/internal/pkg/workerpool"
	"github.com/lk2023060901/video-share-backend/internal/server"
	"github.com/lk2023060901/video-share-backend/internal/video/biz"
	"github.com/lk2023060901/video-share-backend/internal/video/service"
)

// replayTTL 上传结束后仍可回放最后一条进度事件的时间
const replayTTL = 5 * time.Minute

var configProviderSet = wire.NewSet(
	provideVideoConfig,
	provideUploadConfig,
	provideShareConfig,
	provideZapLogger,
)

var infraProviderSet = wire.NewSet(
	provideHub,
	providePool,
)

// App owns the long running pieces of the process
type App struct {
	http   *server.HTTPServer
	hub    *sse.Hub
	pool   *workerpool.Pool
	config *conf.Config
	logger *logger.Logger
}

func newApp(config *conf.Config, log *logger.Logger, httpServer *server.HTTPServer, hub *sse.Hub, pool *workerpool.Pool) *App {
	return &App{
		http:   httpServer,
		hub:    hub,
		pool:   pool,
		config: config,
		logger: log,
	}
}

// Run serves until ctx is done, then drains in-flight uploads
func (a *App) Run(ctx context.Context) error {
	a.hub.Start()
	defer a.hub.Stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.http.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info("shutting down",
		zap.Int("running_uploads", a.pool.Running()),
		zap.Int("queued_uploads", a.pool.Waiting()),
		zap.Int("upload_slots", a.pool.Cap()))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.http.Stop(shutdownCtx); err != nil {
		a.logger.Error("HTTP server forced to shutdown", zap.Error(err))
	}
	return nil
}

func provideVideoConfig(c *conf.Config) *biz.Config {
	return &c.Video
}

func provideUploadConfig(c *conf.Config) *workerpool.Config {
	return &c.Upload
}

func provideShareConfig(c *conf.Config) *service.Config {
	return &c.Share
}

func provideZapLogger(l *logger.Logger) *zap.Logger {
	return l.Logger
}

func provideHub() *sse.Hub {
	return sse.NewHub(replayTTL)
}

func providePool(c *conf.Config, cfg *workerpool.Config, l *zap.Logger) (*workerpool.Pool, func(), error) {
	pool, err := workerpool.New(cfg, l.Named("upload-pool"))
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := pool.Shutdown(c.Server.ShutdownTimeout); err != nil {
			l.Warn("upload pool did not drain in time", zap.Error(err))
		}
	}
	return pool, cleanup, nil
}
