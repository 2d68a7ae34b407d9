//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/lk2023060901/video-share-backend/internal/conf"
	"github.com/lk2023060901/video-share-backend/internal/data"
	"github.com/lk2023060901/video-share-backend/internal/pkg/logger"
	"github.com/lk2023060901/video-share-backend/internal/server"
	"github.com/lk2023060901/video-share-backend/internal/video/biz"
	"github.com/lk2023060901/video-share-backend/internal/video/service"
)

// wireApp init video share application.
func wireApp(config *conf.Config, log *logger.Logger) (*App, func(), error) {
	panic(wire.Build(
		configProviderSet,
		infraProviderSet,
		data.ProviderSet,
		biz.ProviderSet,
		service.ProviderSet,
		server.NewHTTPServer,
		newApp,
	))
}
