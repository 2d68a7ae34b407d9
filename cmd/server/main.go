package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/lk2023060901/video-share-backend/internal/conf"
	"github.com/lk2023060901/video-share-backend/internal/pkg/logger"
)

var (
	configFile = flag.String("config", "configs/config.yaml", "config file path")
)

func main() {
	flag.Parse()

	config, err := conf.Load(*configFile)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log, err := logger.New(&config.Log)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer log.Sync()

	if err := logger.InitGlobal(&config.Log); err != nil {
		log.Fatal("failed to initialize global logger", zap.Error(err))
	}
	log.Info("config loaded", zap.String("file", *configFile), zap.String("storage", config.Storage.Driver))

	app, cleanup, err := wireApp(config, log)
	if err != nil {
		log.Fatal("failed to initialize application", zap.Error(err))
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx); err != nil {
		log.Error("application stopped with error", zap.Error(err))
		return
	}
	log.Info("server exited")
}
