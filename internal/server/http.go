package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/lk2023060901/video-share-backend/internal/conf"
	"github.com/lk2023060901/video-share-backend/internal/pkg/logger"
	"github.com/lk2023060901/video-share-backend/internal/video/service"
)

type HTTPServer struct {
	server  *http.Server
	router  *gin.Engine
	limiter *IPRateLimiter
	logger  *logger.Logger
}

func NewHTTPServer(config *conf.Config, log *logger.Logger, videoService *service.VideoService) *HTTPServer {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.MaxMultipartMemory = config.Server.MaxMultipartMemory
	router.Use(logger.GinRecovery(log))
	router.Use(logger.GinLogger(log, logger.MiddlewareOptions{
		SkipPaths: []string{"/health", "/metrics"},
	}))
	router.Use(MetricsMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	var uploadMiddleware []gin.HandlerFunc
	var limiter *IPRateLimiter
	if rl := config.Server.RateLimit; rl.Enabled {
		limiter = NewIPRateLimiter(rl.Rate, rl.Burst, rl.IdleTTL)
		uploadMiddleware = append(uploadMiddleware, limiter.Middleware())
	}

	api := router.Group("/api/v1")
	videoService.RegisterRoutes(api, uploadMiddleware...)

	return &HTTPServer{
		server: &http.Server{
			Addr:              config.Server.Addr(),
			Handler:           router,
			ReadHeaderTimeout: config.Server.ReadHeaderTimeout,
			IdleTimeout:       config.Server.IdleTimeout,
		},
		router:  router,
		limiter: limiter,
		logger:  log,
	}
}

// Handler exposes the router, mainly for tests
func (s *HTTPServer) Handler() http.Handler {
	return s.router
}

func (s *HTTPServer) Start() error {
	if s.limiter != nil {
		s.limiter.Start()
	}
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")
	if s.limiter != nil {
		defer s.limiter.Stop()
	}
	return s.server.Shutdown(ctx)
}
