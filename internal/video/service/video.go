package service

import (
	"net/url"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/wire"

	"github.com/lk2023060901/video-share-backend/internal/pkg/logger"
	"github.com/lk2023060901/video-share-backend/internal/pkg/sse"
	"github.com/lk2023060901/video-share-backend/internal/pkg/workerpool"
	"github.com/lk2023060901/video-share-backend/internal/video/biz"
)

// ProviderSet is service providers.
var ProviderSet = wire.NewSet(NewVideoService)

var uploadIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Config controls the HTTP surface of the video service
type Config struct {
	// ShareBaseURL is the page share links point at; the token is appended as ?share=
	ShareBaseURL string `mapstructure:"share_base_url"`
	// ShareNotFoundDismiss tells clients how long to show the not-found notice
	ShareNotFoundDismiss time.Duration `mapstructure:"share_not_found_dismiss"`
	SSEKeepAlive         time.Duration `mapstructure:"sse_keep_alive"`
}

func DefaultConfig() *Config {
	return &Config{
		ShareBaseURL:         "http://localhost:3000/",
		ShareNotFoundDismiss: 5 * time.Second,
		SSEKeepAlive:         15 * time.Second,
	}
}

type VideoService struct {
	uc     *biz.VideoUseCase
	pool   *workerpool.Pool
	hub    *sse.Hub
	cfg    *Config
	logger *logger.Logger
}

func NewVideoService(uc *biz.VideoUseCase, pool *workerpool.Pool, hub *sse.Hub, cfg *Config, lgr *logger.Logger) *VideoService {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if lgr == nil {
		lgr = logger.L()
	}
	return &VideoService{
		uc:     uc,
		pool:   pool,
		hub:    hub,
		cfg:    cfg,
		logger: lgr.Named("video-service"),
	}
}

// RegisterRoutes mounts the video API on r. uploadMiddleware runs in front
// of the upload endpoints only.
func (s *VideoService) RegisterRoutes(r gin.IRouter, uploadMiddleware ...gin.HandlerFunc) {
	videos := r.Group("/videos")
	{
		videos.POST("", chain(uploadMiddleware, s.Upload)...)
		videos.GET("", s.List)
		videos.GET("/:id", s.Get)
		videos.DELETE("/:id", s.Delete)
		videos.PUT("/:id/thumbnail", chain(uploadMiddleware, s.AttachThumbnail)...)
	}

	r.GET("/share/:token", s.ResolveShare)
	r.GET("/uploads/:upload_id/events", s.UploadEvents)
	r.GET("/status", s.Status)
}

func chain(middleware []gin.HandlerFunc, h gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(middleware)+1)
	out = append(out, middleware...)
	return append(out, h)
}

// VideoResponse is the JSON shape of a video
type VideoResponse struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Size          int64     `json:"size"`
	Type          string    `json:"type"`
	FilePath      string    `json:"file_path"`
	ThumbnailPath *string   `json:"thumbnail_path,omitempty"`
	ThumbnailURL  string    `json:"thumbnail_url,omitempty"`
	PublicURL     string    `json:"public_url"`
	ShareToken    string    `json:"share_token"`
	ShareURL      string    `json:"share_url"`
	UploadDate    time.Time `json:"upload_date"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (s *VideoService) toResponse(v *biz.VideoRecord) *VideoResponse {
	resp := &VideoResponse{
		ID:            v.ID,
		Name:          v.Name,
		Size:          v.Size,
		Type:          v.MediaType,
		FilePath:      v.StoragePath,
		ThumbnailPath: v.ThumbnailPath,
		PublicURL:     v.PublicURL,
		ShareToken:    v.ShareToken,
		ShareURL:      ShareURL(s.cfg.ShareBaseURL, v.ShareToken),
		UploadDate:    v.UploadDate,
		CreatedAt:     v.CreatedAt,
		UpdatedAt:     v.UpdatedAt,
	}
	if v.ThumbnailPath != nil {
		resp.ThumbnailURL = s.uc.PublicURL(*v.ThumbnailPath)
	}
	return resp
}

// ShareURL appends ?share={token} to base, keeping any query base already has
func ShareURL(base, token string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base + "?share=" + url.QueryEscape(token)
	}
	q := u.Query()
	q.Set("share", token)
	u.RawQuery = q.Encode()
	return u.String()
}
