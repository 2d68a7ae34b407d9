package service

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/lk2023060901/video-share-backend/internal/pkg/errors"
	"github.com/lk2023060901/video-share-backend/internal/pkg/database"
	"github.com/lk2023060901/video-share-backend/internal/pkg/logger"
	"github.com/lk2023060901/video-share-backend/internal/pkg/response"
	"github.com/lk2023060901/video-share-backend/internal/pkg/sse"
	"github.com/lk2023060901/video-share-backend/internal/video/biz"
)

const (
	eventProgress  = "progress"
	eventCompleted = "completed"
	eventFailed    = "failed"

	// room for multipart framing and the thumbnail on top of the video
	multipartOverhead = biz.MaxThumbnailSize + 1<<20
)

func uploadResource(uploadID string) string {
	return "upload:" + uploadID
}

// uploadFeed publishes the events of one upload. Nothing is sent after the
// terminal event, so a publish still running for an abandoned request
// cannot overwrite it. A nil feed drops everything.
type uploadFeed struct {
	mu       sync.Mutex
	hub      *sse.Hub
	uploadID string
	closed   bool
}

func newUploadFeed(hub *sse.Hub, uploadID string) *uploadFeed {
	if uploadID == "" {
		return nil
	}
	return &uploadFeed{hub: hub, uploadID: uploadID}
}

func (f *uploadFeed) progress(percent float64) {
	f.send(eventProgress, map[string]interface{}{"percent": percent}, false)
}

func (f *uploadFeed) finish(eventType string, data map[string]interface{}) {
	f.send(eventType, data, true)
}

func (f *uploadFeed) send(eventType string, data map[string]interface{}, last bool) {
	if f == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = last
	data["upload_id"] = f.uploadID
	f.hub.Broadcast(uploadResource(f.uploadID), sse.Event{Type: eventType, Data: data})
}

// Upload 上传视频并返回分享链接
func (s *VideoService) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, biz.MaxSize+multipartOverhead)

	uploadID := c.PostForm("upload_id")
	if uploadID != "" && !uploadIDPattern.MatchString(uploadID) {
		response.ErrorWithCode(c, apperrors.ErrInvalidParams, "upload_id must be 1-64 characters of [A-Za-z0-9_-]")
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.ErrorWithCode(c, apperrors.ErrVideoFileTooLarge)
			return
		}
		response.ErrorWithCode(c, apperrors.ErrVideoInvalidFile, "form field 'file' is required")
		return
	}

	file, err := fh.Open()
	if err != nil {
		response.ErrorWithCode(c, apperrors.ErrVideoInvalidFile, "failed to open file")
		return
	}
	defer file.Close()

	mediaType, err := detectMediaType(fh.Header.Get("Content-Type"), file)
	if err != nil {
		response.ErrorWithCode(c, apperrors.ErrVideoInvalidFile, "failed to read file")
		return
	}

	in := &biz.PublishInput{
		Name:      fh.Filename,
		Size:      fh.Size,
		MediaType: mediaType,
		Content:   file,
	}
	if thumb, thumbType, ok := s.readThumbnail(c); ok {
		in.Thumbnail, in.ThumbnailType = thumb, thumbType
	} else if c.IsAborted() {
		return
	}

	ctx := c.Request.Context()
	if uploadID != "" {
		ctx = logger.WithUploadID(ctx, uploadID)
	}
	log := s.logger.WithContext(ctx)
	log.Info("video upload received",
		zap.String("filename", fh.Filename),
		zap.Int64("size", fh.Size),
		zap.String("type", mediaType))

	feed := newUploadFeed(s.hub, uploadID)

	var record *biz.VideoRecord
	err = s.pool.SubmitWait(ctx, func(ctx context.Context) error {
		var perr error
		record, perr = s.uc.Publish(ctx, in, feed.progress)
		return perr
	})
	if err != nil {
		appErr := toAppError(err)
		feed.finish(eventFailed, map[string]interface{}{
			"code":    appErr.Code,
			"message": apperrors.FormatError(appErr.Code, appErr.Details),
		})
		if apperrors.IsServerError(appErr.Code) {
			log.Error("video upload failed", zap.String("detail", apperrors.GetDetails(appErr)), zap.Error(err))
		} else {
			log.Warn("video upload rejected", zap.String("detail", apperrors.GetDetails(appErr)))
		}
		response.HandleError(c, appErr)
		return
	}

	resp := s.toResponse(record)
	feed.finish(eventCompleted, map[string]interface{}{
		"percent":   100,
		"video_id":  resp.ID,
		"share_url": resp.ShareURL,
	})
	log.Info("video upload completed",
		zap.String("video_id", resp.ID),
		zap.Int("watchers", s.hub.ClientCount(uploadResource(uploadID))))
	response.Created(c, resp)
}

// readThumbnail reads the optional thumbnail part. ok is false when there
// is none or when an error response has already been written.
func (s *VideoService) readThumbnail(c *gin.Context) (data []byte, contentType string, ok bool) {
	fh, err := c.FormFile("thumbnail")
	if err != nil {
		return nil, "", false
	}
	data, contentType, err = readImagePart(fh)
	if err != nil {
		response.HandleError(c, toAppError(err))
		c.Abort()
		return nil, "", false
	}
	return data, contentType, true
}

var errThumbnailTooLarge = &biz.ValidationError{Field: "thumbnail", Reason: "exceeds the 10MB limit"}

func readImagePart(fh *multipart.FileHeader) ([]byte, string, error) {
	if fh.Size > biz.MaxThumbnailSize {
		return nil, "", errThumbnailTooLarge
	}
	f, err := fh.Open()
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, biz.MaxThumbnailSize+1))
	if err != nil {
		return nil, "", err
	}

	contentType := biz.NormalizeMediaType(fh.Header.Get("Content-Type"))
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = mimetype.Detect(data).String()
	}
	return data, contentType, nil
}

// detectMediaType trusts a declared type unless it is missing or generic, in
// which case the leading bytes decide. Only video types are taken from
// sniffing; the extension check in biz covers the rest.
func detectMediaType(declared string, f io.ReadSeeker) (string, error) {
	declared = biz.NormalizeMediaType(declared)
	if declared != "" && declared != "application/octet-stream" {
		return declared, nil
	}

	m, err := mimetype.DetectReader(f)
	if err != nil {
		return "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	if detected := biz.NormalizeMediaType(m.String()); strings.HasPrefix(detected, "video/") {
		return detected, nil
	}
	return declared, nil
}

func (s *VideoService) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(database.DefaultPageSize)))
	page, pageSize = database.NormalizePage(page, pageSize)

	records, total, err := s.uc.List(c.Request.Context(), biz.ListFilter{
		Query:    c.Query("q"),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		s.logger.WithContext(c.Request.Context()).Error("failed to list videos", zap.Error(err))
		response.HandleError(c, toAppError(err))
		return
	}

	items := make([]*VideoResponse, len(records))
	for i, v := range records {
		items[i] = s.toResponse(v)
	}
	response.Success(c, response.Page{
		Items:    items,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

func (s *VideoService) Get(c *gin.Context) {
	v, err := s.uc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.HandleError(c, toAppError(err))
		return
	}
	response.Success(c, s.toResponse(v))
}

func (s *VideoService) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := s.uc.Delete(c.Request.Context(), id); err != nil {
		if !errors.Is(err, biz.ErrNotFound) {
			s.logger.WithContext(c.Request.Context()).Error("failed to delete video", zap.String("video_id", id), zap.Error(err))
			response.HandleError(c, apperrors.Wrap(err, apperrors.ErrVideoDeleteFailed))
			return
		}
		response.HandleError(c, toAppError(err))
		return
	}
	response.Success(c, gin.H{"id": id, "deleted": true})
}

func (s *VideoService) AttachThumbnail(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, multipartOverhead)

	fh, err := c.FormFile("thumbnail")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.HandleError(c, toAppError(errThumbnailTooLarge))
			return
		}
		response.ErrorWithCode(c, apperrors.ErrInvalidParams, "form field 'thumbnail' is required")
		return
	}
	data, contentType, err := readImagePart(fh)
	if err != nil {
		response.HandleError(c, toAppError(err))
		return
	}

	v, err := s.uc.AttachThumbnail(c.Request.Context(), c.Param("id"), data, contentType)
	if err != nil {
		response.HandleError(c, toAppError(err))
		return
	}
	response.Success(c, s.toResponse(v))
}

// ResolveShare 通过分享链接获取视频
func (s *VideoService) ResolveShare(c *gin.Context) {
	v, err := s.uc.GetByShareToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		if errors.Is(err, biz.ErrNotFound) {
			response.ErrorWithData(c, apperrors.ErrVideoShareLinkNotFound, gin.H{
				"dismiss_after_ms": s.cfg.ShareNotFoundDismiss.Milliseconds(),
			}, "the link may be wrong or the video was removed")
			return
		}
		s.logger.WithContext(c.Request.Context()).Error("failed to resolve share link", zap.Error(err))
		response.HandleError(c, toAppError(err))
		return
	}
	response.Success(c, s.toResponse(v))
}

// UploadEvents streams progress of the upload identified by upload_id
func (s *VideoService) UploadEvents(c *gin.Context) {
	uploadID := c.Param("upload_id")
	if !uploadIDPattern.MatchString(uploadID) {
		response.ErrorWithCode(c, apperrors.ErrInvalidParams, "invalid upload_id")
		return
	}

	client := sse.NewClient(uuid.NewString(), uploadResource(uploadID), 32)
	sse.Serve(c, s.hub, client, sse.StreamOptions{
		KeepAlive: s.cfg.SSEKeepAlive,
		CloseOn:   []string{eventCompleted, eventFailed},
	})
}

// Status 检查数据库与对象存储
func (s *VideoService) Status(c *gin.Context) {
	status := s.uc.Status(c.Request.Context())
	if !status.Healthy() {
		response.ErrorWithData(c, apperrors.ErrServiceUnavail, status)
		return
	}
	response.Success(c, status)
}
