package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/lk2023060901/video-share-backend/internal/pkg/errors"
	"github.com/lk2023060901/video-share-backend/internal/pkg/logger"
	"github.com/lk2023060901/video-share-backend/internal/pkg/sse"
	"github.com/lk2023060901/video-share-backend/internal/pkg/workerpool"
	"github.com/lk2023060901/video-share-backend/internal/video/biz"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	pingErr error
	onPut   func() // runs before the body is read, ignoring ctx
}

func newMemStore() *memStore {
	return &memStore{objects: make(map[string][]byte)}
}

func (s *memStore) Put(_ context.Context, key string, body io.Reader, _ int64, _ string, onProgress func(int64)) error {
	if s.onPut != nil {
		s.onPut()
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	if onProgress != nil {
		onProgress(int64(len(data)))
	}
	s.mu.Lock()
	s.objects[key] = data
	s.mu.Unlock()
	return nil
}

func (s *memStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.objects, key)
	s.mu.Unlock()
	return nil
}

func (s *memStore) PublicURL(key string) string { return "http://storage.test/videos/" + key }

func (s *memStore) Ping(context.Context) error { return s.pingErr }

type memRepo struct {
	mu   sync.Mutex
	rows map[string]*biz.VideoRecord
}

func newMemRepo() *memRepo {
	return &memRepo{rows: make(map[string]*biz.VideoRecord)}
}

func (r *memRepo) Insert(_ context.Context, v *biz.VideoRecord) (*biz.VideoRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *v
	cp.ID = uuid.NewString()
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	r.rows[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (r *memRepo) Update(_ context.Context, v *biz.VideoRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[v.ID]; !ok {
		return biz.ErrNotFound
	}
	cp := *v
	r.rows[v.ID] = &cp
	return nil
}

func (r *memRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return biz.ErrNotFound
	}
	delete(r.rows, id)
	return nil
}

func (r *memRepo) FindByID(_ context.Context, id string) (*biz.VideoRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.rows[id]
	if !ok {
		return nil, biz.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (r *memRepo) FindByShareToken(_ context.Context, token string) (*biz.VideoRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.rows {
		if v.ShareToken == token {
			cp := *v
			return &cp, nil
		}
	}
	return nil, biz.ErrNotFound
}

func (r *memRepo) List(_ context.Context, filter biz.ListFilter) ([]*biz.VideoRecord, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*biz.VideoRecord
	for _, v := range r.rows {
		if filter.Query == "" || strings.Contains(strings.ToLower(v.Name), strings.ToLower(filter.Query)) {
			cp := *v
			out = append(out, &cp)
		}
	}
	return out, int64(len(out)), nil
}

func (r *memRepo) Ping(context.Context) error { return nil }

type testEnv struct {
	router *gin.Engine
	store  *memStore
	repo   *memRepo
	hub    *sse.Hub
	pool   *workerpool.Pool
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store, repo := newMemStore(), newMemRepo()
	uc := biz.NewVideoUseCase(repo, store, biz.NewShareTokenIssuer(), nil, biz.DefaultConfig(), nil)

	pool, err := workerpool.New(&workerpool.Config{Size: 2, MaxWaiting: 2}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Shutdown(time.Second) })

	hub := sse.NewHub(time.Minute)

	svc := NewVideoService(uc, pool, hub, DefaultConfig(), logger.NewNop())
	r := gin.New()
	svc.RegisterRoutes(r.Group("/api/v1"))

	return &testEnv{router: r, store: store, repo: repo, hub: hub, pool: pool}
}

type part struct {
	field, filename, contentType string
	data                         []byte
}

func multipartBody(t *testing.T, fields map[string]string, parts ...part) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, p := range parts {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, p.field, p.filename))
		if p.contentType != "" {
			h.Set("Content-Type", p.contentType)
		}
		pw, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = pw.Write(p.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (e *testEnv) do(t *testing.T, method, target string, body io.Reader, contentType string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

func (e *testEnv) upload(t *testing.T, uploadID string, parts ...part) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	fields := map[string]string{}
	if uploadID != "" {
		fields["upload_id"] = uploadID
	}
	body, ct := multipartBody(t, fields, parts...)
	return e.do(t, http.MethodPost, "/api/v1/videos", body, ct)
}

func mp4Part(name string) part {
	return part{field: "file", filename: name, contentType: "video/mp4", data: []byte("not really an mp4 but long enough")}
}

func TestUpload(t *testing.T) {
	env := newTestEnv(t)

	w, resp := env.upload(t, "up-1", mp4Part("holiday.mp4"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var v VideoResponse
	require.NoError(t, json.Unmarshal(resp.Data, &v))
	assert.Equal(t, "holiday.mp4", v.Name)
	assert.Equal(t, "video/mp4", v.Type)
	assert.True(t, strings.HasPrefix(v.FilePath, "videos/"))
	assert.True(t, strings.HasSuffix(v.FilePath, ".mp4"))
	assert.Equal(t, "http://storage.test/videos/"+v.FilePath, v.PublicURL)
	assert.Len(t, v.ShareToken, biz.ShareTokenLength)
	assert.Equal(t, "http://localhost:3000/?share="+v.ShareToken, v.ShareURL)

	env.store.mu.Lock()
	assert.Len(t, env.store.objects, 1)
	env.store.mu.Unlock()

	// late subscribers get the terminal event replayed
	client := sse.NewClient("late", uploadResource("up-1"), 4)
	env.hub.Register(client)
	defer env.hub.Unregister(client)
	select {
	case ev := <-client.Channel:
		assert.Equal(t, eventCompleted, ev.Type)
		data, ok := ev.Data.(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, v.ID, data["video_id"])
		assert.Equal(t, v.ShareURL, data["share_url"])
	case <-time.After(time.Second):
		t.Fatal("no replayed event")
	}
}

func TestUpload_Rejected(t *testing.T) {
	tests := []struct {
		name     string
		uploadID string
		parts    []part
		status   int
		code     int
	}{
		{
			name:   "missing file",
			status: http.StatusBadRequest,
			code:   apperrors.ErrVideoInvalidFile,
		},
		{
			name:   "empty file",
			parts:  []part{{field: "file", filename: "a.mp4", contentType: "video/mp4"}},
			status: http.StatusBadRequest,
			code:   apperrors.ErrVideoInvalidFile,
		},
		{
			name:   "unsupported type",
			parts:  []part{{field: "file", filename: "notes.txt", contentType: "text/plain", data: []byte("hello")}},
			status: http.StatusBadRequest,
			code:   apperrors.ErrVideoUnsupportedType,
		},
		{
			name:     "bad upload id",
			uploadID: "has spaces",
			parts:    []part{mp4Part("a.mp4")},
			status:   http.StatusBadRequest,
			code:     apperrors.ErrInvalidParams,
		},
		{
			name: "thumbnail not an image",
			parts: []part{
				mp4Part("a.mp4"),
				{field: "thumbnail", filename: "t.txt", contentType: "text/plain", data: []byte("nope")},
			},
			status: http.StatusBadRequest,
			code:   apperrors.ErrVideoInvalidFile,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			w, resp := env.upload(t, tt.uploadID, tt.parts...)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, tt.code, resp.Code)

			env.store.mu.Lock()
			assert.Empty(t, env.store.objects)
			env.store.mu.Unlock()
		})
	}
}

func TestUpload_FailureBroadcast(t *testing.T) {
	env := newTestEnv(t)

	client := sse.NewClient("c1", uploadResource("up-2"), 8)
	env.hub.Register(client)
	defer env.hub.Unregister(client)

	w, _ := env.upload(t, "up-2", part{field: "file", filename: "notes.txt", contentType: "text/plain", data: []byte("x")})
	require.Equal(t, http.StatusBadRequest, w.Code)

	select {
	case ev := <-client.Channel:
		assert.Equal(t, eventFailed, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("no failure event")
	}
}

func TestUpload_AbandonedPublishStaysSilent(t *testing.T) {
	env := newTestEnv(t)
	started, release := make(chan struct{}), make(chan struct{})
	env.store.onPut = func() {
		close(started)
		<-release
	}

	body, ct := multipartBody(t, map[string]string{"upload_id": "gone-1"}, mp4Part("gone.mp4"))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/videos", body).WithContext(ctx)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()

	handled := make(chan struct{})
	go func() {
		env.router.ServeHTTP(w, req)
		close(handled)
	}()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("publish never reached the store")
	}
	cancel()
	select {
	case <-handled:
	case <-time.After(5 * time.Second):
		t.Fatal("handler kept waiting after the client left")
	}

	// let the abandoned publish run to the end
	close(release)
	require.NoError(t, env.pool.Shutdown(5*time.Second))

	client := sse.NewClient("late", uploadResource("gone-1"), 4)
	env.hub.Register(client)
	defer env.hub.Unregister(client)
	select {
	case ev := <-client.Channel:
		assert.Equal(t, eventFailed, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("no replayed event")
	}
}

func TestGetAndDelete(t *testing.T) {
	env := newTestEnv(t)

	_, resp := env.upload(t, "", mp4Part("clip.mp4"))
	var v VideoResponse
	require.NoError(t, json.Unmarshal(resp.Data, &v))

	w, _ := env.do(t, http.MethodGet, "/api/v1/videos/"+v.ID, nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = env.do(t, http.MethodDelete, "/api/v1/videos/"+v.ID, nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w, resp = env.do(t, http.MethodGet, "/api/v1/videos/"+v.ID, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, apperrors.ErrVideoNotFound, resp.Code)

	env.store.mu.Lock()
	assert.Empty(t, env.store.objects)
	env.store.mu.Unlock()

	w, resp = env.do(t, http.MethodGet, "/api/v1/videos/not-a-uuid", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, apperrors.ErrVideoNotFound, resp.Code)
}

func TestList(t *testing.T) {
	env := newTestEnv(t)
	env.upload(t, "", mp4Part("cats.mp4"))
	env.upload(t, "", mp4Part("dogs.mp4"))

	w, resp := env.do(t, http.MethodGet, "/api/v1/videos?q=CAT", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var page struct {
		Items    []VideoResponse `json:"items"`
		Total    int64           `json:"total"`
		Page     int             `json:"page"`
		PageSize int             `json:"page_size"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &page))
	require.Len(t, page.Items, 1)
	assert.Equal(t, "cats.mp4", page.Items[0].Name)
	assert.Equal(t, int64(1), page.Total)
	assert.Equal(t, 1, page.Page)
}

func TestResolveShare(t *testing.T) {
	env := newTestEnv(t)

	_, resp := env.upload(t, "", mp4Part("share.mp4"))
	var v VideoResponse
	require.NoError(t, json.Unmarshal(resp.Data, &v))

	w, resp := env.do(t, http.MethodGet, "/api/v1/share/"+v.ShareToken, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var got VideoResponse
	require.NoError(t, json.Unmarshal(resp.Data, &got))
	assert.Equal(t, v.ID, got.ID)

	for _, token := range []string{"AAAAAAAAAAAAAAAAAAAAAA", "short", "bad!token"} {
		w, resp = env.do(t, http.MethodGet, "/api/v1/share/"+token, nil, "")
		assert.Equal(t, http.StatusNotFound, w.Code, token)
		assert.Equal(t, apperrors.ErrVideoShareLinkNotFound, resp.Code)

		var data map[string]int64
		require.NoError(t, json.Unmarshal(resp.Data, &data))
		assert.Equal(t, int64(5000), data["dismiss_after_ms"])
	}
}

func TestAttachThumbnail(t *testing.T) {
	env := newTestEnv(t)

	_, resp := env.upload(t, "", mp4Part("thumb.mp4"))
	var v VideoResponse
	require.NoError(t, json.Unmarshal(resp.Data, &v))

	png := []byte("\x89PNG\r\n\x1a\n0000IHDR")
	body, ct := multipartBody(t, nil, part{field: "thumbnail", filename: "t.png", contentType: "image/png", data: png})
	w, resp := env.do(t, http.MethodPut, "/api/v1/videos/"+v.ID+"/thumbnail", body, ct)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var got VideoResponse
	require.NoError(t, json.Unmarshal(resp.Data, &got))
	require.NotNil(t, got.ThumbnailPath)
	assert.True(t, strings.HasSuffix(*got.ThumbnailPath, ".png"))
	assert.Equal(t, "http://storage.test/videos/"+*got.ThumbnailPath, got.ThumbnailURL)

	body, ct = multipartBody(t, nil)
	w, resp = env.do(t, http.MethodPut, "/api/v1/videos/"+v.ID+"/thumbnail", body, ct)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperrors.ErrInvalidParams, resp.Code)
}

func TestAttachThumbnail_OversizedBody(t *testing.T) {
	env := newTestEnv(t)

	_, resp := env.upload(t, "", mp4Part("big-thumb.mp4"))
	var v VideoResponse
	require.NoError(t, json.Unmarshal(resp.Data, &v))

	huge := bytes.Repeat([]byte{0xff}, int(multipartOverhead)+1<<20)
	body, ct := multipartBody(t, nil, part{field: "thumbnail", filename: "t.png", contentType: "image/png", data: huge})
	w, resp := env.do(t, http.MethodPut, "/api/v1/videos/"+v.ID+"/thumbnail", body, ct)
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	assert.Equal(t, apperrors.ErrVideoInvalidFile, resp.Code)
	assert.Contains(t, resp.Message, "exceeds the 10MB limit")

	env.store.mu.Lock()
	assert.Len(t, env.store.objects, 1)
	env.store.mu.Unlock()
}

func TestStatus(t *testing.T) {
	env := newTestEnv(t)

	w, _ := env.do(t, http.MethodGet, "/api/v1/status", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	env.store.pingErr = errors.New("connection refused")
	w, resp := env.do(t, http.MethodGet, "/api/v1/status", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var status biz.BackendStatus
	require.NoError(t, json.Unmarshal(resp.Data, &status))
	assert.True(t, status.Database.Healthy)
	assert.False(t, status.Storage.Healthy)
	assert.Equal(t, "connection refused", status.Storage.Error)
}

func TestUploadEvents_InvalidID(t *testing.T) {
	env := newTestEnv(t)
	w, resp := env.do(t, http.MethodGet, "/api/v1/uploads/"+strings.Repeat("x", 65)+"/events", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperrors.ErrInvalidParams, resp.Code)
}

func TestToAppError(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{&biz.ValidationError{Field: "size", Reason: "too big"}, apperrors.ErrVideoFileTooLarge},
		{&biz.ValidationError{Field: "type", Reason: "nope"}, apperrors.ErrVideoUnsupportedType},
		{&biz.ValidationError{Field: "file", Reason: "is empty"}, apperrors.ErrVideoInvalidFile},
		{fmt.Errorf("get: %w", biz.ErrNotFound), apperrors.ErrVideoNotFound},
		{&biz.UploadError{Key: "k", Attempts: 4, Err: errors.New("timeout")}, apperrors.ErrVideoUploadFailed},
		{&biz.MetadataWriteError{Key: "k", Err: errors.New("db down")}, apperrors.ErrVideoMetadataFailed},
		{workerpool.ErrPoolOverload, apperrors.ErrVideoUploadBusy},
		{errors.New("boom"), apperrors.ErrInternalServer},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.code, toAppError(tt.err).Code, tt.err.Error())
	}
}

func TestShareURL(t *testing.T) {
	assert.Equal(t, "http://localhost:3000/?share=abc", ShareURL("http://localhost:3000/", "abc"))
	assert.Equal(t, "https://v.example.com/watch?lang=en&share=abc", ShareURL("https://v.example.com/watch?lang=en", "abc"))
}

func TestDetectMediaType(t *testing.T) {
	got, err := detectMediaType("video/mp4; codecs=avc1", strings.NewReader("x"))
	require.NoError(t, err)
	assert.Equal(t, "video/mp4", got)

	r := strings.NewReader("plain text content")
	got, err = detectMediaType("application/octet-stream", r)
	require.NoError(t, err)
	assert.Equal(t, "application/octet-stream", got)
	pos, _ := r.Seek(0, io.SeekCurrent)
	assert.Zero(t, pos)
}
