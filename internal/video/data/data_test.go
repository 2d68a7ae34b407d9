package data

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	pkgminio "github.com/lk2023060901/video-share-backend/internal/pkg/minio"
	"github.com/lk2023060901/video-share-backend/internal/video/biz"
)

func TestClassifyMinIOError(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantTransient bool
		wantDenied    bool
	}{
		{"slow down", pkgminio.WrapError("PutObject", minio.ErrorResponse{Code: "SlowDown", StatusCode: http.StatusServiceUnavailable}, "b", "k"), true, false},
		{"bad gateway", minio.ErrorResponse{StatusCode: http.StatusBadGateway}, true, false},
		{"access denied", minio.ErrorResponse{Code: "AccessDenied", StatusCode: http.StatusForbidden}, false, true},
		{"no such bucket", minio.ErrorResponse{Code: "NoSuchBucket", StatusCode: http.StatusNotFound}, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyMinIOError(tt.err)
			assert.Equal(t, tt.wantTransient, biz.IsTransient(err))
			assert.Equal(t, tt.wantDenied, errors.Is(err, biz.ErrAccessDenied))
			assert.ErrorIs(t, err, tt.err)
		})
	}
	assert.NoError(t, classifyMinIOError(nil))
}

func TestClassifyS3Error(t *testing.T) {
	respErr := func(status int) error {
		return &smithyhttp.ResponseError{
			Response: &smithyhttp.Response{Response: &http.Response{StatusCode: status}},
			Err:      errors.New("response error"),
		}
	}

	tests := []struct {
		name          string
		err           error
		wantTransient bool
		wantDenied    bool
	}{
		{"slow down", &smithy.GenericAPIError{Code: "SlowDown"}, true, false},
		{"access denied", &smithy.GenericAPIError{Code: "AccessDenied"}, false, true},
		{"service unavailable", respErr(http.StatusServiceUnavailable), true, false},
		{"throttled", respErr(http.StatusTooManyRequests), true, false},
		{"bad request", respErr(http.StatusBadRequest), false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyS3Error(fmt.Errorf("s3: put k: %w", tt.err))
			assert.Equal(t, tt.wantTransient, biz.IsTransient(err))
			assert.Equal(t, tt.wantDenied, errors.Is(err, biz.ErrAccessDenied))
		})
	}
}

func TestTranslateWriteError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"translated duplicate", gorm.ErrDuplicatedKey, biz.ErrShareTokenConflict},
		{"share token constraint", &pgconn.PgError{Code: "23505", ConstraintName: "idx_videos_share_token"}, biz.ErrShareTokenConflict},
		{"other constraint", &pgconn.PgError{Code: "23505", ConstraintName: "idx_videos_file_path"}, biz.ErrConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, translateWriteError(tt.err), tt.want)
		})
	}

	plain := errors.New("connection lost")
	assert.Equal(t, plain, translateWriteError(plain))
}

func TestRecordMapping(t *testing.T) {
	thumb := "videos/thumbnails/x.png"
	now := time.Now().UTC()
	in := &biz.VideoRecord{
		ID:            "id-1",
		Name:          "a.mp4",
		Size:          10,
		MediaType:     "video/mp4",
		StoragePath:   "videos/x.mp4",
		ThumbnailPath: &thumb,
		PublicURL:     "http://h/b/videos/x.mp4",
		ShareToken:    "tok",
		UploadDate:    now,
	}

	po := fromRecord(in)
	assert.Equal(t, "videos/x.mp4", po.FilePath)
	assert.Equal(t, "video/mp4", po.MediaType)

	out := toRecord(po)
	assert.Equal(t, in, out)
	assert.Equal(t, "videos", VideoPO{}.TableName())
}

func TestBeforeCreateAssignsID(t *testing.T) {
	po := &VideoPO{}
	require.NoError(t, po.BeforeCreate(nil))
	assert.Len(t, po.ID, 36)

	kept := &VideoPO{ID: "fixed"}
	require.NoError(t, kept.BeforeCreate(nil))
	assert.Equal(t, "fixed", kept.ID)
}

func TestWithProgress(t *testing.T) {
	var last int64
	r := withProgress(strings.NewReader("abcdefgh"), func(n int64) { last = n })

	rs, ok := r.(*progressReadSeeker)
	require.True(t, ok)

	buf := make([]byte, 5)
	_, err := rs.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, int64(5), last)

	_, err = rs.Seek(0, 0)
	require.NoError(t, err)
	_, err = rs.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, int64(5), last)

	plain := withProgress(onlyReader{strings.NewReader("x")}, func(int64) {})
	_, seekable := plain.(*progressReadSeeker)
	assert.False(t, seekable)
}

type onlyReader struct{ r *strings.Reader }

func (o onlyReader) Read(p []byte) (int, error) { return o.r.Read(p) }

func TestPublicURL(t *testing.T) {
	s := &S3Store{bucket: "media", baseURL: "https://cdn.example.com"}
	assert.Equal(t, "https://cdn.example.com/media/videos/a.mp4", s.PublicURL("videos/a.mp4"))
}
