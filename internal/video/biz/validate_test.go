package biz

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatePublishSizeBounds(t *testing.T) {
	tests := []struct {
		size    int64
		wantErr bool
	}{
		{-1, true},
		{0, true},
		{1, false},
		{MaxSize - 1, false},
		{MaxSize, false},
		{MaxSize + 1, true},
	}

	for _, tt := range tests {
		err := validatePublish(&PublishInput{Name: "a.mp4", Size: tt.size, MediaType: "video/mp4", Content: strings.NewReader("")})
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrValidation, "size %d", tt.size)
		} else {
			assert.NoError(t, err, "size %d", tt.size)
		}
	}
	assert.Equal(t, int64(32212254720), MaxSize)
}

func TestValidatePublishType(t *testing.T) {
	tests := []struct {
		name      string
		mediaType string
		wantErr   bool
	}{
		{"a.mp4", "video/mp4", false},
		{"a.bin", "video/quicktime", false},
		{"a.bin", "VIDEO/X-MATROSKA; charset=binary", false},
		{"a.MOV", "", false},
		{"a.qt", "application/octet-stream", false},
		{"a.3GP", "", false},
		{"a.bin", "video/mpeg", true},
		{"noext", "", true},
		{"a.gif", "image/gif", true},
	}

	for _, tt := range tests {
		err := validatePublish(&PublishInput{Name: tt.name, Size: 10, MediaType: tt.mediaType, Content: strings.NewReader("")})
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrValidation, "%s %s", tt.name, tt.mediaType)
		} else {
			assert.NoError(t, err, "%s %s", tt.name, tt.mediaType)
		}
	}
}

func TestVideoExtension(t *testing.T) {
	tests := []struct {
		name, mediaType, want string
	}{
		{"clip.MP4", "video/mp4", "mp4"},
		{"clip", "video/quicktime", "mov"},
		{"clip", "video/x-msvideo", "avi"},
		{"clip", "video/unknown", "bin"},
		{"clip.tar.webm", "", "webm"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, videoExtension(tt.name, tt.mediaType), tt.name)
	}
}

func TestImageExtension(t *testing.T) {
	assert.Equal(t, "png", imageExtension("image/png"))
	assert.Equal(t, "jpg", imageExtension("image/jpeg"))
	assert.Equal(t, "bin", imageExtension("image/x-made-up"))
}

func TestStorageKeys(t *testing.T) {
	a, b := newObjectID(), newObjectID()
	assert.Len(t, a, 26)
	assert.Equal(t, strings.ToLower(a), a)
	assert.NotEqual(t, a, b)

	assert.Equal(t, "videos/"+a+".mp4", VideoKey("videos", a, "mp4"))
	assert.Equal(t, "videos/thumbnails/"+a+".png", ThumbnailKey("videos", a, "png"))
	assert.Equal(t, "media/videos/"+a+".mkv", VideoKey("media/videos/", a, "mkv"))
}

func TestValidateThumbnail(t *testing.T) {
	assert.NoError(t, validateThumbnail([]byte("x"), "image/webp"))
	assert.ErrorIs(t, validateThumbnail(nil, "image/png"), ErrValidation)
	assert.ErrorIs(t, validateThumbnail([]byte("x"), "video/mp4"), ErrValidation)
	assert.ErrorIs(t, validateThumbnail(make([]byte, MaxThumbnailSize+1), "image/png"), ErrValidation)
}
