package biz

import (
	"mime"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/oklog/ulid/v2"
)

const (
	// MaxSize is the largest accepted video, 30 GiB
	MaxSize int64 = 32212254720
	// MaxThumbnailSize bounds preview images
	MaxThumbnailSize int64 = 10 << 20

	unknownMediaType = "video/unknown"
	defaultExtension = "bin"
)

// media type -> canonical extension
var allowedMediaTypes = map[string]string{
	"video/mp4":        "mp4",
	"video/webm":       "webm",
	"video/ogg":        "ogg",
	"video/avi":        "avi",
	"video/x-msvideo":  "avi",
	"video/mov":        "mov",
	"video/quicktime":  "mov",
	"video/wmv":        "wmv",
	"video/x-ms-wmv":   "wmv",
	"video/flv":        "flv",
	"video/x-flv":      "flv",
	"video/mkv":        "mkv",
	"video/x-matroska": "mkv",
	"video/3gpp":       "3gp",
}

var allowedExtensions = map[string]struct{}{
	"mp4": {}, "webm": {}, "ogg": {}, "avi": {}, "mov": {},
	"wmv": {}, "flv": {}, "mkv": {}, "3gp": {}, "qt": {},
}

// NormalizeMediaType lowercases mt and drops any parameters
func NormalizeMediaType(mt string) string {
	mt = strings.TrimSpace(mt)
	if mt == "" {
		return ""
	}
	if parsed, _, err := mime.ParseMediaType(mt); err == nil {
		return parsed
	}
	return strings.ToLower(mt)
}

// Extension returns the lowercased extension of name without the dot
func Extension(name string) string {
	return strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
}

func IsAllowedMediaType(mt string) bool {
	_, ok := allowedMediaTypes[NormalizeMediaType(mt)]
	return ok
}

func IsAllowedExtension(ext string) bool {
	_, ok := allowedExtensions[strings.ToLower(ext)]
	return ok
}

// validatePublish checks everything that can be checked without I/O
func validatePublish(in *PublishInput) error {
	if in == nil {
		return &ValidationError{Field: "file", Reason: "missing"}
	}
	if strings.TrimSpace(in.Name) == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if in.Content == nil {
		return &ValidationError{Field: "file", Reason: "missing content"}
	}
	if in.Size <= 0 {
		return &ValidationError{Field: "file", Reason: "is empty"}
	}
	if in.Size > MaxSize {
		return &ValidationError{Field: "size", Reason: "exceeds the 30GB limit"}
	}
	if !IsAllowedMediaType(in.MediaType) && !IsAllowedExtension(Extension(in.Name)) {
		return &ValidationError{Field: "type", Reason: "unsupported video format"}
	}
	if len(in.Thumbnail) > 0 {
		return validateThumbnail(in.Thumbnail, in.ThumbnailType)
	}
	return nil
}

func validateThumbnail(data []byte, contentType string) error {
	if len(data) == 0 {
		return &ValidationError{Field: "thumbnail", Reason: "is empty"}
	}
	if int64(len(data)) > MaxThumbnailSize {
		return &ValidationError{Field: "thumbnail", Reason: "exceeds the 10MB limit"}
	}
	if !strings.HasPrefix(NormalizeMediaType(contentType), "image/") {
		return &ValidationError{Field: "thumbnail", Reason: "must be an image"}
	}
	return nil
}

// newObjectID returns a lowercase ULID: millisecond timestamp plus 80 random
// bits, so keys sort by upload time and never collide across instances.
func newObjectID() string {
	return strings.ToLower(ulid.Make().String())
}

// videoExtension prefers the filename's extension, then the media type
func videoExtension(name, mediaType string) string {
	if ext := Extension(name); ext != "" {
		return ext
	}
	if ext, ok := allowedMediaTypes[NormalizeMediaType(mediaType)]; ok {
		return ext
	}
	return defaultExtension
}

func imageExtension(contentType string) string {
	if m := mimetype.Lookup(NormalizeMediaType(contentType)); m != nil && m.Extension() != "" {
		return strings.TrimPrefix(m.Extension(), ".")
	}
	return defaultExtension
}

// VideoKey builds {prefix}/{id}.{ext}
func VideoKey(prefix, id, ext string) string {
	return path.Join(prefix, id+"."+ext)
}

// ThumbnailKey builds {prefix}/thumbnails/{id}.{ext}
func ThumbnailKey(prefix, id, ext string) string {
	return path.Join(prefix, "thumbnails", id+"."+ext)
}
