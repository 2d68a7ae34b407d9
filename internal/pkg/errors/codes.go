package errors

import (
	"fmt"
	"net/http"
)

// Code represents an error code with HTTP status and message
type Code struct {
	Code    int
	Status  int
	Message string
}

const (
	Success = 0

	// Common errors (1000-1999)
	ErrInternalServer  = 1000
	ErrInvalidParams   = 1001
	ErrNotFound        = 1002
	ErrConflict        = 1005
	ErrTooManyRequests = 1006
	ErrBadRequest      = 1007
	ErrServiceUnavail  = 1008

	// Video errors (6000-6999)
	ErrVideoNotFound          = 6000
	ErrVideoInvalidFile       = 6001
	ErrVideoFileTooLarge      = 6002
	ErrVideoUnsupportedType   = 6003
	ErrVideoUploadFailed      = 6004
	ErrVideoMetadataFailed    = 6005
	ErrVideoShareLinkNotFound = 6006
	ErrVideoDeleteFailed      = 6007
	ErrVideoUploadBusy        = 6008
)

var codeMap = map[int]Code{
	Success: {Success, http.StatusOK, "Success"},

	ErrInternalServer:  {ErrInternalServer, http.StatusInternalServerError, "Internal server error"},
	ErrInvalidParams:   {ErrInvalidParams, http.StatusBadRequest, "Invalid parameters"},
	ErrNotFound:        {ErrNotFound, http.StatusNotFound, "Resource not found"},
	ErrConflict:        {ErrConflict, http.StatusConflict, "Resource conflict"},
	ErrTooManyRequests: {ErrTooManyRequests, http.StatusTooManyRequests, "Too many requests"},
	ErrBadRequest:      {ErrBadRequest, http.StatusBadRequest, "Bad request"},
	ErrServiceUnavail:  {ErrServiceUnavail, http.StatusServiceUnavailable, "Service unavailable"},

	ErrVideoNotFound:          {ErrVideoNotFound, http.StatusNotFound, "Video not found"},
	ErrVideoInvalidFile:       {ErrVideoInvalidFile, http.StatusBadRequest, "Invalid video file"},
	ErrVideoFileTooLarge:      {ErrVideoFileTooLarge, http.StatusBadRequest, "File size exceeds the 30GB limit"},
	ErrVideoUnsupportedType:   {ErrVideoUnsupportedType, http.StatusBadRequest, "Unsupported video format"},
	ErrVideoUploadFailed:      {ErrVideoUploadFailed, http.StatusBadGateway, "Video upload failed, please try again"},
	ErrVideoMetadataFailed:    {ErrVideoMetadataFailed, http.StatusInternalServerError, "Failed to save video metadata"},
	ErrVideoShareLinkNotFound: {ErrVideoShareLinkNotFound, http.StatusNotFound, "Shared video not found"},
	ErrVideoDeleteFailed:      {ErrVideoDeleteFailed, http.StatusInternalServerError, "Failed to delete video"},
	ErrVideoUploadBusy:        {ErrVideoUploadBusy, http.StatusTooManyRequests, "Too many uploads in progress"},
}

// GetCode returns the Code for a given error code
func GetCode(code int) Code {
	if c, ok := codeMap[code]; ok {
		return c
	}
	return codeMap[ErrInternalServer]
}

// GetHTTPStatus returns HTTP status for a given error code
func GetHTTPStatus(code int) int {
	return GetCode(code).Status
}

// GetMessage returns the message for a given error code
func GetMessage(code int) string {
	return GetCode(code).Message
}

func IsServerError(code int) bool {
	return GetHTTPStatus(code) >= 500
}

// FormatError formats an error message with optional details
func FormatError(code int, details ...string) string {
	msg := GetMessage(code)
	if len(details) > 0 && details[0] != "" {
		return fmt.Sprintf("%s: %s", msg, details[0])
	}
	return msg
}
