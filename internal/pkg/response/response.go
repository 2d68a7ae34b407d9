package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	apperrors "github.com/lk2023060901/video-share-backend/internal/pkg/errors"
)

// Response is the JSON envelope of every API reply
type Response struct {
	Code    int         `json:"code"`              // 0 on success
	Message string      `json:"message,omitempty"` // user facing text
	Data    interface{} `json:"data"`
}

// Page wraps a list result with its paging info
type Page struct {
	Items    interface{} `json:"items"`
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
}

func Success(c *gin.Context, data interface{}) {
	write(c, http.StatusOK, apperrors.Success, "", data)
}

func Created(c *gin.Context, data interface{}) {
	write(c, http.StatusCreated, apperrors.Success, "", data)
}

// HandleError renders err using its AppError code. Errors without a code
// become 500. Only explicit details reach the client; the full error is
// attached to the context for the request logger.
func HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)

	code := apperrors.ExtractCode(err)
	var details string
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		details = appErr.Details
	}
	write(c, apperrors.GetHTTPStatus(code), code, apperrors.FormatError(code, details), nil)
}

// ErrorWithCode renders a business error code
func ErrorWithCode(c *gin.Context, code int, details ...string) {
	HandleError(c, apperrors.New(code, details...))
}

// ErrorWithData renders a business error code that still carries a payload,
// e.g. a notice the client should show for a limited time.
func ErrorWithData(c *gin.Context, code int, data interface{}, details ...string) {
	write(c, apperrors.GetHTTPStatus(code), code, apperrors.FormatError(code, details...), data)
}

func write(c *gin.Context, status, code int, message string, data interface{}) {
	if data == nil {
		data = struct{}{}
	}
	c.JSON(status, Response{
		Code:    code,
		Message: message,
		Data:    data,
	})
}
