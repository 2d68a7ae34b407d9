package logger

import (
	"context"

	"go.uber.org/zap"
)

type contextKey string

const (
	loggerKey    contextKey = "logger"
	requestIDKey contextKey = "request_id"
	uploadIDKey  contextKey = "upload_id"
)

// WithContext returns a logger carrying the request and upload ids found in ctx
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}

	fields := make([]zap.Field, 0, 2)
	if id := GetRequestID(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	if id := GetUploadID(ctx); id != "" {
		fields = append(fields, zap.String("upload_id", id))
	}

	if len(fields) == 0 {
		return l
	}
	return l.With(fields...)
}

// FromContext returns the logger stored in ctx, or the global one
func FromContext(ctx context.Context) *Logger {
	if ctx == nil {
		return L()
	}
	if l, ok := ctx.Value(loggerKey).(*Logger); ok && l != nil {
		return l.WithContext(ctx)
	}
	return L().WithContext(ctx)
}

// ToContext stores l in ctx
func ToContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithUploadID tags ctx with the client supplied upload id so that every
// log line of one publish call can be correlated.
func WithUploadID(ctx context.Context, uploadID string) context.Context {
	return context.WithValue(ctx, uploadIDKey, uploadID)
}

func GetUploadID(ctx context.Context) string {
	id, _ := ctx.Value(uploadIDKey).(string)
	return id
}
