package minio

import (
	"sync/atomic"
)

// ProgressFunc receives the bytes sent so far and the expected total
type ProgressFunc func(sent, total int64)

// ProgressHook is passed as PutObjectOptions.Progress. minio-go reports each
// chunk it sends by calling Read with a buffer of that chunk's length.
// Multipart uploads send parts concurrently, so the counter is atomic.
type ProgressHook struct {
	total int64
	sent  atomic.Int64
	fn    ProgressFunc
}

// NewProgressHook returns a hook reporting to fn
func NewProgressHook(total int64, fn ProgressFunc) *ProgressHook {
	return &ProgressHook{total: total, fn: fn}
}

func (h *ProgressHook) Read(p []byte) (int, error) {
	n := len(p)
	sent := h.sent.Add(int64(n))
	if h.fn != nil {
		h.fn(sent, h.total)
	}
	return n, nil
}

// Sent returns the bytes reported so far
func (h *ProgressHook) Sent() int64 {
	return h.sent.Load()
}
