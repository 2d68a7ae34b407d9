package biz

import (
	"context"
	"sync"
)

// ProgressFunc receives publish progress in percent
type ProgressFunc func(percent float64)

const (
	progressStarted  = 1
	progressUploaded = 90
	progressSaved    = 95
	progressDone     = 100
)

// progressTracker serializes reports for one publish. Values never go
// backwards and nothing is reported once the call has returned or its
// context has ended.
type progressTracker struct {
	mu      sync.Mutex
	ctx     context.Context
	fn      ProgressFunc
	last    float64
	emitted bool
	sealed  bool
}

func newProgressTracker(ctx context.Context, fn ProgressFunc) *progressTracker {
	return &progressTracker{ctx: ctx, fn: fn}
}

func (t *progressTracker) report(percent float64) {
	if t.fn == nil {
		return
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	// 调用方放弃后不再上报
	if t.sealed || t.ctx.Err() != nil {
		return
	}
	if t.emitted && percent <= t.last {
		return
	}
	t.last = percent
	t.emitted = true
	t.fn(percent)
}

// bytes maps transferred bytes onto the upload band of the bar
func (t *progressTracker) bytes(sent, total int64) {
	if total <= 0 {
		return
	}
	ratio := float64(sent) / float64(total)
	if ratio > 1 {
		ratio = 1
	}
	t.report(progressStarted + ratio*(progressUploaded-progressStarted))
}

func (t *progressTracker) seal() {
	t.mu.Lock()
	t.sealed = true
	t.mu.Unlock()
}
