package biz

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"
	"time"
)

// RetryPolicy decides whether a failed blob write is tried again. It keeps
// no state; each publish walks it with its own attempt counter.
type RetryPolicy struct {
	MaxAttempts    int           `mapstructure:"max_attempts"` // retries after the first try
	BaseDelay      time.Duration `mapstructure:"base_delay"`
	MaxDelay       time.Duration `mapstructure:"max_delay"`
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout"`
}

// Decision is the outcome of RetryPolicy.Decide
type Decision struct {
	Retry bool
	Delay time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		BaseDelay:      2 * time.Second,
		MaxDelay:       10 * time.Second,
		AttemptTimeout: 10 * time.Minute,
	}
}

// Decide is called after a failure. attempt is the number of retries
// already performed, so it is 0 after the first failure.
func (p RetryPolicy) Decide(err error, attempt int) Decision {
	if attempt < 0 {
		attempt = 0
	}
	if !IsTransient(err) || attempt >= p.MaxAttempts {
		return Decision{}
	}
	return Decision{Retry: true, Delay: p.delay(attempt)}
}

// delay grows linearly and is capped at MaxDelay
func (p RetryPolicy) delay(attempt int) time.Duration {
	d := p.BaseDelay * time.Duration(attempt+1)
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

var transientMessages = []string{
	"network",
	"timeout",
	"connection reset",
	"connection refused",
	"fetch",
	"broken pipe",
}

// IsTransient reports whether err is worth another attempt
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	switch {
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrAccessDenied),
		errors.Is(err, ErrConflict),
		errors.Is(err, context.Canceled):
		return false
	case errors.Is(err, ErrTransientTransport),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNABORTED),
		errors.Is(err, syscall.EPIPE):
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, m := range transientMessages {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// sleepCtx waits for d or until ctx ends
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
