package server

import (
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/time/rate"

	apperrors "github.com/lk2023060901/video-share-backend/internal/pkg/errors"
	"github.com/lk2023060901/video-share-backend/internal/pkg/metrics"
	"github.com/lk2023060901/video-share-backend/internal/pkg/response"
	"github.com/lk2023060901/video-share-backend/internal/pkg/validator"
)

// MetricsMiddleware records count and latency per route template
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		metrics.RecordRequest(c.Request.Method, endpoint, strconv.Itoa(c.Writer.Status()), time.Since(start).Seconds())
	}
}

// IPRateLimiter keeps one token bucket per client IP. Buckets of clients
// that stay quiet for the idle TTL are dropped.
type IPRateLimiter struct {
	limit   rate.Limit
	burst   int
	buckets *ttlcache.Cache[string, *rate.Limiter]
	running atomic.Bool
}

func NewIPRateLimiter(perSecond float64, burst int, idleTTL time.Duration) *IPRateLimiter {
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}
	return &IPRateLimiter{
		limit: rate.Limit(perSecond),
		burst: burst,
		buckets: ttlcache.New[string, *rate.Limiter](
			ttlcache.WithTTL[string, *rate.Limiter](idleTTL),
		),
	}
}

// Allow reports whether ip may make another request now
func (l *IPRateLimiter) Allow(ip string) bool {
	item, _ := l.buckets.GetOrSet(ip, rate.NewLimiter(l.limit, l.burst))
	return item.Value().Allow()
}

func (l *IPRateLimiter) Start() {
	if l.running.CompareAndSwap(false, true) {
		go l.buckets.Start()
	}
}

func (l *IPRateLimiter) Stop() {
	if l.running.CompareAndSwap(true, false) {
		l.buckets.Stop()
	}
}

// Middleware rejects requests over the limit with 429
func (l *IPRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-RateLimit-Limit", strconv.Itoa(l.burst))
		if !l.Allow(validator.IPOrDefault(c.ClientIP(), "unknown")) {
			c.Header("Retry-After", "1")
			response.ErrorWithCode(c, apperrors.ErrTooManyRequests, "upload rate limit exceeded")
			c.Abort()
			return
		}
		c.Next()
	}
}
