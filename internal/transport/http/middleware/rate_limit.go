package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RateLimitStore decides whether one more attempt fits inside a sliding window.
type RateLimitStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration, at time.Time) (allowed bool, retryAfter time.Duration, err error)
}

// RateLimiter throttles requests per caller using a shared store.
type RateLimiter struct {
	store  RateLimitStore
	logger *zap.Logger
	now    func() time.Time
}

// NewRateLimiter builds a reusable rate limiter middleware helper.
func NewRateLimiter(store RateLimitStore, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the limiter clock for deterministic tests.
func (rl *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	if now != nil {
		rl.now = now
	}
	return rl
}

// Limit enforces at most limit requests per window, keyed by the authenticated
// user when present and the client IP otherwise. A store failure lets the
// request through so the authorization API stays available.
func (rl *RateLimiter) Limit(name string, limit int, window time.Duration) gin.HandlerFunc {
	if rl == nil || rl.store == nil || limit <= 0 || window <= 0 {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		identifier, ok := GetAuthenticatedUserID(c)
		if !ok {
			identifier = c.ClientIP()
		}
		if identifier == "" {
			c.Next()
			return
		}

		key := name + ":" + identifier
		allowed, retryAfter, err := rl.store.Allow(c.Request.Context(), key, limit, window, rl.now())
		if err != nil {
			rl.logger.Warn("rate limit store unavailable, allowing request",
				zap.String("rule", name),
				zap.Error(err),
			)
			c.Next()
			return
		}

		if allowed {
			c.Next()
			return
		}

		seconds := int(math.Ceil(retryAfter.Seconds()))
		if seconds < 1 {
			seconds = 1
		}

		c.Header("Retry-After", strconv.Itoa(seconds))
		c.AbortWithStatusJSON(http.StatusTooManyRequests,
			newErrorResponse(c, "rate limit exceeded"))
	}
}
