package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"findoc-gateway/internal/shared/server/respond"
)

const (
	defaultRateLimitGroup = "DEFAULT"

	// buckets beyond this count trigger a sweep of refilled ones
	sweepThreshold = 4096
)

// RateLimitRule is a token bucket: Rate tokens per second up to Burst.
// PerClient buckets by client IP even when the request names a session.
type RateLimitRule struct {
	Rate      float64
	Burst     int
	PerClient bool
}

// RateLimitConfig maps request groups to rules. Buckets are kept per
// session and group.
type RateLimitConfig struct {
	Rules        map[string]RateLimitRule
	DefaultGroup string
	GroupFor     func(*gin.Context) string
	Limiter      *RateLimiter
}

// RateLimiter keeps one rate.Limiter per bucket key.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	now      func() time.Time
}

// NewRateLimiter creates a limiter; now defaults to time.Now.
func NewRateLimiter(now func() time.Time) *RateLimiter {
	if now == nil {
		now = time.Now
	}
	return &RateLimiter{limiters: make(map[string]*rate.Limiter), now: now}
}

// RateLimit rejects requests whose bucket is empty with 429 and Retry-After.
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.Limiter == nil {
		cfg.Limiter = NewRateLimiter(nil)
	}
	if cfg.DefaultGroup == "" {
		cfg.DefaultGroup = defaultRateLimitGroup
	}
	return func(c *gin.Context) {
		group := cfg.DefaultGroup
		if cfg.GroupFor != nil {
			if g := strings.TrimSpace(cfg.GroupFor(c)); g != "" {
				group = g
			}
		}
		rule, ok := cfg.Rules[group]
		if !ok {
			c.Next()
			return
		}

		allowed, wait := cfg.Limiter.Allow(bucketOwner(c, rule)+"|"+group, rule)
		if allowed {
			c.Next()
			return
		}

		if wait <= 0 {
			wait = time.Second
		}
		seconds := int((wait + time.Second - 1) / time.Second)
		c.Header("Retry-After", strconv.Itoa(seconds))
		respond.Error(c, http.StatusTooManyRequests, "rate_limited", "too many requests", gin.H{
			"group":        group,
			"retryAfterMs": wait.Milliseconds(),
		})
	}
}

// bucketOwner is the client IP unless the rule allows per-session buckets
// and the client sent its own session id. Minted ids never own a bucket.
func bucketOwner(c *gin.Context, rule RateLimitRule) string {
	if !rule.PerClient && SessionSupplied(c) {
		if id := SessionIDFromContext(c); id != "" {
			return "session:" + id
		}
	}
	return "ip:" + c.ClientIP()
}

// Allow takes a token from key's bucket, or reports how long until one is available.
func (l *RateLimiter) Allow(key string, rule RateLimitRule) (bool, time.Duration) {
	if l == nil || rule.Rate <= 0 || rule.Burst <= 0 {
		return true, 0
	}
	now := l.now()

	l.mu.Lock()
	lim, ok := l.limiters[key]
	if !ok {
		if len(l.limiters) >= sweepThreshold {
			l.sweepLocked(now)
		}
		lim = rate.NewLimiter(rate.Limit(rule.Rate), rule.Burst)
		l.limiters[key] = lim
	}
	l.mu.Unlock()

	res := lim.ReserveN(now, 1)
	if !res.OK() {
		return false, time.Second
	}
	delay := res.DelayFrom(now)
	if delay == 0 {
		return true, 0
	}
	res.CancelAt(now)
	return false, delay
}

// sweepLocked drops buckets that have refilled; a new bucket starts full, so
// forgetting them changes nothing for their owners.
func (l *RateLimiter) sweepLocked(now time.Time) {
	for key, lim := range l.limiters {
		if lim.TokensAt(now) >= float64(lim.Burst()) {
			delete(l.limiters, key)
		}
	}
}

// Len reports the number of live buckets.
func (l *RateLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}
