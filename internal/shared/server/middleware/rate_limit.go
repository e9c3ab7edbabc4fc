package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"skincare-backend/internal/shared/metrics"
	"skincare-backend/internal/shared/server/respond"
)

const (
	defaultRateLimitGroup = "DEFAULT"
	bucketSweepInterval   = time.Minute
)

// RateLimitRule is a token bucket refilled at Rate tokens per second.
type RateLimitRule struct {
	Rate  float64
	Burst int
}

// RateLimitConfig assigns routes to bucket groups. Routes are keyed by
// method and gin route pattern, e.g. "GET /api/v1/consultations/:id".
// Unlisted routes use DefaultGroup; a group without a rule is not limited.
type RateLimitConfig struct {
	Rules        map[string]RateLimitRule
	Routes       map[string]string
	DefaultGroup string
	Limiter      *RateLimiter
}

func (cfg RateLimitConfig) groupFor(c *gin.Context) string {
	if group, ok := cfg.Routes[RouteKey(c.Request.Method, c.FullPath())]; ok {
		return group
	}
	return cfg.DefaultGroup
}

// RouteKey builds the Routes key for a method and route pattern.
func RouteKey(method, path string) string {
	return method + " " + path
}

// RateLimiter holds one token bucket per client and group.
type RateLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*rateBucket
	now       func() time.Time
	lastSweep time.Time
}

type rateBucket struct {
	rule   RateLimitRule
	tokens float64
	last   time.Time
}

func NewRateLimiter(now func() time.Time) *RateLimiter {
	if now == nil {
		now = time.Now
	}
	return &RateLimiter{
		buckets: make(map[string]*rateBucket),
		now:     now,
	}
}

// RateLimit throttles requests per client IP and route group.
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.Limiter == nil {
		cfg.Limiter = NewRateLimiter(nil)
	}
	if cfg.DefaultGroup == "" {
		cfg.DefaultGroup = defaultRateLimitGroup
	}
	return func(c *gin.Context) {
		group := cfg.groupFor(c)
		rule, ok := cfg.Rules[group]
		if !ok {
			c.Next()
			return
		}
		allowed, retryAfter := cfg.Limiter.Allow(c.ClientIP()+"|"+group, rule)
		if allowed {
			c.Next()
			return
		}
		metrics.IncRateLimited(group)
		tooManyRequests(c, group, retryAfter)
	}
}

func tooManyRequests(c *gin.Context, group string, retryAfter time.Duration) {
	retryAfterMs := retryAfter.Milliseconds()
	if retryAfterMs <= 0 {
		retryAfterMs = 1000
	}
	c.Header("Retry-After", strconv.FormatInt((retryAfterMs+999)/1000, 10))
	respond.Error(c, http.StatusTooManyRequests, "rate_limited", "too many requests", gin.H{
		"retryAfterMs": retryAfterMs,
		"group":        group,
	})
}

// Allow takes a token from the bucket for key, creating it full on first use.
// When empty it reports how long until the next token.
func (l *RateLimiter) Allow(key string, rule RateLimitRule) (bool, time.Duration) {
	if l == nil || rule.Rate <= 0 || rule.Burst <= 0 {
		return true, 0
	}
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sweep(now)

	bucket, ok := l.buckets[key]
	if !ok {
		bucket = &rateBucket{rule: rule, tokens: float64(rule.Burst), last: now}
		l.buckets[key] = bucket
	}
	return bucket.take(now)
}

// Len reports how many buckets are tracked.
func (l *RateLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// sweep drops buckets that have refilled to their burst, which behave the
// same as a fresh bucket.
func (l *RateLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < bucketSweepInterval {
		return
	}
	l.lastSweep = now
	for key, bucket := range l.buckets {
		bucket.refill(now)
		if bucket.tokens >= float64(bucket.rule.Burst) {
			delete(l.buckets, key)
		}
	}
}

func (b *rateBucket) refill(now time.Time) {
	elapsed := now.Sub(b.last).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens = math.Min(float64(b.rule.Burst), b.tokens+elapsed*b.rule.Rate)
	b.last = now
}

func (b *rateBucket) take(now time.Time) (bool, time.Duration) {
	b.refill(now)
	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	waitSec := (1 - b.tokens) / b.rule.Rate
	return false, time.Duration(math.Ceil(waitSec*1000)) * time.Millisecond
}
