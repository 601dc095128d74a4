package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/dealscout/dealscout/config"
	"github.com/dealscout/dealscout/models"
)

// clientBucket pairs a token bucket with its last use, so idle clients can
// be evicted.
type clientBucket struct {
	bucket   *rate.Limiter
	lastSeen time.Time
}

// clientRegistry hands out one token bucket per caller identity.
type clientRegistry struct {
	mu      sync.Mutex
	buckets map[string]*clientBucket
	rps     float64
	burst   int
}

func (r *clientRegistry) get(identity string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	cb, ok := r.buckets[identity]
	if !ok {
		cb = &clientBucket{bucket: rate.NewLimiter(rate.Limit(r.rps), r.burst)}
		r.buckets[identity] = cb
	}
	cb.lastSeen = time.Now()
	return cb.bucket
}

// evictIdle drops buckets untouched for longer than maxIdle.
func (r *clientRegistry) evictIdle(maxIdle time.Duration) {
	cutoff := time.Now().Add(-maxIdle)
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, cb := range r.buckets {
		if cb.lastSeen.Before(cutoff) {
			delete(r.buckets, id)
		}
	}
}

// RateLimit throttles requests per caller identity with a token bucket.
// The identity is the authenticated API key when present, otherwise the
// client IP. Rejected requests get 429 with the RATE_LIMITED error code.
func RateLimit(cfg config.RateLimitConfig) gin.HandlerFunc {
	reg := &clientRegistry{
		buckets: make(map[string]*clientBucket),
		rps:     cfg.RequestsPerSecond,
		burst:   cfg.Burst,
	}

	go func() {
		for range time.Tick(5 * time.Minute) {
			reg.evictIdle(time.Hour)
		}
	}()

	return func(c *gin.Context) {
		identity := c.ClientIP()
		if key, ok := c.Get("api_key"); ok {
			identity = key.(string)
		}

		if !reg.get(identity).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": models.ErrorDetail{
					Code:    models.ErrCodeRateLimited,
					Message: "rate limit exceeded, please slow down",
				},
			})
			return
		}

		c.Next()
	}
}
