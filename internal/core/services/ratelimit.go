package services

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig holds rate limiting configuration for one vendor API.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate limit.
	RequestsPerSecond float64
	// BurstSize is the maximum burst size.
	BurstSize int
}

// Conservative defaults, well below the vendors' published limits.
var (
	DriveRateLimit  = RateLimitConfig{RequestsPerSecond: 8.0, BurstSize: 10}
	GraphRateLimit  = RateLimitConfig{RequestsPerSecond: 5.0, BurstSize: 10}
	ZoomRateLimit   = RateLimitConfig{RequestsPerSecond: 2.0, BurstSize: 5}
	NotionRateLimit = RateLimitConfig{RequestsPerSecond: 3.0, BurstSize: 3}
)

// RateLimiter paces requests to one vendor API. Token bucket with an
// additional backoff window honoured after a 429 response.
type RateLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	retryAt time.Time
}

// NewRateLimiter creates a rate limiter with the given configuration.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.RequestsPerSecond <= 0 {
		cfg = RateLimitConfig{RequestsPerSecond: 5.0, BurstSize: 10}
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.BurstSize),
	}
}

// Wait blocks until a request may proceed. It honours any backoff period
// recorded by RecordRateLimitError before waiting on the token bucket.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	retryAt := r.retryAt
	r.mu.Unlock()

	if time.Now().Before(retryAt) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Until(retryAt)):
		}
	}
	return r.limiter.Wait(ctx)
}

// RecordRateLimitError sets a backoff window after a 429 response.
// retryAfterSeconds comes from the vendor's Retry-After header; zero or
// negative falls back to 60 seconds.
func (r *RateLimiter) RecordRateLimitError(retryAfterSeconds int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if retryAfterSeconds <= 0 {
		retryAfterSeconds = 60
	}
	r.retryAt = time.Now().Add(time.Duration(retryAfterSeconds) * time.Second)
}

// Allow reports whether a request may proceed immediately.
func (r *RateLimiter) Allow() bool {
	r.mu.Lock()
	retryAt := r.retryAt
	r.mu.Unlock()

	if time.Now().Before(retryAt) {
		return false
	}
	return r.limiter.Allow()
}
