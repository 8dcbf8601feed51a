package keystore

import (
	"sync"
	"time"

	"github.com/decorcrm/approval-engine/internal/application/port"
)

// bucket tracks remaining tokens for one key.
type bucket struct {
	tokens   float64
	lastSeen time.Time
}

// RateLimiter is an in-process token bucket limiter keyed by string. Each
// key gets capacity tokens per window; tokens refill proportionally to
// elapsed time and never accumulate above capacity.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

var _ port.RateLimiter = (*RateLimiter)(nil)

// NewRateLimiter creates an empty limiter.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// Allow consumes one token for key, reporting whether the call is within
// the budget of capacity calls per window.
func (l *RateLimiter) Allow(key string, capacity int, window time.Duration) bool {
	if capacity <= 0 || window <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(capacity), lastSeen: now}
		l.buckets[key] = b
	} else {
		elapsed := now.Sub(b.lastSeen)
		refill := float64(capacity) * (float64(elapsed) / float64(window))
		b.tokens += refill
		if b.tokens > float64(capacity) {
			b.tokens = float64(capacity)
		}
		b.lastSeen = now
	}

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Prune drops buckets idle longer than maxIdle. Callers run it periodically
// to bound memory on high-cardinality keys.
func (l *RateLimiter) Prune(maxIdle time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-maxIdle)
	for key, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, key)
		}
	}
}
