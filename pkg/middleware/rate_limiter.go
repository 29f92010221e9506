package middleware

import (
	"sync"
	"time"
)

// RateLimiter implements a sliding-window rate limit per key
type RateLimiter struct {
	attempts     map[string][]time.Time
	maxAttempts  int
	windowPeriod time.Duration
	now          func() time.Time
	mu           sync.Mutex
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(maxAttempts int, windowPeriod time.Duration) *RateLimiter {
	return &RateLimiter{
		attempts:     make(map[string][]time.Time),
		maxAttempts:  maxAttempts,
		windowPeriod: windowPeriod,
		now:          time.Now,
	}
}

// Allow records an attempt for key and reports whether it is within the limit
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.cleanupOldAttempts(key, now)

	if len(rl.attempts[key]) >= rl.maxAttempts {
		return false
	}
	rl.attempts[key] = append(rl.attempts[key], now)
	return true
}

// IsLimited checks if a key is rate limited without recording an attempt
func (rl *RateLimiter) IsLimited(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.cleanupOldAttempts(key, rl.now())
	return len(rl.attempts[key]) >= rl.maxAttempts
}

// cleanupOldAttempts removes attempts outside the window period
func (rl *RateLimiter) cleanupOldAttempts(key string, now time.Time) {
	cutoff := now.Add(-rl.windowPeriod)
	attempts := rl.attempts[key]

	// Find the index of the first attempt within the window
	i := 0
	for ; i < len(attempts); i++ {
		if attempts[i].After(cutoff) {
			break
		}
	}

	// Remove attempts outside the window
	if i > 0 {
		if i < len(attempts) {
			rl.attempts[key] = attempts[i:]
		} else {
			delete(rl.attempts, key)
		}
	}
}
