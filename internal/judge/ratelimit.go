package judge

import (
	"sync"
	"time"
)

// rateLimiter is a token bucket refilled lazily from elapsed time.
type rateLimiter struct {
	lastRefill time.Time
	now        func() time.Time
	interval   time.Duration // time to earn one token
	tokens     int
	capacity   int
	mu         sync.Mutex
}

// newRateLimiter allows requestsPerMinute calls per minute with bursts up to
// the same amount. Non-positive values disable limiting.
func newRateLimiter(requestsPerMinute int, now func() time.Time) *rateLimiter {
	if requestsPerMinute <= 0 {
		return nil
	}
	if now == nil {
		now = time.Now
	}
	return &rateLimiter{
		tokens:     requestsPerMinute,
		capacity:   requestsPerMinute,
		interval:   time.Minute / time.Duration(requestsPerMinute),
		lastRefill: now(),
		now:        now,
	}
}

// tryAcquire takes a token if one is available. A nil limiter always allows.
func (rl *rateLimiter) tryAcquire() bool {
	if rl == nil {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if earned := int(now.Sub(rl.lastRefill) / rl.interval); earned > 0 {
		rl.tokens = min(rl.capacity, rl.tokens+earned)
		rl.lastRefill = rl.lastRefill.Add(time.Duration(earned) * rl.interval)
	}

	if rl.tokens > 0 {
		rl.tokens--
		return true
	}
	return false
}
