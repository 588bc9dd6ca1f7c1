package llmclient

import (
	"context"
	"math"
	"sync"
	"time"
)

// rpsLimiter is a token bucket that refills lazily on Acquire, so it needs
// no background goroutine. A nil limiter admits everything.
type rpsLimiter struct {
	mu     sync.Mutex
	rate   float64
	max    float64
	tokens float64
	last   time.Time
}

func newRPSLimiter(rps float64, burst int) *rpsLimiter {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &rpsLimiter{
		rate:   rps,
		max:    float64(burst),
		tokens: float64(burst),
		last:   time.Now(),
	}
}

// Acquire takes one token, sleeping until one accrues or ctx ends.
func (l *rpsLimiter) Acquire(ctx context.Context) error {
	if l == nil {
		return nil
	}
	for {
		l.mu.Lock()
		now := time.Now()
		l.tokens = math.Min(l.max, l.tokens+now.Sub(l.last).Seconds()*l.rate)
		l.last = now
		if l.tokens >= 1 {
			l.tokens--
			l.mu.Unlock()
			return nil
		}
		wait := time.Duration((1 - l.tokens) / l.rate * float64(time.Second))
		l.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
