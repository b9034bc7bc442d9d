package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/onnwee/channel-insights/backend/internal/logger"
	"github.com/onnwee/channel-insights/backend/internal/metrics"
)

// ErrRateLimited is returned when tokens are unavailable and the caller chose
// not to wait.
var ErrRateLimited = errors.New("rate limit exceeded")

// ExceededError names the limiter that refused the request.
type ExceededError struct {
	Limiter string
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s", e.Limiter)
}

// Unwrap lets errors.Is(err, ErrRateLimited) match.
func (e *ExceededError) Unwrap() error {
	return ErrRateLimited
}

// Limiter is a token bucket holding up to capacity tokens that refill
// continuously at capacity per window. Refill happens lazily on each call.
type Limiter struct {
	mu       sync.Mutex
	name     string
	capacity int
	window   time.Duration
	bucket   *rate.Limiter
	now      func() time.Time
}

// New creates a full bucket for the named API.
func New(name string, capacity int, window time.Duration) *Limiter {
	if capacity <= 0 {
		capacity = 1
	}
	if window <= 0 {
		window = time.Second
	}
	l := &Limiter{
		name:     name,
		capacity: capacity,
		window:   window,
		now:      time.Now,
	}
	l.bucket = l.newBucket()
	return l
}

func (l *Limiter) newBucket() *rate.Limiter {
	perSecond := float64(l.capacity) / l.window.Seconds()
	return rate.NewLimiter(rate.Limit(perSecond), l.capacity)
}

// Name returns the API name the limiter guards.
func (l *Limiter) Name() string { return l.name }

// Capacity returns the bucket size.
func (l *Limiter) Capacity() int { return l.capacity }

// Window returns the period over which Capacity tokens refill.
func (l *Limiter) Window() time.Duration { return l.window }

// Acquire takes n tokens if they are available and reports whether it did.
// A failed Acquire deducts nothing.
func (l *Limiter) Acquire(n int) bool {
	l.mu.Lock()
	ok := l.bucket.AllowN(l.now(), n)
	l.mu.Unlock()

	result := "allowed"
	if !ok {
		result = "denied"
	}
	metrics.RateLimitDecisions.WithLabelValues(l.name, result).Inc()
	return ok
}

// Tokens returns the current balance after refill.
func (l *Limiter) Tokens() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.bucket.TokensAt(l.now())
}

// WaitTime returns how long until n tokens will be available, or 0 if they
// are available now.
func (l *Limiter) WaitTime(n int) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	held := l.bucket.TokensAt(l.now())
	if held >= float64(n) {
		return 0
	}
	secondsPerToken := l.window.Seconds() / float64(l.capacity)
	return time.Duration((float64(n) - held) * secondsPerToken * float64(time.Second))
}

// Reset refills the bucket to capacity.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.bucket = l.newBucket()
}

// Take acquires n tokens. When tokens are short and wait is false it returns
// an *ExceededError. When wait is true it sleeps for WaitTime and retries
// once; ctx cancellation aborts the sleep.
func (l *Limiter) Take(ctx context.Context, n int, wait bool) error {
	if l.Acquire(n) {
		return nil
	}
	if !wait {
		return &ExceededError{Limiter: l.name}
	}

	d := l.WaitTime(n)
	logger.WithComponent("ratelimit").Info("Rate limit reached, waiting",
		"limiter", l.name, "wait", d.Round(time.Millisecond).String())

	start := time.Now()
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		metrics.RateLimitWaits.WithLabelValues(l.name).Observe(time.Since(start).Seconds())
		return ctx.Err()
	case <-timer.C:
	}
	metrics.RateLimitWaits.WithLabelValues(l.name).Observe(time.Since(start).Seconds())

	if !l.Acquire(n) {
		// Another caller got the refilled tokens first; proceed anyway.
		logger.WithComponent("ratelimit").Warn("Tokens still unavailable after waiting",
			"limiter", l.name, "tokens", n)
	}
	return nil
}
