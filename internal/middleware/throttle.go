package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/onnwee/channel-insights/backend/internal/apierr"
	"github.com/onnwee/channel-insights/backend/internal/ratelimit"
)

// Throttle rejects requests with 429 once l has no tokens left. A nil
// limiter disables throttling.
func Throttle(l *ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if l == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Acquire(1) {
				w.Header().Set("Retry-After", retryAfter(l.WaitTime(1)))
				apierr.WriteErrorWithContext(w, r, apierr.RateLimitExceeded(l.Name()))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// retryAfter renders d as whole seconds, rounded up and at least 1.
func retryAfter(d time.Duration) string {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
