package toolkit

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/onnwee/channel-insights/backend/internal/cache"
	"github.com/onnwee/channel-insights/backend/internal/circuitbreaker"
	"github.com/onnwee/channel-insights/backend/internal/logger"
	"github.com/onnwee/channel-insights/backend/internal/ratelimit"
	"github.com/onnwee/channel-insights/backend/internal/tracing"
)

// Func is the shape of every wrappable call: one argument, a result and an error.
type Func[A, R any] func(ctx context.Context, arg A) (R, error)

// Key builds a deterministic, filesystem-safe cache key from parts.
func Key(parts ...string) string {
	sum := md5.Sum([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(sum[:])
}

// Cached memoizes fn in store under keyFn(arg) for ttl (0 uses the store
// default). Errors from fn are returned and never cached. Concurrent misses
// on one key may both call fn; the last write wins.
func Cached[A, R any](store cache.Store, ttl time.Duration, keyFn func(A) string, fn Func[A, R]) Func[A, R] {
	return func(ctx context.Context, arg A) (R, error) {
		key := keyFn(arg)
		ctx, span := tracing.StartSpan(ctx, "toolkit.cached",
			trace.WithAttributes(attribute.String("cache.key", key)))
		defer span.End()

		if v, ok := lookup[R](store, key); ok {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return v, nil
		}
		span.SetAttributes(attribute.Bool("cache.hit", false))

		v, err := fn(ctx, arg)
		if err != nil {
			tracing.Fail(span, err)
			return v, err
		}
		store.Set(key, v, ttl)
		return v, nil
	}
}

// lookup reads key as an R. Serializing stores decode into R directly; a
// value of the wrong type is a miss.
func lookup[R any](store cache.Store, key string) (R, bool) {
	var out R
	if d, ok := store.(cache.Decoder); ok {
		if d.GetInto(key, &out) {
			return out, true
		}
		return out, false
	}
	raw, ok := store.Get(key)
	if !ok {
		return out, false
	}
	v, ok := raw.(R)
	return v, ok
}

// RateLimited spends tokens from the named limiter before each call to fn.
// With wait set a short bucket blocks until refilled; otherwise the call
// fails with a *ratelimit.ExceededError and fn is not invoked. An unknown
// limiter name is logged and fn runs unthrottled.
func RateLimited[A, R any](limiters *ratelimit.Registry, name string, tokens int, wait bool, fn Func[A, R]) Func[A, R] {
	return func(ctx context.Context, arg A) (R, error) {
		l, ok := limiters.Get(name)
		if !ok {
			logger.WithComponent("ratelimit").Warn("Unknown rate limiter, calling through", "limiter", name)
			return fn(ctx, arg)
		}

		ctx, span := tracing.StartSpan(ctx, "toolkit.rate_limited",
			trace.WithAttributes(attribute.String("ratelimit.limiter", name), attribute.Int("ratelimit.tokens", tokens)))
		err := l.Take(ctx, tokens, wait)
		if err != nil {
			tracing.Fail(span, err)
			span.End()
			var zero R
			return zero, err
		}
		span.End()
		return fn(ctx, arg)
	}
}

// Protected runs fn through breaker; an open breaker fails fast with
// circuitbreaker.ErrCircuitOpen.
func Protected[A, R any](breaker *circuitbreaker.CircuitBreaker, fn Func[A, R]) Func[A, R] {
	return func(ctx context.Context, arg A) (R, error) {
		var out R
		err := breaker.Call(func() error {
			var err error
			out, err = fn(ctx, arg)
			return err
		})
		return out, err
	}
}

// Guarded wraps a call to the named external API with its rate limiter
// (one token, waiting) and then its circuit breaker.
func Guarded[A, R any](t *Toolkit, name string, fn Func[A, R]) Func[A, R] {
	return RateLimited(t.Limiters, name, 1, true, Protected(t.Breakers.Get(name), fn))
}
