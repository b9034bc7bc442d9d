package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/getsentry/sentry-go"

	"github.com/onnwee/channel-insights/backend/internal/apierr"
	"github.com/onnwee/channel-insights/backend/internal/errorreporting"
	"github.com/onnwee/channel-insights/backend/internal/logger"
)

// RecoverWithSentry turns a handler panic into a SYSTEM_INTERNAL response.
// The panic is logged with its stack and, when error reporting is enabled,
// sent to Sentry tagged with the request ID.
func RecoverWithSentry(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				stack := debug.Stack()

				logger.ErrorContext(r.Context(), "Panic recovered in admin handler",
					"error", err,
					"stack", string(stack),
					"method", r.Method,
					"path", r.URL.Path,
				)

				if errorreporting.IsEnabled() {
					hub := sentry.CurrentHub().Clone()
					hub.Scope().SetRequest(r)
					hub.Scope().SetLevel(sentry.LevelError)
					hub.Scope().SetTag("method", r.Method)
					hub.Scope().SetTag("path", r.URL.Path)
					if reqID := apierr.GetRequestID(r.Context()); reqID != "" {
						hub.Scope().SetTag("request_id", reqID)
					}

					if e, ok := err.(error); ok {
						hub.CaptureException(e)
					} else {
						hub.CaptureMessage(errorreporting.ScrubPII(fmt.Sprintf("panic: %v", err)))
					}
				}

				apierr.WriteErrorWithContext(w, r, apierr.SystemInternal(""))
			}
		}()

		next.ServeHTTP(w, r)
	})
}
