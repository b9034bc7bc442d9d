package apierr

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/onnwee/channel-insights/backend/internal/logger"
)

// ErrorCode represents a structured error code
type ErrorCode string

// Codes are prefixed by the area they belong to.
const (
	ErrCacheUnknownStore ErrorCode = "CACHE_UNKNOWN_STORE"
	ErrCacheKeyNotFound  ErrorCode = "CACHE_KEY_NOT_FOUND"

	ErrRateLimitNotFound ErrorCode = "RATELIMIT_NOT_FOUND"
	ErrRateLimitExceeded ErrorCode = "RATELIMIT_EXCEEDED"

	ErrSystemInternal ErrorCode = "SYSTEM_INTERNAL"
)

// Error represents a structured API error
type Error struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
	status    int                    // HTTP status code (not serialized)
}

// ErrorResponse is the top-level error response wrapper
type ErrorResponse struct {
	Error *Error `json:"error"`
}

// New creates a new API error
func New(code ErrorCode, message string, status int) *Error {
	return &Error{
		Code:    code,
		Message: message,
		status:  status,
	}
}

// WithDetails adds details to the error
func (e *Error) WithDetails(details map[string]interface{}) *Error {
	e.Details = details
	return e
}

// WithRequestID adds a request ID to the error
func (e *Error) WithRequestID(requestID string) *Error {
	e.RequestID = requestID
	return e
}

// Error implements the error interface
func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

// Status returns the HTTP status code
func (e *Error) Status() int {
	return e.status
}

// WriteError writes a structured error response to the HTTP response writer
func WriteError(w http.ResponseWriter, err *Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Status())
	json.NewEncoder(w).Encode(ErrorResponse{Error: err})
}

// CacheUnknownStore creates an unknown cache store error
func CacheUnknownStore(store string) *Error {
	return New(ErrCacheUnknownStore, "Unknown cache store: "+store, http.StatusBadRequest).
		WithDetails(map[string]interface{}{"store": store, "allowed": []string{"memory", "file", "shared", "bolt", "all"}})
}

// CacheKeyNotFound creates a missing cache key error
func CacheKeyNotFound(store, key string) *Error {
	return New(ErrCacheKeyNotFound, "Cache key not found", http.StatusNotFound).
		WithDetails(map[string]interface{}{"store": store, "key": key})
}

// RateLimitNotFound creates an unknown limiter error
func RateLimitNotFound(name string) *Error {
	return New(ErrRateLimitNotFound, "Rate limiter not found: "+name, http.StatusNotFound).
		WithDetails(map[string]interface{}{"limiter": name})
}

// RateLimitExceeded creates a rate limit exceeded error
func RateLimitExceeded(name string) *Error {
	return New(ErrRateLimitExceeded, "Rate limit exceeded", http.StatusTooManyRequests).
		WithDetails(map[string]interface{}{"limiter": name})
}

// SystemInternal creates an internal server error
func SystemInternal(message string) *Error {
	if message == "" {
		message = "Internal server error"
	}
	return New(ErrSystemInternal, message, http.StatusInternalServerError)
}

// GetRequestID extracts the request ID from the context
func GetRequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(logger.RequestIDKey).(string); ok {
		return reqID
	}
	return ""
}

// WriteErrorWithContext writes a structured error response with request ID from context
func WriteErrorWithContext(w http.ResponseWriter, r *http.Request, err *Error) {
	if reqID := GetRequestID(r.Context()); reqID != "" {
		err = err.WithRequestID(reqID)
	}
	WriteError(w, err)
}
