package apierr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/onnwee/channel-insights/backend/internal/logger"
)

func TestNew(t *testing.T) {
	err := New(ErrRateLimitExceeded, "slow down", http.StatusTooManyRequests)
	if err.Code != ErrRateLimitExceeded {
		t.Errorf("expected code %s, got %s", ErrRateLimitExceeded, err.Code)
	}
	if err.Message != "slow down" {
		t.Errorf("expected message 'slow down', got '%s'", err.Message)
	}
	if err.Status() != http.StatusTooManyRequests {
		t.Errorf("expected status %d, got %d", http.StatusTooManyRequests, err.Status())
	}
}

func TestWithDetails(t *testing.T) {
	err := New(ErrCacheUnknownStore, "bad store", http.StatusBadRequest).
		WithDetails(map[string]interface{}{"store": "redis"})

	if err.Details == nil {
		t.Fatal("expected details to be set")
	}
	if store, ok := err.Details["store"]; !ok || store != "redis" {
		t.Errorf("expected store 'redis', got %v", store)
	}
}

func TestErrorInterface(t *testing.T) {
	err := New(ErrCacheUnknownStore, "unknown store", http.StatusBadRequest)
	expected := "CACHE_UNKNOWN_STORE: unknown store"
	if err.Error() != expected {
		t.Errorf("expected error string %s, got %s", expected, err.Error())
	}
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	err := RateLimitNotFound("gemini").WithRequestID("req-123")

	WriteError(w, err)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", ct)
	}

	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Error == nil {
		t.Fatal("expected error in response")
	}
	if resp.Error.Code != ErrRateLimitNotFound {
		t.Errorf("expected code %s, got %s", ErrRateLimitNotFound, resp.Error.Code)
	}
	if resp.Error.RequestID != "req-123" {
		t.Errorf("expected request ID 'req-123', got '%s'", resp.Error.RequestID)
	}
	if resp.Error.Details["limiter"] != "gemini" {
		t.Errorf("expected limiter detail 'gemini', got %v", resp.Error.Details["limiter"])
	}
}

func TestWriteErrorWithContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/cache/stats", nil)
	req = req.WithContext(context.WithValue(req.Context(), logger.RequestIDKey, "ctx-42"))
	w := httptest.NewRecorder()

	WriteErrorWithContext(w, req, SystemInternal(""))

	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Error.RequestID != "ctx-42" {
		t.Errorf("expected request ID from context, got %q", resp.Error.RequestID)
	}
}

func TestHelperFunctions(t *testing.T) {
	tests := []struct {
		name       string
		createErr  func() *Error
		wantCode   ErrorCode
		wantStatus int
	}{
		{"CacheUnknownStore", func() *Error { return CacheUnknownStore("redis") }, ErrCacheUnknownStore, http.StatusBadRequest},
		{"CacheKeyNotFound", func() *Error { return CacheKeyNotFound("memory", "k") }, ErrCacheKeyNotFound, http.StatusNotFound},
		{"RateLimitNotFound", func() *Error { return RateLimitNotFound("x") }, ErrRateLimitNotFound, http.StatusNotFound},
		{"RateLimitExceeded", func() *Error { return RateLimitExceeded("x") }, ErrRateLimitExceeded, http.StatusTooManyRequests},
		{"SystemInternal", func() *Error { return SystemInternal("") }, ErrSystemInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.createErr()
			if err.Code != tt.wantCode {
				t.Errorf("expected code %s, got %s", tt.wantCode, err.Code)
			}
			if err.Status() != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, err.Status())
			}
			if err.Message == "" {
				t.Error("expected non-empty message")
			}
		})
	}
}

func TestCacheKeyNotFoundDetails(t *testing.T) {
	err := CacheKeyNotFound("file", "abc")
	if err.Details["store"] != "file" || err.Details["key"] != "abc" {
		t.Errorf("unexpected details: %v", err.Details)
	}
}

func TestCacheUnknownStoreListsAllowed(t *testing.T) {
	err := CacheUnknownStore("redis")
	allowed, ok := err.Details["allowed"].([]string)
	if !ok || len(allowed) == 0 {
		t.Fatalf("expected allowed stores in details, got %v", err.Details)
	}
	if allowed[len(allowed)-1] != "all" {
		t.Errorf("expected 'all' to be accepted, got %v", allowed)
	}
}
