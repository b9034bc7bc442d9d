package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/onnwee/channel-insights/backend/internal/api/handlers"
	"github.com/onnwee/channel-insights/backend/internal/config"
	"github.com/onnwee/channel-insights/backend/internal/toolkit"
)

func newTestRouter(t *testing.T, adminLimit int) (*toolkit.Toolkit, http.Handler) {
	t.Helper()
	tk, err := toolkit.New(&config.Config{
		CacheTTL:         time.Hour,
		CacheMaxSize:     10,
		CacheDir:         t.TempDir(),
		CacheSharedMaxMB: 1,
		RateLimits: map[string]config.RateLimit{
			config.APIGemini: {Requests: 60, Window: time.Minute},
			config.APIAdmin:  {Requests: adminLimit, Window: time.Hour},
		},
		SchedulerPollInterval: time.Second,
		SchedulerStopTimeout:  time.Second,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(tk.Close)

	hub := handlers.NewHub(handlers.ToolkitSnapshot(tk), time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	return tk, NewRouter(tk, hub)
}

// TestRoutesRegistered only validates route registration; handler
// behaviour is tested in the handlers package.
func TestRoutesRegistered(t *testing.T) {
	_, router := newTestRouter(t, 100)

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{"GET", "/health", http.StatusOK},
		{"GET", "/metrics", http.StatusOK},
		{"GET", "/api/cache/stats", http.StatusOK},
		{"POST", "/api/cache/cleanup", http.StatusOK},
		{"POST", "/api/cache/clear?store=memory", http.StatusOK},
		{"DELETE", "/api/cache/memory/missing", http.StatusNotFound},
		{"GET", "/api/ratelimits", http.StatusOK},
		{"POST", "/api/ratelimits/gemini/reset", http.StatusOK},
		{"GET", "/api/scheduler/jobs", http.StatusOK},
		{"GET", "/api/nope", http.StatusNotFound},
		// gorilla/mux subrouters report a method mismatch as 404: every
		// later route in the subrouter shares the /api prefix matcher, and a
		// matching matcher clears the earlier mismatch.
		{"GET", "/api/cache/memory/k", http.StatusNotFound},
		{"POST", "/api/cache/stats", http.StatusNotFound},
		// Root routes still answer 405
		{"POST", "/health", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, httptest.NewRequest(tt.method, tt.path, nil))
			if rr.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, rr.Code, rr.Body.String())
			}
		})
	}
}

func TestSecurityHeadersOnEveryRoute(t *testing.T) {
	_, router := newTestRouter(t, 100)

	for _, path := range []string{"/health", "/api/cache/stats", "/api/ratelimits"} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest("GET", path, nil))
		if got := rr.Header().Get("X-Content-Type-Options"); got != "nosniff" {
			t.Errorf("%s: X-Content-Type-Options = %q, want nosniff", path, got)
		}
		if got := rr.Header().Get("Cache-Control"); got != "no-store" {
			t.Errorf("%s: Cache-Control = %q, want no-store", path, got)
		}
	}
}

func TestAPICompression(t *testing.T) {
	_, router := newTestRouter(t, 100)

	tests := []struct {
		acceptEncoding string
		wantEncoding   string
	}{
		{"br", "br"},
		{"gzip", "gzip"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run("accept "+tt.acceptEncoding, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/cache/stats", nil)
			if tt.acceptEncoding != "" {
				req.Header.Set("Accept-Encoding", tt.acceptEncoding)
			}
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			if got := rr.Header().Get("Content-Encoding"); got != tt.wantEncoding {
				t.Errorf("Content-Encoding = %q, want %q", got, tt.wantEncoding)
			}
			if !strings.Contains(rr.Header().Get("Vary"), "Accept-Encoding") {
				t.Errorf("expected Vary to contain Accept-Encoding, got %q", rr.Header().Get("Vary"))
			}
		})
	}
}

func TestAPIThrottled(t *testing.T) {
	_, router := newTestRouter(t, 1)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("GET", "/api/ratelimits", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("GET", "/api/ratelimits", nil))
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: expected 429, got %d", rr.Code)
	}

	// Health stays outside the admin budget
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("GET", "/health", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("health: expected 200, got %d", rr.Code)
	}
}

func TestStreamThroughRouter(t *testing.T) {
	_, router := newTestRouter(t, 100)
	server := httptest.NewServer(router)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/stream"
	header := http.Header{}
	header.Set("Accept-Encoding", "gzip")
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), `"type":"stats"`) {
		t.Errorf("unexpected first message: %s", data)
	}
}
