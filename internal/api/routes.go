package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/onnwee/channel-insights/backend/internal/api/handlers"
	"github.com/onnwee/channel-insights/backend/internal/config"
	"github.com/onnwee/channel-insights/backend/internal/middleware"
	"github.com/onnwee/channel-insights/backend/internal/toolkit"
)

// NewRouter builds the admin router. hub backs the /api/stream websocket;
// the caller owns hub.Run.
func NewRouter(tk *toolkit.Toolkit, hub *handlers.Hub) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RecoverWithSentry)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.Instrument)

	r.HandleFunc("/health", handlers.Health(tk)).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	apiRouter := r.PathPrefix("/api").Subrouter()
	adminLimiter, _ := tk.Limiter(config.APIAdmin)
	apiRouter.Use(middleware.Throttle(adminLimiter))
	apiRouter.Use(middleware.Compress)

	// Caches
	cacheAdmin := handlers.NewCacheAdminHandler(tk)
	apiRouter.HandleFunc("/cache/stats", cacheAdmin.GetCacheStats).Methods("GET")
	apiRouter.HandleFunc("/cache/cleanup", cacheAdmin.Cleanup).Methods("POST")
	apiRouter.HandleFunc("/cache/clear", cacheAdmin.Clear).Methods("POST")
	apiRouter.HandleFunc("/cache/{store}/{key}", cacheAdmin.DeleteKey).Methods("DELETE")

	// Rate limits
	limits := handlers.NewRateLimitHandler(tk.Limiters)
	apiRouter.HandleFunc("/ratelimits", limits.List).Methods("GET")
	apiRouter.HandleFunc("/ratelimits/{name}/reset", limits.Reset).Methods("POST")

	// Scheduler
	apiRouter.HandleFunc("/scheduler/jobs", handlers.SchedulerJobs(tk.Scheduler)).Methods("GET")

	// Live stats
	if hub != nil {
		apiRouter.Handle("/stream", http.HandlerFunc(handlers.NewWebSocketHandler(hub).HandleWebSocket)).Methods("GET")
	}

	return r
}
