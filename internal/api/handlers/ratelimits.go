package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/onnwee/channel-insights/backend/internal/apierr"
	"github.com/onnwee/channel-insights/backend/internal/logger"
	"github.com/onnwee/channel-insights/backend/internal/ratelimit"
)

// RateLimitHandler exposes the limiter registry.
type RateLimitHandler struct {
	limiters *ratelimit.Registry
}

func NewRateLimitHandler(limiters *ratelimit.Registry) *RateLimitHandler {
	return &RateLimitHandler{limiters: limiters}
}

// List returns every limiter with its current token count.
// GET /api/ratelimits
func (h *RateLimitHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"limiters": h.limiters.Snapshot()})
}

// Reset refills one limiter to capacity.
// POST /api/ratelimits/{name}/reset
func (h *RateLimitHandler) Reset(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	l, ok := h.limiters.Get(name)
	if !ok {
		apierr.WriteErrorWithContext(w, r, apierr.RateLimitNotFound(name))
		return
	}
	l.Reset()
	logger.FromContext(r.Context()).Info("Rate limiter reset via admin API", "limiter", name)
	writeJSON(w, http.StatusOK, ratelimit.Status{
		Name:          l.Name(),
		Capacity:      l.Capacity(),
		WindowSeconds: l.Window().Seconds(),
		Tokens:        l.Tokens(),
	})
}
