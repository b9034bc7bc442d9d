package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/onnwee/channel-insights/backend/internal/circuitbreaker"
	"github.com/onnwee/channel-insights/backend/internal/toolkit"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// HealthStatus is the /health payload.
type HealthStatus struct {
	Status    string            `json:"status"` // ok or degraded
	Scheduler string            `json:"scheduler"`
	Breakers  map[string]string `json:"breakers,omitempty"`
}

// Health reports liveness plus scheduler and breaker state. An open breaker
// marks the process degraded but still answers 200: upstream trouble is not
// a reason to restart it.
func Health(tk *toolkit.Toolkit) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out := HealthStatus{
			Status:    "ok",
			Scheduler: tk.Scheduler.State().String(),
			Breakers:  tk.Breakers.States(),
		}
		for _, state := range out.Breakers {
			if state == circuitbreaker.StateOpen.String() {
				out.Status = "degraded"
				break
			}
		}
		writeJSON(w, http.StatusOK, out)
	}
}
