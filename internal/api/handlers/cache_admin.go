package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/onnwee/channel-insights/backend/internal/apierr"
	"github.com/onnwee/channel-insights/backend/internal/logger"
	"github.com/onnwee/channel-insights/backend/internal/toolkit"
)

// CacheAdminHandler handles cache administration endpoints.
type CacheAdminHandler struct {
	tk *toolkit.Toolkit
}

// NewCacheAdminHandler creates a new cache admin handler.
func NewCacheAdminHandler(tk *toolkit.Toolkit) *CacheAdminHandler {
	return &CacheAdminHandler{tk: tk}
}

// GetCacheStats returns statistics for every cache.
// GET /api/cache/stats
func (h *CacheAdminHandler) GetCacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.tk.CacheStats())
}

// Cleanup removes expired entries from the memory, file and bolt caches.
// POST /api/cache/cleanup
func (h *CacheAdminHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.tk.CleanupCaches())
}

// Clear empties one store, or all of them when store is "all" or omitted.
// POST /api/cache/clear?store=memory|file|shared|bolt|all
func (h *CacheAdminHandler) Clear(w http.ResponseWriter, r *http.Request) {
	store := r.URL.Query().Get("store")
	if store == "" {
		store = "all"
	}

	var cleared []string
	if store == "all" {
		for name, s := range h.tk.Stores() {
			s.Clear()
			cleared = append(cleared, name)
		}
	} else {
		s, ok := h.tk.Store(store)
		if !ok {
			apierr.WriteErrorWithContext(w, r, apierr.CacheUnknownStore(store))
			return
		}
		s.Clear()
		cleared = append(cleared, store)
	}

	logger.FromContext(r.Context()).Info("Cache cleared via admin API", "store", store)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"cleared": len(cleared),
		"store":   store,
	})
}

// DeleteKey removes one key from a store.
// DELETE /api/cache/{store}/{key}
func (h *CacheAdminHandler) DeleteKey(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	store, key := vars["store"], vars["key"]

	s, ok := h.tk.Store(store)
	if !ok {
		apierr.WriteErrorWithContext(w, r, apierr.CacheUnknownStore(store))
		return
	}
	if !s.Delete(key) {
		apierr.WriteErrorWithContext(w, r, apierr.CacheKeyNotFound(store, key))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
