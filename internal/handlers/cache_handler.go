package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sentio/internal/interfaces"
)

// CacheHandler serves the result cache endpoints.
type CacheHandler struct {
	cache  interfaces.CacheService
	logger arbor.ILogger
}

// NewCacheHandler creates the cache endpoint handler.
func NewCacheHandler(cache interfaces.CacheService, logger arbor.ILogger) *CacheHandler {
	return &CacheHandler{
		cache:  cache,
		logger: logger,
	}
}

// StatsHandler serves GET /api/cache/stats.
func (h *CacheHandler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	WriteJSON(w, http.StatusOK, h.cache.Stats())
}

// InvalidateHandler serves POST /api/cache/invalidate.
func (h *CacheHandler) InvalidateHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	h.cache.Invalidate()
	WriteSuccess(w, "cache invalidated")
}

// configRequest is the PUT /api/cache/config body; omitted fields are
// left unchanged.
type configRequest struct {
	Enabled    *bool `json:"enabled,omitempty"`
	TTLSeconds *int  `json:"ttl_seconds,omitempty"`
	MaxSize    *int  `json:"max_size,omitempty"`
}

// ConfigHandler serves PUT /api/cache/config.
func (h *CacheHandler) ConfigHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPut) {
		return
	}

	var req configRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	h.cache.UpdateConfig(interfaces.CacheSettings{
		Enabled:    req.Enabled,
		TTLSeconds: req.TTLSeconds,
		MaxSize:    req.MaxSize,
	})

	WriteJSON(w, http.StatusOK, h.cache.Stats())
}
