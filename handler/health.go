package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// HealthCheck handles GET /health. The service is healthy even with the
// remote tier down (the local tier keeps it functional), so the response
// reports tier state rather than flipping to 503 on a Redis outage.
func (h *RecordHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	remote := "connected"
	if err := h.store.Remote().Ping(ctx); err != nil {
		log.Debug().Err(err).Msg("Redis health probe failed")
		remote = "unavailable"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":      "healthy",
		"remote_tier": remote,
		"active_tier": string(h.store.ActiveTier()),
	})
}

// CacheMetrics handles GET /cache/metrics.
func (h *RecordHandler) CacheMetrics(w http.ResponseWriter, r *http.Request) {
	if !h.config.Cache.Enabled || h.cache == nil {
		SendJSONError(w, http.StatusServiceUnavailable, errors.New("cache is disabled"), "")
		return
	}

	metrics := h.cache.GetMetricsSnapshot()
	SendJSONSuccess(w, http.StatusOK, metrics)
}
