package handler

import (
	"errors"
	"net/http"
	"strconv"

	"qr-code-tracker/model"
	"qr-code-tracker/storage"
	"qr-code-tracker/utils"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// GetRecord handles GET /api/records/{id}. It reads the active tier only;
// the cross-tier fallback chain is the redirect endpoint's job.
func (h *RecordHandler) GetRecord(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.opCtx(r)
	defer cancel()

	id := mux.Vars(r)["id"]

	rec, err := h.store.Get(ctx, id)
	if err == utils.ErrNotFound {
		SendJSONError(w, http.StatusNotFound, err, "")
		return
	} else if err != nil {
		log.Error().Err(err).Str("id", id).Msg("Failed to fetch record")
		SendJSONError(w, statusForError(err), err, "Failed to fetch record")
		return
	}

	SendJSONSuccess(w, http.StatusOK, rec)
}

// ListRecords handles GET /api/records?limit=N, newest first.
func (h *RecordHandler) ListRecords(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.opCtx(r)
	defer cancel()

	limit := defaultListLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			SendJSONError(w, http.StatusBadRequest, errors.New("invalid limit parameter"), "Limit must be a positive number")
			return
		}
		if parsed > maxListLimit {
			parsed = maxListLimit
		}
		limit = parsed
	}

	records, err := h.store.ListRecent(ctx, limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list records")
		SendJSONError(w, statusForError(err), err, "Failed to list records")
		return
	}

	SendJSONSuccess(w, http.StatusOK, map[string]interface{}{
		"records": records,
		"tier":    string(h.store.ActiveTier()),
	})
}

// StatsResponse carries scan statistics for one record.
type StatsResponse struct {
	Record   *model.Record   `json:"record"`
	ScanLogs []model.ScanLog `json:"scanLogs"`
}

// RecordStats handles GET /api/records/{id}/stats. Scan logs exist only
// on the remote tier; local-mode responses carry the counters alone.
func (h *RecordHandler) RecordStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.opCtx(r)
	defer cancel()

	id := mux.Vars(r)["id"]

	rec, err := h.store.Get(ctx, id)
	if err == utils.ErrNotFound {
		SendJSONError(w, http.StatusNotFound, err, "")
		return
	} else if err != nil {
		log.Error().Err(err).Str("id", id).Msg("Failed to fetch record for stats")
		SendJSONError(w, statusForError(err), err, "Failed to fetch record")
		return
	}

	logs := []model.ScanLog{}
	if h.store.ActiveTier() == storage.TierRemote {
		logs, err = h.store.Remote().ScanLogs(ctx, id, h.config.Security.ScanLogLimit)
		if err != nil {
			log.Warn().Err(err).Str("id", id).Msg("Failed to fetch scan logs")
			logs = []model.ScanLog{}
		}
	}

	SendJSONSuccess(w, http.StatusOK, StatsResponse{Record: rec, ScanLogs: logs})
}
