package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"qr-code-tracker/cache"
	"qr-code-tracker/config"
	"qr-code-tracker/connectivity"
	"qr-code-tracker/limiter"
	"qr-code-tracker/model"
	"qr-code-tracker/security"
	"qr-code-tracker/storage"

	"github.com/rs/zerolog/log"
)

// creatorKey identifies the caller in the sliding-window creation
// limiter. Single-user deployment: one fixed key.
const creatorKey = "creator"

// RecordHandler serves the record API and the redirect surface.
type RecordHandler struct {
	store   *storage.TieredStore
	cache   *cache.Cache
	limiter *limiter.SlidingWindow
	signal  connectivity.Signal
	config  config.Config
	baseURL string
}

// NewRecordHandler wires the handler with its dependencies.
func NewRecordHandler(store *storage.TieredStore, cacheClient *cache.Cache, createLimiter *limiter.SlidingWindow, signal connectivity.Signal, cfg config.Config) *RecordHandler {
	baseURL := cfg.WebServer.BaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("%s://%s:%s", cfg.WebServer.Scheme, cfg.WebServer.IP, cfg.WebServer.Port)
	}
	return &RecordHandler{
		store:   store,
		cache:   cacheClient,
		limiter: createLimiter,
		signal:  signal,
		config:  cfg,
		baseURL: baseURL,
	}
}

func (h *RecordHandler) opCtx(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), time.Duration(h.config.Redis.OperationTimeout)*time.Second)
}

// shareLink builds the shareable redirect link for a record. Records
// written while the remote tier was unavailable carry an embedded
// fallback payload so scans resolve even when every storage tier misses.
func (h *RecordHandler) shareLink(rec *model.Record, tier storage.Tier) string {
	link := fmt.Sprintf("%s/redirect?id=%s", h.baseURL, url.QueryEscape(rec.ID))
	if tier != storage.TierLocal {
		return link
	}

	payload, err := model.EncodePayload(model.FallbackPayload{
		Text:    rec.OriginalText,
		Name:    rec.Name,
		Created: rec.CreatedAt,
	})
	if err != nil {
		log.Error().Err(err).Str("id", rec.ID).Msg("Failed to encode fallback payload")
		return link
	}
	return link + "&data=" + payload
}

// CreateRecord handles POST /api/records: validate, admit through the
// sliding window, write to the active tier, hand back the shareable link.
func (h *RecordHandler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.opCtx(r)
	defer cancel()

	var input struct {
		Text     string `json:"text"`
		Name     string `json:"name"`
		LogoPath string `json:"logoPath"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		log.Error().Err(err).Msg("Failed to decode request body")
		SendJSONError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	if err := security.ValidateCreateInput(input.Text, input.Name); err != nil {
		log.Warn().Err(err).Msg("Create input rejected")
		SendJSONError(w, statusForError(err), err, "")
		return
	}

	if !h.limiter.CanMakeRequest(creatorKey) {
		log.Warn().Msg("Creation rate limit exceeded")
		SendJSONError(w, http.StatusTooManyRequests, fmt.Errorf("rate limit exceeded"),
			"Too many codes created, wait for the window to clear")
		return
	}

	rec, tier, err := h.store.Create(ctx, input.Text, input.Name, input.LogoPath)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create record")
		SendJSONError(w, statusForError(err), err, "Failed to store record")
		return
	}

	link := h.shareLink(rec, tier)
	log.Info().
		Str("id", rec.ID).
		Str("tier", string(tier)).
		Str("redirect_url", link).
		Msg("QR record created")

	SendJSONSuccess(w, http.StatusCreated, CreateResponse{
		ID:                rec.ID,
		Name:              rec.Name,
		OriginalText:      rec.OriginalText,
		RedirectURL:       link,
		QRCodeURL:         fmt.Sprintf("%s/qr/%s", h.baseURL, rec.ID),
		Tier:              string(tier),
		RemainingRequests: h.limiter.GetRemainingRequests(creatorKey),
	})
}
