package handler

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"time"

	"qr-code-tracker/model"
	"qr-code-tracker/resolver"
	"qr-code-tracker/security"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

//go:embed templates/*.html
var templateFS embed.FS

// Templates auto-escape every interpolated value; stored content never
// reaches markup unencoded.
var pageTemplates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// displayData feeds the raw-content display page.
type displayData struct {
	Name    string
	Content string
}

// confirmData feeds the navigation confirmation page.
type confirmData struct {
	Name        string
	Destination string
	Host        string
	ContentURL  string
}

// notFoundData feeds the device-aware error page.
type notFoundData struct {
	ID       string
	IsMobile bool
}

// Redirect handles GET /redirect?id=..&data=.. — the single entry point
// of a scan. It resolves the record through the tier fallback chain,
// dispatches a best-effort scan increment, and either navigates, asks for
// confirmation, or displays the raw content.
func (h *RecordHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.opCtx(r)
	defer cancel()

	id := r.URL.Query().Get("id")
	if id == "" {
		SendJSONError(w, http.StatusBadRequest, errors.New("missing id parameter"), "")
		return
	}
	data := r.URL.Query().Get("data")

	rec, source, found := h.resolveRecord(ctx, id, data)
	if !found {
		h.renderNotFound(w, r, id)
		return
	}

	// A declined confirmation comes back as view=content: show the raw
	// content instead of navigating. The original hit already counted as
	// a scan, so this continuation does not increment again.
	if r.URL.Query().Get("view") == "content" {
		log.Info().Str("id", id).Str("source", source).Msg("Confirmation declined, displaying content")
		h.renderPage(w, http.StatusOK, "display.html", displayData{
			Name:    rec.Name,
			Content: rec.OriginalText,
		})
		return
	}

	// Best-effort scan tracking; its failure never blocks the redirect.
	go h.recordScan(h.scanMeta(id, r))

	cls := security.Classify(rec.OriginalText)
	switch {
	case cls.Navigable && cls.Allowed:
		log.Info().
			Str("id", id).
			Str("source", source).
			Str("destination", cls.TargetURL).
			Msg("Redirecting to allow-listed destination")
		http.Redirect(w, r, cls.TargetURL, http.StatusFound)

	case cls.Navigable:
		log.Info().
			Str("id", id).
			Str("source", source).
			Str("destination", cls.TargetURL).
			Msg("Destination not allow-listed, asking for confirmation")
		h.renderPage(w, http.StatusOK, "confirm.html", confirmData{
			Name:        rec.Name,
			Destination: cls.TargetURL,
			Host:        hostOf(cls.TargetURL),
			ContentURL:  contentViewURL(id, data),
		})

	default:
		log.Info().Str("id", id).Str("source", source).Msg("Displaying raw content")
		h.renderPage(w, http.StatusOK, "display.html", displayData{
			Name:    rec.Name,
			Content: rec.OriginalText,
		})
	}
}

// resolveRecord walks the four-tier fallback chain, consulting the record
// cache first so hot scans skip the remote round trip.
func (h *RecordHandler) resolveRecord(ctx context.Context, id, data string) (*model.Record, string, bool) {
	if h.config.Cache.Enabled {
		if cached, found := h.cache.GetRecord(id); found {
			log.Debug().Str("id", id).Msg("Cache hit")
			return &cached, "cache", true
		}
	}

	sources := []resolver.Source{
		resolver.RemoteSource(h.store.Remote(), h.signal),
		resolver.EncryptedSource(h.store.Local()),
		resolver.LegacySource(h.store.Local()),
	}
	if data != "" {
		sources = append(sources, resolver.PayloadSource(data))
	}

	rec, source, found := resolver.New(sources...).Resolve(ctx, id)
	if found && h.config.Cache.Enabled && source != "embedded-payload" {
		h.cache.SetRecord(*rec)
	}
	return rec, source, found
}

// scanMeta captures everything the increment needs from the request, so
// the goroutine never touches the request after the handler returns.
func (h *RecordHandler) scanMeta(id string, r *http.Request) *model.ScanLog {
	userAgent := r.Header.Get("User-Agent")
	meta := &model.ScanLog{
		ID:        uuid.New().String(),
		RecordID:  id,
		ScannedAt: time.Now(),
		IP:        r.RemoteAddr,
		UserAgent: userAgent,
		Referer:   r.Header.Get("Referer"),
	}
	if h.config.Security.BotDetectionEnabled {
		meta.IsBot = security.IsBot(userAgent)
	}
	return meta
}

// recordScan runs in its own goroutine with its own deadline; errors are
// logged and dropped.
func (h *RecordHandler) recordScan(meta *model.ScanLog) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(h.config.Redis.OperationTimeout)*time.Second)
	defer cancel()

	if err := h.store.IncrementScan(ctx, meta.RecordID, meta); err != nil {
		log.Warn().Err(err).Str("id", meta.RecordID).Msg("Scan increment failed (ignored)")
		return
	}

	// The cached copy now carries a stale counter.
	h.cache.Invalidate(meta.RecordID)
}

func (h *RecordHandler) renderNotFound(w http.ResponseWriter, r *http.Request, id string) {
	log.Warn().Str("id", id).Msg("Record not found at any tier")
	h.renderPage(w, http.StatusNotFound, "notfound.html", notFoundData{
		ID:       id,
		IsMobile: security.IsMobile(r.Header.Get("User-Agent")),
	})
}

func (h *RecordHandler) renderPage(w http.ResponseWriter, status int, name string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pageTemplates.ExecuteTemplate(w, name, data); err != nil {
		log.Error().Err(err).Str("template", name).Msg("Failed to render page")
	}
}

// contentViewURL builds the declined-confirmation link, carrying the
// embedded payload through so payload-only records stay resolvable.
func contentViewURL(id, data string) string {
	link := "/redirect?id=" + url.QueryEscape(id) + "&view=content"
	if data != "" {
		link += "&data=" + url.QueryEscape(data)
	}
	return link
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
