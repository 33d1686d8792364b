package handler

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"net/http"
	"strconv"
	"strings"

	"qr-code-tracker/model"
	"qr-code-tracker/utils"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"github.com/skip2/go-qrcode"

	// Registered decoders for logo data URIs, covering every format the
	// upload validator accepts.
	_ "image/gif"
	_ "image/jpeg"

	_ "golang.org/x/image/webp"
)

// GenerateQR handles GET /qr/{id} - renders the record's shareable link
// as a PNG, compositing the stored logo over the center when one exists.
func (h *RecordHandler) GenerateQR(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.opCtx(r)
	defer cancel()

	id := mux.Vars(r)["id"]

	rec, err := h.store.Get(ctx, id)
	if err == utils.ErrNotFound {
		log.Warn().Str("id", id).Msg("Record not found for QR generation")
		SendJSONError(w, http.StatusNotFound, errors.New("record not found"), "Record does not exist")
		return
	} else if err != nil {
		log.Error().Err(err).Str("id", id).Msg("Failed to fetch record for QR")
		SendJSONError(w, statusForError(err), err, "Failed to fetch record")
		return
	}

	query := r.URL.Query()

	// Size parameter (default: 256, min: 128, max: 1024)
	size := 256
	if sizeStr := query.Get("size"); sizeStr != "" {
		parsedSize, err := strconv.Atoi(sizeStr)
		if err != nil {
			SendJSONError(w, http.StatusBadRequest, errors.New("invalid size parameter"), "Size must be a number")
			return
		}
		if parsedSize < 128 || parsedSize > 1024 {
			SendJSONError(w, http.StatusBadRequest, errors.New("size out of range"), "Size must be between 128 and 1024")
			return
		}
		size = parsedSize
	}

	// Error correction level (default: medium; high when a logo covers
	// part of the pattern)
	level := qrcode.Medium
	if rec.LogoPath != "" && rec.LogoPath != model.LogoNone {
		level = qrcode.High
	}
	levelParam := query.Get("level")
	if levelParam != "" {
		switch levelParam {
		case "low":
			level = qrcode.Low
		case "medium":
			level = qrcode.Medium
		case "high":
			level = qrcode.High
		case "highest":
			level = qrcode.Highest
		default:
			SendJSONError(w, http.StatusBadRequest, errors.New("invalid level parameter"), "Level must be: low, medium, high, or highest")
			return
		}
	}

	link := h.shareLink(rec, h.store.ActiveTier())

	etag := `"` + utils.HashContent(fmt.Sprintf("%s|%d|%d|%s", link, size, level, rec.LogoPath))[:16] + `"`
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	pngData, err := h.renderQR(link, level, size, rec.LogoPath)
	if err != nil {
		log.Error().Err(err).Str("id", id).Msg("Failed to generate QR code")
		SendJSONError(w, http.StatusInternalServerError, err, "Failed to generate QR code")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Length", strconv.Itoa(len(pngData)))

	if _, err := w.Write(pngData); err != nil {
		log.Error().Err(err).Msg("Failed to write QR code response")
		return
	}

	log.Info().
		Str("id", id).
		Int("size", size).
		Str("level", levelStr(level)).
		Msg("QR code generated")
}

// renderQR encodes the link, overlaying the logo when the record carries
// a decodable one. Overlay failures degrade to a plain QR code.
func (h *RecordHandler) renderQR(link string, level qrcode.RecoveryLevel, size int, logoPath string) ([]byte, error) {
	logo := decodeLogo(logoPath)
	if logo == nil {
		return qrcode.Encode(link, level, size)
	}

	qr, err := qrcode.New(link, level)
	if err != nil {
		return nil, err
	}

	base := qr.Image(size)
	canvas := image.NewRGBA(base.Bounds())
	draw.Draw(canvas, base.Bounds(), base, image.Point{}, draw.Src)

	overlayLogo(canvas, logo)

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// overlayLogo draws the logo centered, scaled to a fifth of the QR side
// so the error correction can still recover the covered modules.
func overlayLogo(canvas *image.RGBA, logo image.Image) {
	bounds := canvas.Bounds()
	target := bounds.Dx() / 5

	lb := logo.Bounds()
	scaleX := float64(lb.Dx()) / float64(target)
	scaleY := float64(lb.Dy()) / float64(target)

	x0 := bounds.Min.X + (bounds.Dx()-target)/2
	y0 := bounds.Min.Y + (bounds.Dy()-target)/2

	// Nearest-neighbour scale; good enough for small center logos.
	for y := 0; y < target; y++ {
		for x := 0; x < target; x++ {
			srcX := lb.Min.X + int(float64(x)*scaleX)
			srcY := lb.Min.Y + int(float64(y)*scaleY)
			canvas.Set(x0+x, y0+y, logo.At(srcX, srcY))
		}
	}
}

// decodeLogo turns a data-URI logoPath into an image. Static asset
// references and the "none" sentinel yield nil (no overlay).
func decodeLogo(logoPath string) image.Image {
	if logoPath == "" || logoPath == model.LogoNone || !strings.HasPrefix(logoPath, "data:") {
		return nil
	}

	idx := strings.Index(logoPath, ";base64,")
	if idx < 0 {
		return nil
	}

	raw, err := base64.StdEncoding.DecodeString(logoPath[idx+len(";base64,"):])
	if err != nil {
		log.Debug().Err(err).Msg("Logo data URI is not valid base64, skipping overlay")
		return nil
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		log.Debug().Err(err).Msg("Logo image undecodable, skipping overlay")
		return nil
	}
	return img
}

// levelStr converts qrcode.RecoveryLevel to string for logging
func levelStr(level qrcode.RecoveryLevel) string {
	switch level {
	case qrcode.Low:
		return "low"
	case qrcode.Medium:
		return "medium"
	case qrcode.High:
		return "high"
	case qrcode.Highest:
		return "highest"
	default:
		return "unknown"
	}
}
