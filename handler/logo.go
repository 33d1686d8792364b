package handler

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"

	"qr-code-tracker/security"

	"github.com/rs/zerolog/log"
)

// LogoResponse carries the validated logo as a data URI ready to be used
// as a record's logoPath.
type LogoResponse struct {
	LogoPath string `json:"logoPath"`
	Size     int    `json:"size"`
	MimeType string `json:"mimeType"`
}

// UploadLogo handles POST /api/logo: validates the uploaded image (MIME
// allow-list, size ceiling, magic-number check, filename screening) and
// returns it as a data URI. Nothing is persisted here; the data URI
// travels inside the record at creation time.
func (h *RecordHandler) UploadLogo(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(security.MaxImageSize + 4096); err != nil {
		SendJSONError(w, http.StatusBadRequest, err, "Invalid multipart form")
		return
	}

	file, header, err := r.FormFile("logo")
	if err != nil {
		SendJSONError(w, http.StatusBadRequest, errors.New("missing logo file"), "Attach the image as the 'logo' form field")
		return
	}
	defer file.Close()

	// Read one byte past the ceiling to detect oversize uploads.
	data, err := io.ReadAll(io.LimitReader(file, security.MaxImageSize+1))
	if err != nil {
		log.Error().Err(err).Msg("Failed to read logo upload")
		SendJSONError(w, http.StatusInternalServerError, err, "Failed to read upload")
		return
	}

	declaredMIME := header.Header.Get("Content-Type")
	if err := security.ValidateImage(header.Filename, declaredMIME, data); err != nil {
		log.Warn().Err(err).
			Str("filename", header.Filename).
			Str("mime", declaredMIME).
			Msg("Logo upload rejected")
		SendJSONError(w, http.StatusBadRequest, err, "")
		return
	}

	dataURI := fmt.Sprintf("data:%s;base64,%s", declaredMIME, base64.StdEncoding.EncodeToString(data))

	log.Info().
		Str("filename", header.Filename).
		Str("mime", declaredMIME).
		Int("size", len(data)).
		Msg("Logo validated")

	SendJSONSuccess(w, http.StatusOK, LogoResponse{
		LogoPath: dataURI,
		Size:     len(data),
		MimeType: declaredMIME,
	})
}
