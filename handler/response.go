package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"qr-code-tracker/utils"

	"github.com/rs/zerolog/log"
)

// ErrorResponse is the standardized error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// CreateResponse is returned on successful record creation.
type CreateResponse struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	OriginalText      string `json:"originalText"`
	RedirectURL       string `json:"redirectURL"`
	QRCodeURL         string `json:"qrCodeURL"`
	Tier              string `json:"tier"`
	RemainingRequests int    `json:"remainingRequests"`
}

// SendJSONError sends a JSON error response
func SendJSONError(w http.ResponseWriter, statusCode int, err error, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error:   err.Error(),
		Message: message,
	}

	if encodeErr := json.NewEncoder(w).Encode(response); encodeErr != nil {
		log.Error().Err(encodeErr).Msg("Failed to encode error response")
	}
}

// SendJSONSuccess sends a JSON success response
func SendJSONSuccess(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode success response")
	}
}

// statusForError maps the error taxonomy onto HTTP status codes.
func statusForError(err error) int {
	var validation *utils.ValidationError
	var rejection *utils.SecurityRejection
	var storage *utils.StorageError

	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &rejection):
		return http.StatusForbidden
	case errors.Is(err, utils.ErrRateLimitExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, utils.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &storage):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
