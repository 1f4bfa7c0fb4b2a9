package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"fym-server/internal/models"
	"fym-server/internal/storage"

	"github.com/rs/zerolog/log"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message, code string, statusCode int) {
	respondJSON(w, statusCode, ErrorResponse{Error: message, Code: code})
}

// respondJSON sends v as a JSON body
func respondJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// respondServiceError maps err to a status and sends it. Unexpected errors
// are logged and hidden from the client.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
	}
	respondError(w, message, code, status)
}

func statusFor(err error) (int, string, string) {
	var bre *models.BadRequestError
	switch {
	case errors.As(err, &bre):
		return http.StatusBadRequest, "bad_request", bre.Error()
	case errors.Is(err, models.ErrInvalidCredentials),
		errors.Is(err, models.ErrInvalidCode),
		errors.Is(err, models.ErrPlayerNotFound):
		return http.StatusForbidden, "forbidden", "forbidden"
	case errors.Is(err, models.ErrTrainNotFound):
		return http.StatusNotFound, "not_found", err.Error()
	case errors.Is(err, models.ErrTrainUnavailable):
		// clients expect 400 for an already-claimed train
		return http.StatusBadRequest, "conflict", "train unavailable"
	case errors.Is(err, storage.ErrInvalidName):
		return http.StatusBadRequest, "bad_request", err.Error()
	case errors.Is(err, storage.ErrInvalidSignature):
		return http.StatusForbidden, "forbidden", err.Error()
	case errors.Is(err, storage.ErrBlobNotFound):
		return http.StatusNotFound, "not_found", err.Error()
	default:
		return http.StatusInternalServerError, "internal", "internal server error"
	}
}
