package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"fym-server/internal/models"
	"fym-server/internal/services"

	"github.com/rs/zerolog/log"
)

type contextKey string

const playerKey contextKey = "player"

// maxFormMemory bounds the in-memory part of multipart uploads
const maxFormMemory = 32 << 20

// RequirePlayer authenticates the player/token pair carried in the query
// string or request body and stores the player in the request context.
// Bodies larger than maxBytes are rejected before any of it is buffered.
func RequirePlayer(gate *services.Gate, maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if maxBytes > 0 {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			if err := parseForm(r); err != nil {
				var mbe *http.MaxBytesError
				if errors.As(err, &mbe) {
					respondError(w, "request body too large", "too_large", http.StatusRequestEntityTooLarge)
					return
				}
				respondError(w, "malformed request body", "bad_request", http.StatusBadRequest)
				return
			}

			creds := services.Credentials{
				Player: r.FormValue("player"),
				Token:  r.FormValue("token"),
			}
			err := gate.Guard(r.Context(), creds, func(ctx context.Context, player *models.Player) error {
				next.ServeHTTP(w, r.WithContext(WithPlayer(ctx, player)))
				return nil
			})
			if err != nil {
				var bre *models.BadRequestError
				switch {
				case errors.As(err, &bre):
					respondError(w, bre.Error(), "bad_request", http.StatusBadRequest)
				case errors.Is(err, models.ErrInvalidCredentials):
					respondError(w, "invalid player credentials", "forbidden", http.StatusForbidden)
				default:
					log.Error().Err(err).Msg("Failed to authenticate player")
					respondError(w, "internal server error", "internal", http.StatusInternalServerError)
				}
			}
		})
	}
}

// GetPlayer extracts the authenticated player from context
func GetPlayer(ctx context.Context) *models.Player {
	player, ok := ctx.Value(playerKey).(*models.Player)
	if !ok {
		return nil
	}
	return player
}

// WithPlayer returns a copy of ctx carrying player
func WithPlayer(ctx context.Context, player *models.Player) context.Context {
	return context.WithValue(ctx, playerKey, player)
}

func parseForm(r *http.Request) error {
	err := r.ParseMultipartForm(maxFormMemory)
	if err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return err
	}
	return nil
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message, code string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(errorBody{Error: message, Code: code})
}
