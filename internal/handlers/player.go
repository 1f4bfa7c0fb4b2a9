package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"fym-server/internal/models"
	"fym-server/internal/services"
)

// PlayerHandler handles player identity and code requests
type PlayerHandler struct {
	credentials *services.CredentialService
}

// NewPlayerHandler creates a new player handler
func NewPlayerHandler(credentials *services.CredentialService) *PlayerHandler {
	return &PlayerHandler{credentials: credentials}
}

// GetUUID handles GET /players/uuid
func (h *PlayerHandler) GetUUID(w http.ResponseWriter, r *http.Request) {
	player, err := h.credentials.EnsurePlayer(r.Context(), r.URL.Query().Get("username"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"uuid": player.ID})
}

// SendAuthCode handles POST /players/send_auth_code
func (h *PlayerHandler) SendAuthCode(w http.ResponseWriter, r *http.Request) {
	if err := h.credentials.RequestCode(r.Context(), r.FormValue("player")); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// CheckAuthCode handles POST /players/check_auth_code
func (h *PlayerHandler) CheckAuthCode(w http.ResponseWriter, r *http.Request) {
	player := r.FormValue("player")
	if player == "" {
		respondServiceError(w, r, models.NewBadRequest("player", "no player specified"))
		return
	}

	raw := strings.TrimSpace(r.FormValue("otp"))
	if raw == "" {
		respondServiceError(w, r, models.NewBadRequest("otp", "no OTP specified"))
		return
	}
	code, err := strconv.Atoi(raw)
	if err != nil {
		respondServiceError(w, r, models.NewBadRequest("otp", "unparseable OTP"))
		return
	}

	token, err := h.credentials.ValidateCode(r.Context(), player, code)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"token": token})
}
