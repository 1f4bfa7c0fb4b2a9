package handlers

import (
	"net/http"

	"fym-server/internal/middleware"
	"fym-server/internal/services"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	// simulation clients are not browsers
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler handles notification sockets
type WebSocketHandler struct {
	hub *services.NotificationHub
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(hub *services.NotificationHub) *WebSocketHandler {
	return &WebSocketHandler{hub: hub}
}

// HandleWebSocket handles GET /ws. The player is already authenticated.
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	player := middleware.GetPlayer(r.Context())

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	h.hub.Register(player.Username, conn)
	defer h.hub.Unregister(player.Username, conn)

	if err := h.hub.SendToPlayer(player.Username, services.Notice{Type: "connected"}); err != nil {
		log.Error().Err(err).Str("player", player.Username).Msg("Failed to send connected notice")
		return
	}

	// notices only flow server to client; reading keeps control frames
	// handled and detects disconnects
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error().Err(err).Str("player", player.Username).Msg("WebSocket error")
			}
			return
		}
	}
}
