package services

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"fym-server/internal/models"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const NoticeTrainAvailable = "train_available"

// writeWait bounds a single notice write to a slow client
const writeWait = 10 * time.Second

// Notice is a message pushed to a connected player
type Notice struct {
	Type     string `json:"type"`
	TrainID  int64  `json:"train_id,omitempty"`
	Filename string `json:"filename,omitempty"`
	Message  string `json:"message,omitempty"`
}

// hubConn serialises writes; gorilla connections allow one concurrent writer
type hubConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *hubConn) write(data []byte, wait time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(wait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// NotificationHub tracks one WebSocket per player
type NotificationHub struct {
	mu          sync.RWMutex
	connections map[string]*hubConn
	writeWait   time.Duration
}

var _ Notifier = (*NotificationHub)(nil)

// NewNotificationHub creates a new notification hub
func NewNotificationHub() *NotificationHub {
	return &NotificationHub{
		connections: make(map[string]*hubConn),
		writeWait:   writeWait,
	}
}

// Register registers the connection for player, closing any previous one
func (h *NotificationHub) Register(player string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, ok := h.connections[player]; ok {
		existing.conn.Close()
	}
	h.connections[player] = &hubConn{conn: conn}

	log.Info().Str("player", player).Msg("WebSocket connection registered")
}

// Unregister removes conn for player if it is still the registered one
func (h *NotificationHub) Unregister(player string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, ok := h.connections[player]; ok && existing.conn == conn {
		existing.conn.Close()
		delete(h.connections, player)
		log.Info().Str("player", player).Msg("WebSocket connection unregistered")
	}
}

// IsOnline checks if a player is connected
func (h *NotificationHub) IsOnline(player string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.connections[player]
	return ok
}

// SendToPlayer sends a notice to a connected player
func (h *NotificationHub) SendToPlayer(player string, notice Notice) error {
	h.mu.RLock()
	c, ok := h.connections[player]
	h.mu.RUnlock()

	if !ok {
		return fmt.Errorf("player %s is not connected", player)
	}

	data, err := json.Marshal(notice)
	if err != nil {
		return fmt.Errorf("failed to marshal notice: %w", err)
	}

	if err := c.write(data, h.writeWait); err != nil {
		h.Unregister(player, c.conn)
		return fmt.Errorf("failed to send notice: %w", err)
	}
	return nil
}

// NotifyTrainAvailable tells the recipient, if connected, that a train is waiting
func (h *NotificationHub) NotifyTrainAvailable(train *models.Train) {
	if !h.IsOnline(train.ToPlayer) {
		return
	}

	err := h.SendToPlayer(train.ToPlayer, Notice{
		Type:     NoticeTrainAvailable,
		TrainID:  train.ID,
		Filename: train.Filename,
	})
	if err != nil {
		log.Warn().Err(err).Str("to_player", train.ToPlayer).Int64("train_id", train.ID).Msg("Failed to notify recipient")
	}
}
