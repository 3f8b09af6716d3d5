package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gdg-garage/garage-fit-api/internal/logger"
	"github.com/gorilla/websocket"
)

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

func newWSClient(conn *websocket.Conn) *wsClient {
	c := &wsClient{conn: conn, send: make(chan []byte, 16)}
	go c.writePump()
	return c
}

func (c *wsClient) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

type popupMessage struct {
	Type    string `json:"type"`
	Payload Event  `json:"payload"`
}

// Hub pushes unlock popups to the live WebSocket connections of the
// unlocking user.
type Hub struct {
	mu       sync.RWMutex
	clients  map[uint]map[*wsClient]bool
	upgrader websocket.Upgrader
	log      *logger.Logger
}

func NewHub(log *logger.Logger, checkOrigin func(r *http.Request) bool) *Hub {
	return &Hub{
		clients:  make(map[uint]map[*wsClient]bool),
		upgrader: websocket.Upgrader{CheckOrigin: checkOrigin},
		log:      log.With("service", "PopupHub"),
	}
}

// Serve upgrades the request and registers the connection for userID until
// the peer goes away.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID uint) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", "error", err)
		return
	}
	c := h.add(userID, conn)
	go func() {
		defer h.remove(userID, c)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) NotifyAchievement(_ context.Context, event Event) error {
	data, err := json.Marshal(popupMessage{Type: "achievement_unlocked", Payload: event})
	if err != nil {
		return err
	}

	h.mu.RLock()
	targets := make([]*wsClient, 0, len(h.clients[event.UserID]))
	for c := range h.clients[event.UserID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		select {
		case c.send <- data:
		default:
			h.log.Warn("ws client too slow, disconnecting", "user_id", event.UserID)
			h.remove(event.UserID, c)
		}
	}
	return nil
}

func (h *Hub) ClientCount(userID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

func (h *Hub) add(userID uint, conn *websocket.Conn) *wsClient {
	c := newWSClient(conn)
	h.mu.Lock()
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[*wsClient]bool)
	}
	h.clients[userID][c] = true
	h.mu.Unlock()
	return c
}

func (h *Hub) remove(userID uint, c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.clients[userID]
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.clients, userID)
	}
}
