package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/posture/internal/app"
	"github.com/ayusman/posture/internal/server/api"
	"github.com/ayusman/posture/internal/session"
)

const (
	writeWait  = 5 * time.Second
	sendBuffer = 16
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// updateMessage is one frame's result as sent to feed clients.
type updateMessage struct {
	SessionID string `json:"session_id"`
	Time      string `json:"time"`
	api.AnalyzeResponse
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub pushes every analysis result of a session to its WebSocket clients.
type Hub struct {
	service     *app.Service
	unsubscribe func()
	clients     map[string]map[*client]bool
	mu          sync.RWMutex
}

// NewHub creates a Hub subscribed to the service's updates.
func NewHub(svc *app.Service) *Hub {
	h := &Hub{
		service: svc,
		clients: make(map[string]map[*client]bool),
	}
	h.unsubscribe = svc.Subscribe(h.broadcast)
	return h
}

// ServeHTTP handles WebSocket upgrade requests on /api/sessions/{id}/ws.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	id = strings.TrimSuffix(id, "/ws")

	if _, err := h.service.Status(id); err != nil {
		if errors.Is(err, session.ErrNotFound) || errors.Is(err, session.ErrClosed) {
			http.Error(w, "Session not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.add(id, c)
	defer h.remove(id, c)

	go c.writeLoop()

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (h *Hub) add(id string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[id] == nil {
		h.clients[id] = make(map[*client]bool)
	}
	h.clients[id][c] = true
}

func (h *Hub) remove(id string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[id][c]; !ok {
		return
	}
	delete(h.clients[id], c)
	if len(h.clients[id]) == 0 {
		delete(h.clients, id)
	}
	close(c.send)
}

// Clients returns the number of clients following a session.
func (h *Hub) Clients(id string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[id])
}

// broadcast queues an update for the session's clients. Slow clients miss
// updates rather than stall analysis.
func (h *Hub) broadcast(u app.Update) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients := h.clients[u.SessionID]
	if len(clients) == 0 {
		return
	}

	msg, err := json.Marshal(updateMessage{
		SessionID:       u.SessionID,
		Time:            u.Time.UTC().Format(time.RFC3339Nano),
		AnalyzeResponse: api.NewAnalyzeResponse(u.Result),
	})
	if err != nil {
		slog.Warn("failed to encode update", "session", u.SessionID, "error", err)
		return
	}

	for c := range clients {
		select {
		case c.send <- msg:
		default:
		}
	}
}

// Close stops listening for updates and disconnects every client.
func (h *Hub) Close() {
	h.unsubscribe()

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, clients := range h.clients {
		for c := range clients {
			close(c.send)
		}
		delete(h.clients, id)
	}
}

func (c *client) writeLoop() {
	defer c.conn.Close()

	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
}
