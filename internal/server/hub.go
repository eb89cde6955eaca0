package server

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/KaatCAIBXL/video-translator-sub000/internal/sentence"
)

// RecordEvent is one finalized sentence as pushed to WebSocket clients.
type RecordEvent struct {
	SessionID string          `json:"session_id"`
	Index     int             `json:"index"`
	Record    sentence.Record `json:"record"`
	Timestamp time.Time       `json:"timestamp"`
}

// Hub pushes finalized sentences to connected WebSocket clients. Slow
// clients are dropped rather than allowed to block the pipeline.
type Hub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	clients map[*websocket.Conn]chan RecordEvent
	closed  bool
	mu      sync.Mutex
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}

	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The control API is same-host; transcripts carry no credentials.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]chan RecordEvent),
	}
}

// HandleWebSocket upgrades the connection and streams finalized sentences
// until the client disconnects.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	events := make(chan RecordEvent, 32)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[conn] = events
	h.mu.Unlock()

	h.logger.Debug("WebSocket client connected", slog.String("remote", conn.RemoteAddr().String()))

	// Reader goroutine: drains client frames and detects disconnect.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.remove(conn)
				return
			}
		}
	}()

	for event := range events {
		if err := conn.WriteJSON(event); err != nil {
			h.remove(conn)
			return
		}
	}
	conn.Close()
}

// BroadcastRecord pushes one finalized sentence to all connected clients.
// Matches the session manager's RecordHandler signature.
func (h *Hub) BroadcastRecord(sessionID string, index int, record sentence.Record) {
	event := RecordEvent{
		SessionID: sessionID,
		Index:     index,
		Record:    record,
		Timestamp: time.Now().UTC(),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for conn, events := range h.clients {
		select {
		case events <- event:
		default:
			// Client cannot keep up. Drop it.
			delete(h.clients, conn)
			close(events)
			conn.Close()
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects all clients and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true

	for conn, events := range h.clients {
		delete(h.clients, conn)
		close(events)
		conn.Close()
	}
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if events, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		close(events)
	}
	conn.Close()
}
