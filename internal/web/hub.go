package web

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/edocrave99/LightSignalDetector/internal/logger"
)

// writeWait bounds each broadcast write so one stalled client cannot hold
// the hub loop indefinitely.
const writeWait = 10 * time.Second

// Hub fans state-transition documents out to websocket clients. A slow
// client is dropped rather than ever blocking the broadcast path.
type Hub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mu         sync.RWMutex
}

// NewHub creates an idle hub; call Run to start it.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, 8),
		register:   make(chan *websocket.Conn, 8),
		unregister: make(chan *websocket.Conn, 8),
	}
}

// Run processes hub events until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				_ = client.Close()
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			logger.Debug("Hub", "State client connected (total: %d)", total)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				_ = client.Close()
			}
			total := len(h.clients)
			h.mu.Unlock()
			logger.Debug("Hub", "State client disconnected (total: %d)", total)

		case message := <-h.broadcast:
			// Writes happen on a snapshot, outside the lock: a stalled
			// client must not block ClientCount or registration.
			h.mu.RLock()
			conns := make([]*websocket.Conn, 0, len(h.clients))
			for client := range h.clients {
				conns = append(conns, client)
			}
			h.mu.RUnlock()

			for _, client := range conns {
				_ = client.SetWriteDeadline(time.Now().Add(writeWait))
				if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
					logger.Debug("Hub", "Dropping state client: %v", err)
					h.mu.Lock()
					if _, ok := h.clients[client]; ok {
						delete(h.clients, client)
						_ = client.Close()
					}
					h.mu.Unlock()
				}
			}
		}
	}
}

// Broadcast queues a message for all clients; it never blocks the caller.
func (h *Hub) Broadcast(message []byte) {
	select {
	case h.broadcast <- message:
	default:
		// Hub busy; state documents are snapshots, a later one supersedes this.
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// No auth anywhere on this surface; the state feed is as open as the
	// upload endpoint.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleStateWS upgrades the connection and registers it with the hub. The
// read pump only exists to observe the close.
func (s *Server) handleStateWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("Hub", "Websocket upgrade failed: %v", err)
		return
	}

	s.opts.Hub.register <- conn

	go func() {
		defer func() { s.opts.Hub.unregister <- conn }()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
