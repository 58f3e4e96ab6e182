package notify

import (
	"log"
	"net/http"
	"sync"

	"dcr-backend/internal/timeutil"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The SPA is served from a different origin in development
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub fans notifications out to connected websocket clients and mirrors them
// to the log. Clients that fail a write are dropped.
type Hub struct {
	clients    map[*websocket.Conn]bool
	clientsMux sync.Mutex
	broadcast  chan Notification
	done       chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan Notification, 64),
		done:      make(chan struct{}),
	}
}

// Start runs the broadcast loop in the background.
func (h *Hub) Start() {
	go func() {
		for {
			select {
			case n := <-h.broadcast:
				h.send(n)
			case <-h.done:
				return
			}
		}
	}()
}

// Stop terminates the broadcast loop and closes all client connections.
func (h *Hub) Stop() {
	close(h.done)
	h.clientsMux.Lock()
	defer h.clientsMux.Unlock()
	for conn := range h.clients {
		conn.Close()
		delete(h.clients, conn)
	}
}

func (h *Hub) Notify(project, title, reason string) {
	LogNotifier{}.Notify(project, title, reason)

	n := Notification{
		Title:     title,
		Reason:    reason,
		Project:   project,
		Timestamp: timeutil.Now(),
	}
	select {
	case h.broadcast <- n:
	default:
		// No reader draining the channel; the log line above already has it
	}
}

func (h *Hub) send(n Notification) {
	h.clientsMux.Lock()
	defer h.clientsMux.Unlock()
	for conn := range h.clients {
		if err := conn.WriteJSON(n); err != nil {
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

// ServeWS upgrades the connection and registers the client for notifications.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Notify] Websocket upgrade failed: %v", err)
		return
	}

	h.clientsMux.Lock()
	h.clients[conn] = true
	h.clientsMux.Unlock()

	// Drain and discard client messages; drop the client on read error
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.clientsMux.Lock()
				conn.Close()
				delete(h.clients, conn)
				h.clientsMux.Unlock()
				return
			}
		}
	}()
}
