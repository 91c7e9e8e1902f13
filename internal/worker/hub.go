package worker

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"github.com/Pamacea/claude-mem/internal/protocol"
)

const maxSlowCount = 3 // disconnect after this many consecutive failed sends

// wsClient represents one connected dashboard.
type wsClient struct {
	conn      *websocket.Conn
	send      chan []byte
	slowCount int
}

// wsHub fans worker events out to connected WebSocket clients. Slow clients
// are dropped rather than allowed to stall the broadcast loop.
type wsHub struct {
	clients    map[*wsClient]bool
	broadcast  chan []byte
	register   chan *wsClient
	unregister chan *wsClient
	done       <-chan struct{}
	mu         sync.RWMutex
	log        zerolog.Logger
}

func newWSHub(log zerolog.Logger, done <-chan struct{}) *wsHub {
	return &wsHub{
		clients:    make(map[*wsClient]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		done:       done,
		log:        log,
	}
}

func (h *wsHub) run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			var toRemove []*wsClient
			for client := range h.clients {
				select {
				case client.send <- message:
					client.slowCount = 0
				default:
					client.slowCount++
					if client.slowCount >= maxSlowCount {
						h.log.Warn().Int("missed", client.slowCount).Msg("websocket client too slow, disconnecting")
						toRemove = append(toRemove, client)
					}
				}
			}
			for _, client := range toRemove {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()

		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return
		}
	}
}

// registerClient hands a client to the run loop. It reports false when the
// hub is shutting down and nothing will service the registration.
func (h *wsHub) registerClient(client *wsClient) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// unregisterClient must never block once the run loop has exited, or the
// HTTP handler it is deferred in would hang the server's graceful shutdown.
func (h *wsHub) unregisterClient(client *wsClient) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast pushes one event to every connected client. It never blocks:
// when the hub's buffer is full the event is dropped, which is acceptable
// for a notification stream the dashboard re-polls anyway.
func (h *wsHub) Broadcast(event protocol.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.log.Debug().Str("type", event.Type).Msg("event dropped, broadcast buffer full")
	}
}

func (h *wsHub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// handleWS upgrades the request and pumps events until the client leaves.
func (h *wsHub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // local loopback only
	})
	if err != nil {
		h.log.Debug().Err(err).Msg("websocket accept failed")
		return
	}

	client := &wsClient{conn: conn, send: make(chan []byte, 64)}
	if !h.registerClient(client) {
		conn.Close(websocket.StatusGoingAway, "shutting down")
		return
	}

	defer func() {
		h.unregisterClient(client)
		conn.Close(websocket.StatusNormalClosure, "")
	}()

	for msg := range client.send {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		err := conn.Write(ctx, websocket.MessageText, msg)
		cancel()
		if err != nil {
			return
		}
	}
}
