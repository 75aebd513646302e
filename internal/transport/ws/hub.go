// Package ws bridges the Redis fan-out channels to websocket subscribers.
// Clients attach to their own user channel (admins additionally to the shared
// admins channel); channel membership auth happens upstream of this service.
package ws

import (
	"context"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"fleet-track/internal/fanout"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

type Hub struct {
	redis *redis.Client

	mu      sync.Mutex
	clients map[*websocket.Conn]map[string]bool // conn -> subscribed channels
}

func NewHub(client *redis.Client) *Hub {
	return &Hub{
		redis:   client,
		clients: make(map[*websocket.Conn]map[string]bool),
	}
}

// Run subscribes to the fan-out channels and forwards every message to the
// websocket clients joined to that channel. Blocks until the context ends.
func (h *Hub) Run(ctx context.Context) {
	sub := h.redis.PSubscribe(ctx, "user:*", fanout.AdminChannel)
	defer sub.Close()

	for {
		select {
		case msg, ok := <-sub.Channel():
			if !ok {
				return
			}
			h.broadcast(msg.Channel, []byte(msg.Payload))
		case <-ctx.Done():
			return
		}
	}
}

// HandleWS upgrades the request and registers the client for its channels.
// Query parameters: user=<id>, admin=1 to also join the admins channel.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	channels := map[string]bool{}
	if user := r.URL.Query().Get("user"); user != "" {
		channels["user:"+user] = true
	}
	if r.URL.Query().Get("admin") == "1" {
		channels[fanout.AdminChannel] = true
	}

	h.mu.Lock()
	h.clients[conn] = channels
	h.mu.Unlock()

	go func() {
		defer func() {
			h.mu.Lock()
			delete(h.clients, conn)
			h.mu.Unlock()
			if err := conn.Close(); err != nil {
				log.Printf("[WS] close: %v", err)
			}
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

func (h *Hub) broadcast(channel string, payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, channels := range h.clients {
		if !channels[channel] {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Printf("[WS] write failed, dropping client: %v", err)
			conn.Close()
			delete(h.clients, conn)
		}
	}
}
