package api

import (
	"encoding/json"
	"net/http"
	"sync"

	"betfair_go/internal/service"

	"github.com/gorilla/websocket"
)

// Hub manages websocket connections subscribed to parse progress.
// subs maps a file id to the set of subscribed clients; the empty id
// subscribes to every file.
type Hub struct {
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	subs     map[string]map[*client]struct{}
}

// client wraps one connection with a write lock. gorilla/websocket
// allows only a single concurrent writer per connection, and Publish
// runs on every upload's request goroutine.
type client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *client) send(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// NewHub creates a Hub with a caller-supplied origin policy.
func NewHub(allowOrigin func(r *http.Request) bool) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{CheckOrigin: allowOrigin},
		subs:     make(map[string]map[*client]struct{}),
	}
}

type clientMsg struct {
	Type   string `json:"type"` // subscribe, unsubscribe, ping
	FileID string `json:"file_id"`
}

// HandleWS upgrades the connection and serves subscribe/unsubscribe
// requests until the client disconnects.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	c := &client{conn: conn}

	for {
		var msg clientMsg
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		switch msg.Type {
		case "subscribe":
			h.mu.Lock()
			if _, ok := h.subs[msg.FileID]; !ok {
				h.subs[msg.FileID] = make(map[*client]struct{})
			}
			h.subs[msg.FileID][c] = struct{}{}
			h.mu.Unlock()
		case "unsubscribe":
			h.mu.Lock()
			if m, ok := h.subs[msg.FileID]; ok {
				delete(m, c)
				if len(m) == 0 {
					delete(h.subs, msg.FileID)
				}
			}
			h.mu.Unlock()
		case "ping":
			pong, _ := json.Marshal(map[string]string{"type": "pong"})
			_ = c.send(pong)
		}
	}

	h.mu.Lock()
	for id, set := range h.subs {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, id)
		}
	}
	h.mu.Unlock()
}

// Publish sends a progress update to every subscriber of the file and
// to wildcard subscribers. It implements service.ProgressSink and is
// safe to call from concurrent parses.
func (h *Hub) Publish(update service.ProgressUpdate) {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.subs[update.FileID])+len(h.subs[""]))
	for c := range h.subs[update.FileID] {
		clients = append(clients, c)
	}
	for c := range h.subs[""] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	if len(clients) == 0 {
		return
	}

	b, _ := json.Marshal(update)
	for _, c := range clients {
		_ = c.send(b)
	}
}
