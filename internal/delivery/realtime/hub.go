// Package realtime pushes active queue snapshots to browsers over sockjs.
package realtime

import (
	"sync"
)

const clientBuffer = 16

type Client struct {
	ID   string
	Send chan []byte
}

// Hub fans snapshots out to connected clients. Every payload is a full
// snapshot, so a slow client only ever needs the newest one.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	last    []byte
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]*Client)}
}

// Register adds c and queues the latest snapshot for it.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.ID] = c
	if h.last != nil {
		offer(c, h.last)
	}
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.ID]; !ok {
		return
	}
	delete(h.clients, c.ID)
	close(c.Send)
}

func (h *Hub) Broadcast(payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = payload
	for _, c := range h.clients {
		offer(c, payload)
	}
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// offer enqueues payload, evicting the oldest pending one when full.
func offer(c *Client, payload []byte) {
	for {
		select {
		case c.Send <- payload:
			return
		default:
		}
		select {
		case <-c.Send:
		default:
		}
	}
}
