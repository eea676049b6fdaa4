package ws

import (
	"encoding/json"
	"sync/atomic"
)

// Envelope is the wire format for every frame crossing the socket, in
// both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Hub owns the set of live connections, keyed by connection id.
// Register on connect and unregister on disconnect are the only
// mutators; the run loop is the sole goroutine touching the map.
type Hub struct {
	clients    map[uint64]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	nextID     atomic.Uint64
	online     atomic.Int32
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[uint64]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.clients[c.id] = c
			h.online.Store(int32(len(h.clients)))
		case c := <-h.unregister:
			if _, ok := h.clients[c.id]; ok {
				delete(h.clients, c.id)
				close(c.send)
				h.online.Store(int32(len(h.clients)))
			}
		case msg := <-h.broadcast:
			for id, c := range h.clients {
				select {
				case c.send <- msg:
				default:
					close(c.send)
					delete(h.clients, id)
					h.online.Store(int32(len(h.clients)))
				}
			}
		}
	}
}

// Broadcast fans an event out to every connected client. There is no
// per-room or per-recipient filtering.
func (h *Hub) Broadcast(event string, data interface{}) {
	raw, err := json.Marshal(data)
	if err != nil {
		return
	}
	b, err := json.Marshal(Envelope{Event: event, Data: raw})
	if err != nil {
		return
	}
	h.broadcast <- b
}

// Online returns the current connection count.
func (h *Hub) Online() int { return int(h.online.Load()) }
