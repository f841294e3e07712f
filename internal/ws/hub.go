package ws

import (
	"encoding/json"
	"sync"
)

// Event types broadcast on table activity feeds.
const (
	EventOrderSaved    = "order.saved"
	EventSessionOpened = "session.opened"
)

// Event is a message broadcast to the terminals watching a table.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// tableEvent routes an event to one table's room.
type tableEvent struct {
	Table string
	Event Event
}

// Hub maintains the active terminal connections grouped by table name and
// fans events out to them. One room per table.
type Hub struct {
	rooms map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *tableEvent

	mu sync.RWMutex
}

// NewHub creates a new Hub instance.
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *tableEvent, 256),
	}
}

// Run starts the hub's main loop.
// This should be called as a goroutine: go hub.Run()
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.table] == nil {
				h.rooms[client.table] = make(map[*Client]bool)
			}
			h.rooms[client.table][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.rooms[client.table]; ok {
				if _, exists := clients[client]; exists {
					delete(clients, client)
					close(client.send)
					if len(clients) == 0 {
						delete(h.rooms, client.table)
					}
				}
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			h.mu.Lock()
			clients := h.rooms[event.Table]

			message, err := json.Marshal(event.Event)
			if err != nil {
				h.mu.Unlock()
				continue
			}

			for client := range clients {
				select {
				case client.send <- message:
				default:
					// Send buffer full: drop the connection.
					close(client.send)
					delete(h.rooms[event.Table], client)
					if len(h.rooms[event.Table]) == 0 {
						delete(h.rooms, event.Table)
					}
				}
			}
			h.mu.Unlock()
		}
	}
}

// BroadcastToTable sends an event to every terminal watching a table.
func (h *Hub) BroadcastToTable(table string, event Event) {
	h.broadcast <- &tableEvent{Table: table, Event: event}
}
