package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // inbox UI is served from another origin
	},
}

const (
	EventNewMessage          = "new_message"
	EventConversationUpdated = "conversation_updated"
)

type Event struct {
	Type           string `json:"type"`
	OwnerID        string `json:"owner_id"`
	ConnectionID   string `json:"connection_id"`
	ConversationID string `json:"conversation_id,omitempty"`
	Data           any    `json:"data"`
}

// Subscription selects which events a client receives. Empty fields match everything.
type Subscription struct {
	OwnerID      string
	ConnectionID string
}

func (s Subscription) matches(e Event) bool {
	return (s.OwnerID == "" || s.OwnerID == e.OwnerID) &&
		(s.ConnectionID == "" || s.ConnectionID == e.ConnectionID)
}

// Client is one inbox browser tab.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	sub  Subscription
	send chan []byte
}

type delivery struct {
	event   Event
	payload []byte
}

// Hub fans conversation events out to the inbox clients subscribed to their tenant.
type Hub struct {
	clients    map[*Client]struct{}
	broadcast  chan delivery
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.Mutex
	log        *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		broadcast:  make(chan delivery, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]struct{}),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run serves registrations and broadcasts until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for client := range h.clients {
				h.drop(client)
			}
			h.mu.Unlock()
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			h.mu.Unlock()
			h.log.Debug("websocket client registered", "owner_id", client.sub.OwnerID, "connection_id", client.sub.ConnectionID)
		case client := <-h.unregister:
			h.mu.Lock()
			h.drop(client)
			h.mu.Unlock()
		case d := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if !client.sub.matches(d.event) {
					continue
				}
				select {
				case client.send <- d.payload:
				default:
					h.log.Warn("websocket client too slow, disconnecting", "owner_id", client.sub.OwnerID)
					h.drop(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// drop must be called with mu held.
func (h *Hub) drop(client *Client) {
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
}

// Publish queues an event for its subscribers. Events are dropped when the queue is full so a
// slow inbox never stalls message ingestion.
func (h *Hub) Publish(event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.log.Error("error marshaling websocket event", "type", event.Type, "error", err)
		return
	}
	select {
	case h.broadcast <- delivery{event: event, payload: payload}:
	default:
		h.log.Warn("websocket event dropped", "type", event.Type, "conversation_id", event.ConversationID)
	}
}

// ServeWs upgrades the request. The owner_id and connection_id query parameters scope the stream.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	sub := Subscription{
		OwnerID:      r.URL.Query().Get("owner_id"),
		ConnectionID: r.URL.Query().Get("connection_id"),
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade error", "error", err)
		return
	}
	client := &Client{hub: h, conn: conn, sub: sub, send: make(chan []byte, 256)}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	for {
		// Clients only send pings; anything read is discarded.
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for payload := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// Clients reports how many inbox clients are connected.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
