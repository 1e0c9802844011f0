// Package feed streams published notification events to websocket clients,
// one channel per flight, for ops dashboards watching a disruption unfold.
package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/cx-tal-miterani/flightpulse/internal/bus"
	"github.com/cx-tal-miterani/flightpulse/internal/models"
	"github.com/cx-tal-miterani/flightpulse/pkg/logger"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Message is one feed entry: a notification published for a flight.
type Message struct {
	Channel     string `json:"channel"` // email or sms
	FlightID    string `json:"flight_id"`
	PassengerID string `json:"passenger_id"`
	Summary     string `json:"summary"`
	Timestamp   int64  `json:"timestamp"`
}

// Client is one websocket connection scoped to a flight.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	flightID string
}

// Hub fans notification events out to websocket clients per flight.
type Hub struct {
	clients    map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan *Message
	log        logger.Logger
	mu         sync.RWMutex
}

// NewHub creates a Hub.
func NewHub(log logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Message, 256),
		log:        log,
	}
}

// AttachBus subscribes the hub to outbound notification events.
func (h *Hub) AttachBus(b *bus.Bus) {
	b.Subscribe(models.DetailNotificationEmail, func(ctx context.Context, evt bus.Event) {
		h.Broadcast(feedMessage("email", evt))
	})
	b.Subscribe(models.DetailNotificationSMS, func(ctx context.Context, evt bus.Event) {
		h.Broadcast(feedMessage("sms", evt))
	})
}

func feedMessage(channel string, evt bus.Event) *Message {
	flightID, _ := evt.Detail["flight_id"].(string)
	passengerID, _ := evt.Detail["passenger_id"].(string)
	summary, _ := evt.Detail["subject"].(string)
	if summary == "" {
		summary, _ = evt.Detail["message"].(string)
	}
	return &Message{
		Channel:     channel,
		FlightID:    flightID,
		PassengerID: passengerID,
		Summary:     summary,
		Timestamp:   evt.Time.Unix(),
	}
}

// Broadcast queues a message for every client watching its flight.
func (h *Hub) Broadcast(msg *Message) {
	select {
	case h.broadcast <- msg:
	default:
		h.log.Warn("feed broadcast queue full, dropping message", "flightId", msg.FlightID)
	}
}

// Run drives registration and broadcast until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.flightID] == nil {
				h.clients[client.flightID] = make(map[*Client]bool)
			}
			h.clients[client.flightID][client] = true
			h.mu.Unlock()
			h.log.Debug("feed client registered", "flightId", client.flightID)

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.flightID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.send)
					if len(clients) == 0 {
						delete(h.clients, client.flightID)
					}
				}
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			data, err := json.Marshal(msg)
			if err != nil {
				h.log.Error("failed to marshal feed message", "error", err)
				continue
			}
			h.mu.RLock()
			for client := range h.clients[msg.FlightID] {
				select {
				case client.send <- data:
				default:
					// Slow client; it will be dropped on next write failure.
				}
			}
			h.mu.RUnlock()

		case <-ctx.Done():
			return
		}
	}
}

// HandleWebSocket upgrades GET /api/flights/{flightId}/feed.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	flightID := mux.Vars(r)["flightId"]
	if flightID == "" {
		http.Error(w, "flight id required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, 64),
		flightID: flightID,
	}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
