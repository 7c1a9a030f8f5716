// Package ws exposes the event hub over a websocket endpoint. Each
// connection is one hub subscriber; a connection that stops reading
// falls behind its hub buffer and is closed.
package ws

import (
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/robertarktes/seat-holds-and-sales/internal/domain"
	"github.com/robertarktes/seat-holds-and-sales/internal/events"
	"github.com/robertarktes/seat-holds-and-sales/internal/observability"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The seat map page is served from a different origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type seatEventFrame struct {
	Event   string                 `json:"event"`
	Payload domain.SeatStateChanged `json:"payload"`
}

type Handler struct {
	hub    *events.Hub
	logger observability.Logger
}

func NewHandler(hub *events.Hub, logger observability.Logger) *Handler {
	return &Handler{hub: hub, logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	subscriberID := r.URL.Query().Get("subscriber_id")
	if subscriberID == "" {
		subscriberID = uuid.New().String()
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("websocket upgrade failed")
		return
	}

	c := &client{
		conn:   conn,
		logger: h.logger.WithField("subscriber_id", subscriberID),
	}
	if err := c.writeJSON(map[string]string{"event": "connected", "subscriber_id": subscriberID}); err != nil {
		conn.Close()
		return
	}
	c.run(h.hub)
}

type client struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	logger observability.Logger
}

// writeJSON serializes writes across the forwarding goroutine and the
// pong replies from the read loop.
func (c *client) writeJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *client) writeText(msg string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, []byte(msg))
}

func (c *client) run(hub *events.Hub) {
	ch, cancel := hub.Subscribe()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for change := range ch {
			if err := c.writeJSON(seatEventFrame{Event: "seat_state_changed", Payload: change}); err != nil {
				c.conn.Close()
				return
			}
		}
		// The channel closed: either the read loop unsubscribed or the
		// hub dropped a subscriber that fell behind. Closing the
		// connection ends the read loop too.
		c.conn.Close()
	}()

	for {
		kind, msg, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		if kind == websocket.TextMessage && string(msg) == "ping" {
			if err := c.writeText("pong"); err != nil {
				break
			}
		}
	}

	cancel()
	<-writerDone
	c.logger.Debug("websocket closed")
}
