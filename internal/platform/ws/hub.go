// Package ws maintains the registry of connected websocket viewers and
// fans referral lifecycle events out to all of them. Delivery is
// at-most-once and best-effort: a viewer that is not connected when an
// event fires never receives it, and a connection that fails mid-broadcast
// is dropped without aborting delivery to the rest.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ers/ers/internal/platform/notify"
)

// Conn abstracts a websocket connection for testability.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client is a single connected viewer.
type Client struct {
	ID   string
	conn Conn
}

// Hub is the shared connection registry. One exclusive lock guards both
// mutation (register/unregister) and iteration (broadcast) so the registry
// is never modified while being walked.
type Hub struct {
	mu      sync.Mutex
	clients map[*Client]struct{}
	logger  zerolog.Logger
}

// NewHub creates an empty Hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

// Register adds a client to the registry.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = struct{}{}
}

// Unregister removes a client from the registry and closes its connection.
// Removing an unknown client is a no-op.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remove(client)
}

// remove must be called with h.mu held.
func (h *Hub) remove(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	_ = client.conn.Close()
}

// ClientCount returns the number of connected viewers.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast implements notify.Broadcaster. It writes the event to every
// connection registered at the moment of the call; connections that error
// on write are unregistered and the broadcast continues. Broadcasting to
// zero connections succeeds with no effect.
func (h *Hub) Broadcast(_ context.Context, event notify.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		if werr := client.conn.WriteMessage(gorillawebsocket.TextMessage, data); werr != nil {
			h.logger.Warn().
				Str("client_id", client.ID).
				Err(werr).
				Msg("dropping websocket client after failed send")
			h.remove(client)
		}
	}
	return nil
}

var upgrader = gorillawebsocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins; tighten in production.
	},
}

// Handler upgrades HTTP connections and ties their lifetime to the Hub.
type Handler struct {
	hub *Hub
}

// NewHandler creates a Handler bound to the given Hub.
func NewHandler(hub *Hub) *Handler {
	return &Handler{hub: hub}
}

// RegisterRoutes registers the websocket endpoint.
func (wh *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws", wh.HandleConnect)
}

// HandleConnect upgrades the connection, registers the client, and blocks
// reading until the peer goes away. Inbound messages are drained and
// ignored; the channel is push-only.
func (wh *Handler) HandleConnect(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := &Client{
		ID:   uuid.New().String(),
		conn: &gorillaConnAdapter{conn},
	}
	wh.hub.Register(client)

	go wh.readLoop(client)
	return nil
}

func (wh *Handler) readLoop(client *Client) {
	defer wh.hub.Unregister(client)
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// gorillaConnAdapter wraps a gorilla/websocket.Conn to satisfy Conn.
type gorillaConnAdapter struct {
	conn *gorillawebsocket.Conn
}

func (a *gorillaConnAdapter) ReadMessage() (int, []byte, error) {
	return a.conn.ReadMessage()
}

func (a *gorillaConnAdapter) WriteMessage(messageType int, data []byte) error {
	return a.conn.WriteMessage(messageType, data)
}

func (a *gorillaConnAdapter) Close() error {
	return a.conn.Close()
}
