package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"freight-erp/internal/permission"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 256
)

// Authenticator resolves a token to the live profile of its user
type Authenticator interface {
	ParseToken(token string) (userID, role string, err error)
}

type ProfileLoader interface {
	GetProfile(ctx context.Context, userID string) (*permission.Profile, error)
}

// Event is the JSON frame pushed to clients
type Event struct {
	Type      string                 `json:"type"`
	Data      map[string]interface{} `json:"data"`
	Timestamp string                 `json:"timestamp"`
}

// eventFeature is the feature a client needs to receive events with that prefix
var eventFeature = map[string]string{
	"invoice.": permission.FeatureInvoicesView,
	"payment.": permission.FeatureInvoicesView,
	"pjo.":     permission.FeaturePJOView,
}

// Client represents a single connected WebSocket client
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	profile *permission.Profile
}

type message struct {
	eventType string
	payload   []byte
}

// Hub maintains the set of active clients and fans events out to them
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan message
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
	log        zerolog.Logger
	upgrader   websocket.Upgrader
	now        func() time.Time
}

// NewHub initializes a new WS Hub instance. An empty allowedOrigins accepts every origin.
func NewHub(allowedOrigins []string, log zerolog.Logger) *Hub {
	h := &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan message, sendBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		log:        log.With().Str("component", "websocket").Logger(),
		now:        time.Now,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if len(allowedOrigins) == 0 || origin == "" {
				return true
			}
			for _, o := range allowedOrigins {
				if o == "*" || o == origin {
					return true
				}
			}
			return false
		},
	}
	return h
}

// Run is the dispatch loop. It returns when ctx is cancelled and closes every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.log.Debug().Str("user_id", client.profile.UserID).Msg("client connected")
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.log.Debug().Str("user_id", client.profile.UserID).Msg("client disconnected")
			}
			h.mu.Unlock()
		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if !client.wants(msg.eventType) {
					continue
				}
				select {
				case client.send <- msg.payload:
				default:
					// slow consumer
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Publish queues an event for every client allowed to see it. It never blocks the caller;
// events are dropped when the queue is full.
func (h *Hub) Publish(event string, data map[string]interface{}) {
	payload, err := json.Marshal(Event{Type: event, Data: data, Timestamp: h.now().UTC().Format(time.RFC3339)})
	if err != nil {
		h.log.Error().Err(err).Str("event", event).Msg("failed to encode event")
		return
	}
	select {
	case h.broadcast <- message{eventType: event, payload: payload}:
	default:
		h.log.Warn().Str("event", event).Msg("event queue full, dropping event")
	}
}

// ClientCount is the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (c *Client) wants(eventType string) bool {
	for prefix, feature := range eventFeature {
		if strings.HasPrefix(eventType, prefix) {
			return permission.CanAccessFeature(c.profile, feature)
		}
	}
	return false
}

// writePump handles writing messages from the Hub to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only keeps the connection alive; clients do not send commands
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warn().Err(err).Msg("unexpected websocket close")
			}
			return
		}
	}
}

// ServeWs authenticates the token query param and upgrades the connection. The live
// profile decides which events the client receives.
func (h *Hub) ServeWs(c *gin.Context, auth Authenticator, profiles ProfileLoader) {
	tokenString := c.Query("token")
	if tokenString == "" {
		h.log.Debug().Msg("connection rejected: missing token")
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	userID, _, err := auth.ParseToken(tokenString)
	if err != nil {
		h.log.Debug().Err(err).Msg("connection rejected: invalid token")
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	profile, err := profiles.GetProfile(c.Request.Context(), userID)
	if err != nil || profile == nil || !profile.IsActive {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	if !permission.IsKnownRole(string(profile.Role)) {
		h.log.Warn().Str("user_id", userID).Str("role", string(profile.Role)).Msg("connection rejected: unknown role")
		c.AbortWithStatus(http.StatusForbidden)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	client := &Client{hub: h, conn: conn, send: make(chan []byte, sendBuffer), profile: profile}
	select {
	case h.register <- client:
	case <-h.done:
		_ = conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
