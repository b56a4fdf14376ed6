// Package websocket pushes alert events and status changes to connected
// browser clients over authenticated websocket connections.
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"github.com/fuomag9/webstatus/internal/monitor"
)

// Message is the envelope for everything sent over the wire.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Client is one connected websocket peer.
type Client struct {
	id   string
	conn *websocket.Conn
	hub  *Hub
	send chan []byte
}

// Hub maintains the set of connected clients and fans broadcast messages
// out to all of them.
type Hub struct {
	clients        map[*Client]bool
	broadcast      chan []byte
	register       chan *Client
	unregister     chan *Client
	mu             sync.RWMutex
	jwtSecret      string
	allowedOrigins []string
	log            zerolog.Logger
}

// NewHub creates a Hub.
func NewHub(jwtSecret string, allowedOrigins []string, log zerolog.Logger) *Hub {
	return &Hub{
		clients:        make(map[*Client]bool),
		broadcast:      make(chan []byte, 256),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		jwtSecret:      jwtSecret,
		allowedOrigins: allowedOrigins,
		log:            log.With().Str("component", "websocket").Logger(),
	}
}

// Run processes register/unregister/broadcast traffic until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
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
			h.log.Debug().Str("client", client.id).Msg("websocket client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.log.Debug().Str("client", client.id).Msg("websocket client disconnected")
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow consumer: drop it rather than stall the hub.
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast pushes an alert-state transition to every connected client.
func (h *Hub) Broadcast(ev monitor.Event) {
	h.Send("alert_event", ev)
}

// Send marshals a typed payload and queues it for every connected client.
// Messages are dropped when the broadcast buffer is full.
func (h *Hub) Send(msgType string, payload any) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		h.log.Error().Err(err).Str("type", msgType).Msg("failed to marshal websocket payload")
		return
	}
	msgJSON, err := json.Marshal(Message{Type: msgType, Payload: payloadJSON})
	if err != nil {
		h.log.Error().Err(err).Str("type", msgType).Msg("failed to marshal websocket message")
		return
	}

	select {
	case h.broadcast <- msgJSON:
	default:
		h.log.Warn().Str("type", msgType).Msg("websocket broadcast buffer full, dropping message")
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWebSocket upgrades an authenticated HTTP request to a websocket
// connection. The JWT is taken from the token query parameter or the
// Authorization header.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		if authHeader := r.Header.Get("Authorization"); authHeader != "" {
			token = strings.TrimPrefix(authHeader, "Bearer ")
		}
	}

	username, err := h.authenticate(token)
	if err != nil {
		h.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket connection rejected")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	origins := h.allowedOrigins
	if len(origins) == 0 {
		origins = []string{"localhost:*"}
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: origins,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &Client{
		id:   "user:" + username + "@" + r.RemoteAddr,
		conn: conn,
		hub:  h,
		send: make(chan []byte, 256),
	}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

func (h *Hub) authenticate(token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("missing token")
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		if t.Method.Alg() != "HS256" {
			return nil, fmt.Errorf("unexpected signing algorithm: %v", t.Method.Alg())
		}
		return []byte(h.jwtSecret), nil
	})
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}
	if !parsed.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid token claims")
	}
	username, _ := claims["sub"].(string)
	if username == "" {
		return "", fmt.Errorf("token missing subject")
	}
	return username, nil
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	ctx := context.Background()
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure &&
				status != websocket.StatusGoingAway &&
				status != websocket.StatusNoStatusRcvd {
				c.hub.log.Debug().Err(err).Str("client", c.id).Msg("websocket read error")
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.hub.log.Debug().Err(err).Str("client", c.id).Msg("unparseable websocket message")
			continue
		}
		c.handleMessage(msg)
	}
}

func (c *Client) writePump() {
	ctx := context.Background()
	for message := range c.send {
		if err := c.conn.Write(ctx, websocket.MessageText, message); err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure &&
				status != websocket.StatusGoingAway &&
				status != websocket.StatusNoStatusRcvd {
				c.hub.log.Debug().Err(err).Str("client", c.id).Msg("websocket write error")
			}
			return
		}
	}
}

func (c *Client) handleMessage(msg Message) {
	switch msg.Type {
	case "ping":
		response, _ := json.Marshal(Message{Type: "pong", Payload: json.RawMessage(`{}`)})
		select {
		case c.send <- response:
		default:
		}
	default:
		c.hub.log.Debug().Str("client", c.id).Str("type", msg.Type).Msg("unknown websocket message type")
	}
}
