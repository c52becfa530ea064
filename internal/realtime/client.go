package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/bebusy/backend/internal/auth"
)

// Inbound client events.
const (
	EventMarkMessageRead      = "mark_message_read"
	EventMarkNotificationRead = "mark_notification_read"
	EventSync                 = "sync"
	EventError                = "error"
)

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Client represents a single WebSocket connection of a user.
type Client struct {
	ID     string
	UserID uuid.UUID
	hub    *Hub
	conn   *websocket.Conn
	send   chan WSMessage
	logger *zap.Logger

	mu     sync.Mutex
	closed bool
}

func newClient(hub *Hub, userID uuid.UUID, conn *websocket.Conn, logger *zap.Logger) *Client {
	return &Client{
		ID:     uuid.New().String(),
		UserID: userID,
		hub:    hub,
		conn:   conn,
		send:   make(chan WSMessage, 256),
		logger: logger,
	}
}

// enqueue drops the message if the client is closed or its buffer is full.
func (c *Client) enqueue(msg WSMessage) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		c.logger.Warn("client send buffer full; dropping message",
			zap.String("client_id", c.ID), zap.String("event", msg.Event))
		return false
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func newUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowAll := len(allowedOrigins) == 0 || slices.Contains(allowedOrigins, "*")
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return allowAll || origin == "" || slices.Contains(allowedOrigins, origin)
		},
	}
}

// ServeWs authenticates the token query parameter, upgrades the connection and runs the client
// loop. Banned users are refused before the upgrade.
func ServeWs(hub *Hub, resolver auth.IdentityResolver, tokenUserID func(token string) (uuid.UUID, error),
	allowedOrigins []string, logger *zap.Logger) gin.HandlerFunc {
	upgrader := newUpgrader(allowedOrigins)
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "token required"})
			return
		}
		userID, err := tokenUserID(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		ident, err := resolver.Resolve(c.Request.Context(), userID)
		if err != nil {
			if errors.Is(err, auth.ErrUnauthenticated) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "profile not found"})
				return
			}
			logger.Error("resolve identity for websocket", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		if ident.IsBanned() {
			c.JSON(http.StatusForbidden, gin.H{"error": "account is banned"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := newClient(hub, userID, conn, logger)
		if err := hub.Register(c.Request.Context(), client); err != nil {
			logger.Error("start sync session", zap.String("user_id", userID.String()), zap.Error(err))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "sync unavailable"))
			_ = conn.Close()
			return
		}
		logger.Debug("websocket connected", zap.String("user_id", userID.String()),
			zap.Int("user_connections", hub.ConnectedClients(userID)))
		go client.writePump()
		client.readPump(c.Request.Context())
	}
}

type readPayload struct {
	ID uuid.UUID `json:"id"`
}

func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(65536)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		return nil
	})

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			break
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		c.handle(ctx, msg)
	}
}

func (c *Client) handle(ctx context.Context, msg WSMessage) {
	switch msg.Event {
	case EventMarkMessageRead, EventMarkNotificationRead:
		var p readPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil || p.ID == uuid.Nil {
			c.enqueue(encode(EventError, gin.H{"event": msg.Event, "error": "id required"}))
			return
		}
		var err error
		if msg.Event == EventMarkMessageRead {
			err = c.hub.MarkMessageRead(ctx, c.UserID, p.ID)
		} else {
			err = c.hub.MarkNotificationRead(ctx, c.UserID, p.ID)
		}
		if err != nil {
			c.logger.Warn("persist read receipt", zap.String("event", msg.Event), zap.Error(err))
			c.enqueue(encode(EventError, gin.H{"event": msg.Event, "id": p.ID, "error": "could not mark as read"}))
		}
	case EventSync:
		if sess := c.hub.session(c.UserID); sess != nil {
			c.enqueue(encode(EventCounters, sess.Counters()))
		}
	default:
		// ignore
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
