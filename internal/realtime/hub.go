package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat, in seconds.
	PingInterval = 30
	PongWait     = 60
)

// ReadMarker persists read receipts.
type ReadMarker interface {
	MarkMessageRead(ctx context.Context, userID, messageID uuid.UUID) error
	MarkNotificationRead(ctx context.Context, userID, notificationID uuid.UUID) error
}

// Hub maintains user_id -> set of connections, and one sync Session per connected user.
type Hub struct {
	// userID -> map[clientID]*Client
	users    map[uuid.UUID]map[string]*Client
	sessions map[uuid.UUID]*Session
	mu       sync.RWMutex

	deps   SessionDeps
	cfg    SessionConfig
	reads  ReadMarker
	logger *zap.Logger
}

// NewHub creates a new WebSocket hub.
func NewHub(deps SessionDeps, cfg SessionConfig, reads ReadMarker, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Logger == nil {
		deps.Logger = logger
	}
	return &Hub{
		users:    make(map[uuid.UUID]map[string]*Client),
		sessions: make(map[uuid.UUID]*Session),
		deps:     deps,
		cfg:      cfg,
		reads:    reads,
		logger:   logger,
	}
}

// Register adds a client. The user's first client starts their Session.
func (h *Hub) Register(ctx context.Context, c *Client) error {
	h.mu.Lock()
	if h.users[c.UserID] == nil {
		h.users[c.UserID] = make(map[string]*Client)
	}
	h.users[c.UserID][c.ID] = c
	existing := h.sessions[c.UserID]
	h.mu.Unlock()

	h.logger.Debug("client connected", zap.String("client_id", c.ID), zap.String("user_id", c.UserID.String()))
	if existing != nil {
		c.enqueue(encode(EventCounters, existing.Counters()))
		return nil
	}

	// Started outside the lock: the session pushes through SendToUser during startup.
	userID := c.UserID
	sess, err := StartSession(ctx, userID, h.deps, h.cfg,
		func(event string, payload any) { h.SendToUser(userID, event, payload) },
		h.disconnectUser)
	if err != nil {
		h.mu.Lock()
		h.removeLocked(c)
		h.mu.Unlock()
		return err
	}

	h.mu.Lock()
	winner, raced := h.sessions[userID]
	orphaned := len(h.users[userID]) == 0
	if !raced && !orphaned {
		h.sessions[userID] = sess
	}
	h.mu.Unlock()

	if raced || orphaned {
		sess.Close()
		if raced {
			c.enqueue(encode(EventCounters, winner.Counters()))
		}
	}
	return nil
}

// Unregister removes a client. The user's last client closes their Session.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	sess := h.removeLocked(c)
	h.mu.Unlock()
	if sess != nil {
		sess.Close()
	}
	c.closeSend()
	h.logger.Debug("client disconnected", zap.String("client_id", c.ID), zap.String("user_id", c.UserID.String()))
}

// removeLocked drops c and returns the session to close if c was the user's last client.
func (h *Hub) removeLocked(c *Client) *Session {
	clients, ok := h.users[c.UserID]
	if !ok {
		return nil
	}
	delete(clients, c.ID)
	if len(clients) > 0 {
		return nil
	}
	delete(h.users, c.UserID)
	sess := h.sessions[c.UserID]
	delete(h.sessions, c.UserID)
	return sess
}

// disconnectUser drops every client of userID; their write pumps flush and close the sockets.
func (h *Hub) disconnectUser(userID uuid.UUID) {
	h.mu.Lock()
	clients := h.users[userID]
	delete(h.users, userID)
	delete(h.sessions, userID)
	h.mu.Unlock()
	for _, c := range clients {
		c.closeSend()
	}
	h.logger.Info("user disconnected", zap.String("user_id", userID.String()), zap.Int("clients", len(clients)))
}

func encode(event string, payload any) WSMessage {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		data, _ = json.Marshal(payload)
	}
	return WSMessage{Event: event, Data: data}
}

// SendToUser sends a message to every connection of a user on this instance.
func (h *Hub) SendToUser(userID uuid.UUID, event string, payload any) {
	msg := encode(event, payload)
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.users[userID] {
		c.enqueue(msg)
	}
}

// ConnectedClients returns the number of connections a user has on this instance.
func (h *Hub) ConnectedClients(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID])
}

func (h *Hub) session(userID uuid.UUID) *Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sessions[userID]
}

// MarkMessageRead updates the user's counters optimistically, then persists. A failed write
// reverts the optimistic update.
func (h *Hub) MarkMessageRead(ctx context.Context, userID, messageID uuid.UUID) error {
	sess := h.session(userID)
	optimistic := sess != nil && sess.MarkMessageRead(messageID)
	if h.reads == nil {
		return nil
	}
	if err := h.reads.MarkMessageRead(ctx, userID, messageID); err != nil {
		if optimistic {
			sess.RevertMessageRead(messageID)
		}
		return err
	}
	return nil
}

// MarkNotificationRead is MarkMessageRead for notifications.
func (h *Hub) MarkNotificationRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	sess := h.session(userID)
	optimistic := sess != nil && sess.MarkNotificationRead(notificationID)
	if h.reads == nil {
		return nil
	}
	if err := h.reads.MarkNotificationRead(ctx, userID, notificationID); err != nil {
		if optimistic {
			sess.RevertNotificationRead(notificationID)
		}
		return err
	}
	return nil
}

// Close ends every session and drops every client.
func (h *Hub) Close() {
	h.mu.Lock()
	sessions := h.sessions
	users := h.users
	h.sessions = make(map[uuid.UUID]*Session)
	h.users = make(map[uuid.UUID]map[string]*Client)
	h.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}
	for _, clients := range users {
		for _, c := range clients {
			c.closeSend()
		}
	}
}

// Forward relays bus payloads on topic to the clients of the user route picks, until ctx is done.
// The subscription is in place when Forward returns.
func (h *Hub) Forward(ctx context.Context, bus *Bus, topic string, route func(payload any) (uuid.UUID, bool)) {
	ch, unsub := bus.Subscribe(topic, 64)
	go func() {
		defer unsub()
		for {
			select {
			case <-ctx.Done():
				return
			case p, ok := <-ch:
				if !ok {
					return
				}
				if userID, ok := route(p); ok {
					h.SendToUser(userID, topic, p)
				}
			}
		}
	}()
}

// CheckInRoute routes CheckInStatus payloads to their user.
func CheckInRoute(payload any) (uuid.UUID, bool) {
	st, ok := payload.(CheckInStatus)
	return st.UserID, ok
}
