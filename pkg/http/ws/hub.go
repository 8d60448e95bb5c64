package ws

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Hub tracks WebSocket connections and session membership. Connections are
// keyed by a per-socket ID, not the user, so several tabs of the same player
// can be attached at once; the protocol's idempotence guards make that safe.
type Hub struct {
	mu          sync.RWMutex
	connections map[uuid.UUID]*Connection            // conn_id -> connection
	sessions    map[uuid.UUID]map[uuid.UUID]struct{} // session_id -> conn_ids
	logger      zerolog.Logger
}

// NewHub creates a new WebSocket hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		connections: make(map[uuid.UUID]*Connection),
		sessions:    make(map[uuid.UUID]map[uuid.UUID]struct{}),
		logger:      logger.With().Str("component", "ws_hub").Logger(),
	}
}

// Register adds a connection and returns its hub ID.
func (h *Hub) Register(conn *Connection) uuid.UUID {
	id := uuid.New()

	h.mu.Lock()
	h.connections[id] = conn
	h.mu.Unlock()

	h.logger.Info().Str("conn_id", id.String()).Msg("connection registered")
	return id
}

// Unregister closes and forgets a connection, removing it from any session.
func (h *Hub) Unregister(connID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conn, exists := h.connections[connID]; exists {
		conn.Close()
		delete(h.connections, connID)
	}
	for sessionID, members := range h.sessions {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.sessions, sessionID)
		}
	}
}

// JoinSession subscribes a connection to a session's fan-out.
func (h *Hub) JoinSession(sessionID, connID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.sessions[sessionID] == nil {
		h.sessions[sessionID] = make(map[uuid.UUID]struct{})
	}
	h.sessions[sessionID][connID] = struct{}{}
}

// LeaveSession removes a connection from a session's fan-out.
func (h *Hub) LeaveSession(sessionID, connID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.sessions[sessionID], connID)
}

// BroadcastToSession sends a message to every connection in the session.
// Delivery is best-effort; send failures are logged, not returned.
func (h *Hub) BroadcastToSession(sessionID uuid.UUID, msg Message) {
	h.mu.RLock()
	targets := make([]*Connection, 0, len(h.sessions[sessionID]))
	for connID := range h.sessions[sessionID] {
		if conn, ok := h.connections[connID]; ok {
			targets = append(targets, conn)
		}
	}
	h.mu.RUnlock()

	for _, conn := range targets {
		if err := conn.Send(msg); err != nil {
			h.logger.Warn().Err(err).Str("session_id", sessionID.String()).Msg("session broadcast send failed")
		}
	}
}

// Send delivers a message to one connection.
func (h *Hub) Send(connID uuid.UUID, msg Message) error {
	h.mu.RLock()
	conn, exists := h.connections[connID]
	h.mu.RUnlock()

	if !exists {
		return ErrConnectionNotFound
	}
	return conn.Send(msg)
}

// Connection represents a WebSocket connection with a buffered send queue.
type Connection struct {
	conn   *websocket.Conn
	sendCh chan Message
	mu     sync.Mutex
	closed bool
	logger zerolog.Logger
}

// NewConnection wraps a WebSocket connection.
func NewConnection(conn *websocket.Conn, logger zerolog.Logger) *Connection {
	return &Connection{
		conn:   conn,
		sendCh: make(chan Message, 256),
		logger: logger,
	}
}

// Send queues a message for delivery.
func (c *Connection) Send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrConnectionClosed
	}

	select {
	case c.sendCh <- msg:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Close shuts down the connection.
func (c *Connection) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.closed = true
	close(c.sendCh)
	c.conn.Close()
}

// WritePump drains the send queue onto the socket.
func (c *Connection) WritePump() {
	defer c.conn.Close()

	for msg := range c.sendCh {
		if err := c.conn.WriteJSON(msg); err != nil {
			c.logger.Warn().Err(err).Msg("write error")
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// ReadPump receives messages and calls the handler until the socket closes.
func (c *Connection) ReadPump(handler func(Message) error) {
	defer c.conn.Close()

	readDeadline := time.Now().Add(60 * time.Second)
	c.conn.SetReadDeadline(readDeadline)
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn().Err(err).Msg("read error")
			}
			break
		}

		if err := handler(msg); err != nil {
			c.logger.Warn().Err(err).Msg("message handler error")
		}
	}
}

var (
	ErrConnectionNotFound = &Error{Code: "connection_not_found", Message: "Connection not found"}
	ErrConnectionClosed   = &Error{Code: "connection_closed", Message: "Connection is closed"}
	ErrSendQueueFull      = &Error{Code: "send_queue_full", Message: "Send queue is full"}
)

type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}
