package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/engagements/go/internal/game/events"
)

// ConnectionManager manages WebSocket connections for session notifications
type ConnectionManager struct {
	// Connection pools organized by session ID
	sessionConnections map[string]map[*Connection]bool
	mu                 sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig

	broadcastCh chan BroadcastMessage
}

// Connection represents a WebSocket connection to a host or participant
type Connection struct {
	ID              string
	SessionID       string
	ParticipantName string
	Host            bool
	Conn            *websocket.Conn
	Send            chan []byte
	Manager         *ConnectionManager

	ConnectedAt time.Time
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// BroadcastMessage represents a message to broadcast to connections
type BroadcastMessage struct {
	SessionID string
	Message   events.Message
	// Skip, if set, is not sent the message.
	Skip *Connection
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// NewConnectionManager creates a new WebSocket connection manager
func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	return &ConnectionManager{
		sessionConnections: make(map[string]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan BroadcastMessage, 1000),
	}
}

// Start begins processing broadcast messages
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			cm.closeAll()
			return
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
		}
	}
}

// UpgradeConnection upgrades an HTTP connection to WebSocket and sends the initial
// state sync so the client loads everything from the store.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, sessionID, participantName string, host bool) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:              uuid.New().String(),
		SessionID:       sessionID,
		ParticipantName: participantName,
		Host:            host,
		Conn:            conn,
		Send:            make(chan []byte, 256),
		Manager:         cm,
		ConnectedAt:     time.Now(),
	}

	initial, err := events.NewMessage(events.TypeInitialStateSync, events.Notification{SessionID: sessionID}).Encode()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to encode initial sync: %w", err)
	}
	connection.Send <- initial

	cm.registerConnection(connection)

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("session_id", sessionID).
		Str("participant", participantName).
		Bool("host", host).
		Msg("WebSocket connection established")

	if connection.presence() {
		cm.broadcast(BroadcastMessage{
			SessionID: sessionID,
			Message:   events.NewMessage(events.TypeParticipantJoined, events.Notification{SessionID: sessionID, ParticipantName: participantName}),
			Skip:      connection,
		})
	}
	return nil
}

// presence reports whether joins and leaves of this connection are announced.
func (c *Connection) presence() bool {
	return !c.Host && c.ParticipantName != ""
}

func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.sessionConnections[conn.SessionID] == nil {
		cm.sessionConnections[conn.SessionID] = make(map[*Connection]bool)
	}
	cm.sessionConnections[conn.SessionID][conn] = true

	log.Debug().
		Str("connection_id", conn.ID).
		Str("session_id", conn.SessionID).
		Int("total_connections", len(cm.sessionConnections[conn.SessionID])).
		Msg("connection registered")
}

// unregisterConnection removes a connection and reports whether it was registered.
func (cm *ConnectionManager) unregisterConnection(conn *Connection) bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	connections, exists := cm.sessionConnections[conn.SessionID]
	if !exists || !connections[conn] {
		return false
	}
	delete(connections, conn)
	close(conn.Send)
	if len(connections) == 0 {
		delete(cm.sessionConnections, conn.SessionID)
	}

	log.Info().
		Str("connection_id", conn.ID).
		Str("session_id", conn.SessionID).
		Str("participant", conn.ParticipantName).
		Msg("connection unregistered")
	return true
}

// disconnect unregisters conn and announces the leave once.
func (cm *ConnectionManager) disconnect(conn *Connection) {
	if !cm.unregisterConnection(conn) || !conn.presence() {
		return
	}
	cm.broadcast(BroadcastMessage{
		SessionID: conn.SessionID,
		Message:   events.NewMessage(events.TypeParticipantLeft, events.Notification{SessionID: conn.SessionID, ParticipantName: conn.ParticipantName}),
	})
}

func (cm *ConnectionManager) closeAll() {
	cm.mu.RLock()
	var all []*Connection
	for _, connections := range cm.sessionConnections {
		for conn := range connections {
			all = append(all, conn)
		}
	}
	cm.mu.RUnlock()

	for _, conn := range all {
		if cm.unregisterConnection(conn) {
			conn.Conn.Close()
		}
	}
}

// BroadcastToSession sends a message to all connections of a session
func (cm *ConnectionManager) BroadcastToSession(sessionID string, message events.Message) {
	cm.broadcast(BroadcastMessage{SessionID: sessionID, Message: message})
}

func (cm *ConnectionManager) broadcast(message BroadcastMessage) {
	select {
	case cm.broadcastCh <- message:
	default:
		log.Warn().Str("session_id", message.SessionID).Msg("broadcast channel full, dropping message")
	}
}

func (cm *ConnectionManager) handleBroadcast(message BroadcastMessage) {
	cm.mu.RLock()
	connections, exists := cm.sessionConnections[message.SessionID]
	if !exists {
		cm.mu.RUnlock()
		return
	}
	targets := make([]*Connection, 0, len(connections))
	for conn := range connections {
		if conn != message.Skip {
			targets = append(targets, conn)
		}
	}
	cm.mu.RUnlock()

	data, err := message.Message.Encode()
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal message for broadcast")
		return
	}

	var slow []*Connection
	cm.mu.RLock()
	for _, conn := range targets {
		if !connections[conn] {
			continue
		}
		select {
		case conn.Send <- data:
		default:
			slow = append(slow, conn)
		}
	}
	cm.mu.RUnlock()

	for _, conn := range slow {
		log.Warn().
			Str("connection_id", conn.ID).
			Str("session_id", conn.SessionID).
			Msg("connection send buffer full, closing connection")
		cm.disconnect(conn)
		conn.Conn.Close()
	}

	log.Debug().
		Str("message_type", string(message.Message.Type)).
		Str("session_id", message.SessionID).
		Int("connections", len(targets)).
		Msg("message broadcasted")
}

// ConnectionStats summarizes active connections.
type ConnectionStats struct {
	TotalConnections   int            `json:"total_connections"`
	ActiveSessions     int            `json:"active_sessions"`
	SessionConnections map[string]int `json:"session_connections"`
}

// GetConnectionStats returns statistics about active connections
func (cm *ConnectionManager) GetConnectionStats() ConnectionStats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	stats := ConnectionStats{
		ActiveSessions:     len(cm.sessionConnections),
		SessionConnections: make(map[string]int, len(cm.sessionConnections)),
	}
	for sessionID, connections := range cm.sessionConnections {
		stats.TotalConnections += len(connections)
		stats.SessionConnections[sessionID] = len(connections)
	}
	return stats
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.disconnect(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump handles reading messages from the WebSocket connection
func (c *Connection) readPump() {
	defer func() {
		c.Manager.disconnect(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			return
		}

		c.handleClientMessage(message)
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}

// handleClientMessage logs client actions. The store is the only write path, so actions
// never change session state here.
func (c *Connection) handleClientMessage(message []byte) {
	var action events.Action
	if err := json.Unmarshal(message, &action); err != nil {
		log.Warn().
			Err(err).
			Str("connection_id", c.ID).
			Msg("ignoring malformed client message")
		return
	}
	log.Debug().
		Str("connection_id", c.ID).
		Str("session_id", c.SessionID).
		Str("action", action.Action).
		Str("participant", action.ParticipantName).
		Msg("received client message")
}
