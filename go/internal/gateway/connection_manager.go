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
	"github.com/mcdev12/focusnest/go/internal/metrics"
	"github.com/mcdev12/focusnest/go/internal/models"
	"github.com/mcdev12/focusnest/go/internal/session"
	"github.com/mcdev12/focusnest/go/internal/session/events"
	"github.com/rs/zerolog/log"
)

// SessionSource is what the gateway needs from the session application
type SessionSource interface {
	GetSession(ctx context.Context, id string) (*models.Session, error)
	ReportStatus(ctx context.Context, req session.ReportStatusRequest) (*models.Session, error)
	Subscribe(ctx context.Context, sessionID string, fn func(events.SessionEvent)) (func(), error)
}

// ConnectionManager manages WebSocket connections for session observers
type ConnectionManager struct {
	source SessionSource

	// Connection pools organized by session ID
	sessionConnections map[string]map[*Connection]bool
	// One hub subscription per session with at least one connection
	subscriptions map[string]func()
	mu            sync.RWMutex

	// Upgrader for WebSocket connections
	upgrader websocket.Upgrader

	config  ConnectionConfig
	metrics metrics.Collector

	// Event broadcasting
	broadcastCh chan events.SessionEvent
}

// Connection represents a WebSocket connection to a client
type Connection struct {
	ID            string
	ParticipantID string
	SessionID     string
	Conn          *websocket.Conn
	Send          chan []byte
	Manager       *ConnectionManager

	// Connection metadata
	ConnectedAt time.Time
	LastPing    time.Time
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	ReportTimeout   time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		ReportTimeout:   5 * time.Second,
		MaxMessageSize:  1024, // 1KB max message size
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  64,
		CheckOrigin: func(r *http.Request) bool {
			// Mobile clients do not send a browser origin
			return true
		},
	}
}

// NewConnectionManager creates a new WebSocket connection manager
func NewConnectionManager(source SessionSource, config ConnectionConfig, collector metrics.Collector) *ConnectionManager {
	if collector == nil {
		collector = metrics.NoOpCollector{}
	}
	return &ConnectionManager{
		source:             source,
		sessionConnections: make(map[string]map[*Connection]bool),
		subscriptions:      make(map[string]func()),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		metrics:     collector,
		broadcastCh: make(chan events.SessionEvent, 1000),
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
		case event := <-cm.broadcastCh:
			cm.handleBroadcast(event)
		}
	}
}

// UpgradeConnection upgrades an HTTP connection to WebSocket and sends the
// current snapshot before any change event.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, participantID, sessionID string) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:            uuid.New().String(),
		ParticipantID: participantID,
		SessionID:     sessionID,
		Conn:          conn,
		Send:          make(chan []byte, cm.config.SendBufferSize),
		Manager:       cm,
		ConnectedAt:   time.Now(),
		LastPing:      time.Now(),
	}

	if err := cm.registerConnection(r.Context(), connection); err != nil {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "session unavailable"))
		conn.Close()
		return err
	}
	cm.metrics.ConnectionOpened()

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("participant_id", participantID).
		Str("session_id", sessionID).
		Msg("WebSocket connection established")

	return nil
}

// registerConnection adds a connection, subscribes to the session on the
// first connection, and queues the snapshot. Broadcasts wait on the write
// lock, so no change event can be queued ahead of the snapshot.
func (cm *ConnectionManager) registerConnection(ctx context.Context, conn *Connection) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if _, subscribed := cm.subscriptions[conn.SessionID]; !subscribed {
		unsubscribe, err := cm.source.Subscribe(ctx, conn.SessionID, cm.enqueue)
		if err != nil {
			return fmt.Errorf("failed to subscribe to session: %w", err)
		}
		cm.subscriptions[conn.SessionID] = unsubscribe
	}

	snapshot, err := cm.source.GetSession(ctx, conn.SessionID)
	if err != nil {
		cm.releaseIfIdleLocked(conn.SessionID)
		return fmt.Errorf("failed to load session snapshot: %w", err)
	}
	data, err := json.Marshal(SnapshotFrame(snapshot, time.Now()))
	if err != nil {
		cm.releaseIfIdleLocked(conn.SessionID)
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	conn.Send <- data

	if cm.sessionConnections[conn.SessionID] == nil {
		cm.sessionConnections[conn.SessionID] = make(map[*Connection]bool)
	}
	cm.sessionConnections[conn.SessionID][conn] = true

	log.Debug().
		Str("connection_id", conn.ID).
		Str("session_id", conn.SessionID).
		Int("total_connections", len(cm.sessionConnections[conn.SessionID])).
		Msg("connection registered")
	return nil
}

// unregisterConnection removes a connection from the manager
func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	connections, exists := cm.sessionConnections[conn.SessionID]
	if !exists {
		return
	}
	if _, exists := connections[conn]; !exists {
		return
	}

	delete(connections, conn)
	close(conn.Send)
	cm.metrics.ConnectionClosed()
	if len(connections) == 0 {
		delete(cm.sessionConnections, conn.SessionID)
	}
	cm.releaseIfIdleLocked(conn.SessionID)

	log.Info().
		Str("connection_id", conn.ID).
		Str("participant_id", conn.ParticipantID).
		Str("session_id", conn.SessionID).
		Msg("connection unregistered")
}

// releaseIfIdleLocked drops the hub subscription once no connection for the
// session remains. Caller holds cm.mu.
func (cm *ConnectionManager) releaseIfIdleLocked(sessionID string) {
	if len(cm.sessionConnections[sessionID]) > 0 {
		return
	}
	if unsubscribe, ok := cm.subscriptions[sessionID]; ok {
		unsubscribe()
		delete(cm.subscriptions, sessionID)
		log.Debug().Str("session_id", sessionID).Msg("released session subscription")
	}
}

// enqueue is the hub listener; it must not block the publisher.
func (cm *ConnectionManager) enqueue(event events.SessionEvent) {
	select {
	case cm.broadcastCh <- event:
	default:
		log.Warn().Str("session_id", event.SessionID).Msg("broadcast channel full, dropping message")
	}
}

// handleBroadcast processes a broadcast message
func (cm *ConnectionManager) handleBroadcast(event events.SessionEvent) {
	cm.mu.RLock()
	connections, exists := cm.sessionConnections[event.SessionID]
	if !exists {
		cm.mu.RUnlock()
		return
	}

	// Create a snapshot of connections to avoid holding lock during broadcast
	targetConnections := make([]*Connection, 0, len(connections))
	for conn := range connections {
		targetConnections = append(targetConnections, conn)
	}

	eventData, err := json.Marshal(EventFrame(event))
	if err != nil {
		cm.mu.RUnlock()
		log.Error().Err(err).Msg("failed to marshal event for broadcast")
		return
	}

	var slow []*Connection
	for _, conn := range targetConnections {
		select {
		case conn.Send <- eventData:
		default:
			slow = append(slow, conn)
		}
	}
	cm.mu.RUnlock()

	// Connection is slow/dead, close it
	for _, conn := range slow {
		log.Warn().
			Str("connection_id", conn.ID).
			Str("participant_id", conn.ParticipantID).
			Msg("connection send buffer full, closing connection")
		cm.unregisterConnection(conn)
		conn.Conn.Close()
	}

	log.Debug().
		Str("event_type", string(event.Type)).
		Str("session_id", event.SessionID).
		Int("connections", len(targetConnections)).
		Msg("event broadcasted")
}

// closeAll drops every connection and subscription on shutdown
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
		cm.unregisterConnection(conn)
	}
}

// ConnectionStats describes the live connection pools
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
		c.Manager.unregisterConnection(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				// Channel was closed
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
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		c.LastPing = time.Now()
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			break
		}

		c.handleClientMessage(message)
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}

// handleClientMessage applies status frames as fire-and-forget reports.
// The outcome reaches every observer through the normal event path.
func (c *Connection) handleClientMessage(message []byte) {
	msg, err := ParseClientMessage(message)
	if err != nil {
		log.Debug().
			Err(err).
			Str("connection_id", c.ID).
			Msg("ignoring client message")
		return
	}
	if c.ParticipantID == "" {
		log.Debug().Str("connection_id", c.ID).Msg("status report from anonymous observer ignored")
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.Manager.config.ReportTimeout)
		defer cancel()

		_, err := c.Manager.source.ReportStatus(ctx, session.ReportStatusRequest{
			SessionID:     c.SessionID,
			ParticipantID: c.ParticipantID,
			Status:        msg.Status,
		})
		if err != nil {
			log.Warn().
				Err(err).
				Str("connection_id", c.ID).
				Str("session_id", c.SessionID).
				Str("status", string(msg.Status)).
				Msg("status report failed")
		}
	}()
}
