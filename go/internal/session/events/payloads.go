package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/focusnest/go/internal/models"
)

// EventType represents the kind of change applied to a session record.
type EventType string

const (
	EventTypeSessionCreated           EventType = "SessionCreated"
	EventTypeFriendJoined             EventType = "FriendJoined"
	EventTypeSessionStarted           EventType = "SessionStarted"
	EventTypeParticipantStatusChanged EventType = "ParticipantStatusChanged"
	EventTypeSessionCompleted         EventType = "SessionCompleted"
	EventTypeSessionExpired           EventType = "SessionExpired"

	// EventTypeSnapshot marks the current record handed to a new subscriber.
	// It is synthesized on the subscriber side and never published.
	EventTypeSnapshot EventType = "Snapshot"
)

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	switch t {
	case EventTypeSessionCreated, EventTypeFriendJoined, EventTypeSessionStarted,
		EventTypeParticipantStatusChanged, EventTypeSessionCompleted, EventTypeSessionExpired:
		return true
	default:
		return false
	}
}

// SessionEvent is the change notification delivered to every subscriber.
// Session always carries the full record after the change.
type SessionEvent struct {
	ID        uuid.UUID       `json:"id"`
	SessionID string          `json:"session_id"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Session   *models.Session `json:"session"`
}

// NewSessionEvent builds an event stamped with the server time at.
func NewSessionEvent(eventType EventType, session *models.Session, at time.Time) SessionEvent {
	return SessionEvent{
		ID:        uuid.New(),
		SessionID: session.ID,
		Type:      eventType,
		Timestamp: at,
		Session:   session.Clone(),
	}
}

// NewExpiredEvent builds the tombstone event for a deleted waiting session.
func NewExpiredEvent(sessionID string, at time.Time) SessionEvent {
	return SessionEvent{
		ID:        uuid.New(),
		SessionID: sessionID,
		Type:      EventTypeSessionExpired,
		Timestamp: at,
	}
}

// Marshal encodes the event for a transport.
func (e SessionEvent) Marshal() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal session event: %w", err)
	}
	return data, nil
}

// Unmarshal decodes an event received from a transport and checks its envelope.
func Unmarshal(data []byte) (SessionEvent, error) {
	var e SessionEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return SessionEvent{}, fmt.Errorf("unmarshal session event: %w", err)
	}
	if e.SessionID == "" {
		return SessionEvent{}, fmt.Errorf("session event %s has no session id", e.ID)
	}
	if !e.Type.Valid() {
		return SessionEvent{}, fmt.Errorf("unknown event type: %s", e.Type)
	}
	return e, nil
}

// Subject returns the message bus subject for a session's events.
func Subject(prefix, sessionID string) string {
	return fmt.Sprintf("%s.%s", prefix, sessionID)
}
