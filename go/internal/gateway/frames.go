package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mcdev12/focusnest/go/internal/models"
	"github.com/mcdev12/focusnest/go/internal/session/events"
)

// FrameType represents the kind of server-to-client websocket frame
type FrameType string

const (
	// FrameTypeSnapshot is always the first frame on a new connection.
	FrameTypeSnapshot FrameType = "snapshot"
	// FrameTypeEvent carries one session change.
	FrameTypeEvent FrameType = "event"
)

// Frame is the JSON envelope written to websocket clients. Session holds the
// full record after the change; it is nil only for SessionExpired.
type Frame struct {
	Type      FrameType        `json:"type"`
	SessionID string           `json:"session_id"`
	EventID   string           `json:"event_id,omitempty"`
	EventType events.EventType `json:"event_type,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Session   *models.Session  `json:"session,omitempty"`
}

// SnapshotFrame wraps the current record sent when a connection opens.
func SnapshotFrame(s *models.Session, at time.Time) Frame {
	return Frame{
		Type:      FrameTypeSnapshot,
		SessionID: s.ID,
		Timestamp: at,
		Session:   s,
	}
}

// EventFrame wraps a session change event.
func EventFrame(ev events.SessionEvent) Frame {
	return Frame{
		Type:      FrameTypeEvent,
		SessionID: ev.SessionID,
		EventID:   ev.ID.String(),
		EventType: ev.Type,
		Timestamp: ev.Timestamp,
		Session:   ev.Session,
	}
}

// ClientMessageType represents the kind of client-to-server frame
type ClientMessageType string

const (
	// ClientMessageStatus reports the sender's own away/focused status.
	ClientMessageStatus ClientMessageType = "status"
)

// ClientMessage is the JSON frame a participant may send on its connection.
type ClientMessage struct {
	Type   ClientMessageType        `json:"type"`
	Status models.ParticipantStatus `json:"status,omitempty"`
}

// ParseClientMessage decodes and validates a client frame.
func ParseClientMessage(data []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, fmt.Errorf("failed to decode client message: %w", err)
	}
	switch msg.Type {
	case ClientMessageStatus:
		if msg.Status != models.ParticipantStatusAway && msg.Status != models.ParticipantStatusFocused {
			return msg, fmt.Errorf("unsupported status %q", msg.Status)
		}
	default:
		return msg, fmt.Errorf("unsupported client message type %q", msg.Type)
	}
	return msg, nil
}
