package session

import (
	"github.com/mcdev12/focusnest/go/internal/models"
)

// CreateSessionRequest represents a request to open a new paired session.
// ID is optional; the app generates one when empty.
type CreateSessionRequest struct {
	ID              string `json:"id,omitempty"`
	CreatorID       string `json:"creator"`
	Task            string `json:"task"`
	DurationMinutes int    `json:"duration"`
}

// GetSessionRequest represents a lookup by id.
type GetSessionRequest struct {
	SessionID string `json:"session_id"`
}

// JoinSessionRequest represents the friend taking the second seat.
type JoinSessionRequest struct {
	SessionID  string `json:"session_id"`
	FriendID   string `json:"friend_id"`
	FriendTask string `json:"friend_task,omitempty"`
}

// StartSessionRequest represents the creator starting the shared countdown.
type StartSessionRequest struct {
	SessionID string `json:"session_id"`
	CreatorID string `json:"creator_id"`
}

// ReportStatusRequest represents a participant reporting away/focused.
type ReportStatusRequest struct {
	SessionID     string                   `json:"session_id"`
	ParticipantID string                   `json:"participant_id"`
	Status        models.ParticipantStatus `json:"status"`
}

// CompleteSessionRequest represents an observer seeing the countdown reach zero.
// ParticipantID is empty when the server scheduler completes the session.
type CompleteSessionRequest struct {
	SessionID     string `json:"session_id"`
	ParticipantID string `json:"participant_id,omitempty"`
}

// SessionResponse wraps the record returned by every session RPC.
type SessionResponse struct {
	Session *models.Session `json:"session"`
}

// CreateSessionResponse carries the shareable link alongside the new record.
type CreateSessionResponse struct {
	Session  *models.Session `json:"session"`
	DeepLink string          `json:"deep_link"`
}
