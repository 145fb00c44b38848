package models

import "time"

// SessionStatus defines the lifecycle status of a paired session.
type SessionStatus string

const (
	SessionStatusWaiting  SessionStatus = "waiting"
	SessionStatusActive   SessionStatus = "active"
	SessionStatusComplete SessionStatus = "complete"
)

// rank orders statuses so transitions can be checked for regressions.
func (s SessionStatus) rank() int {
	switch s {
	case SessionStatusWaiting:
		return 0
	case SessionStatusActive:
		return 1
	case SessionStatusComplete:
		return 2
	default:
		return -1
	}
}

// Valid reports whether s is a known status.
func (s SessionStatus) Valid() bool {
	return s.rank() >= 0
}

// Before reports whether s comes strictly earlier in the lifecycle than other.
func (s SessionStatus) Before(other SessionStatus) bool {
	return s.rank() < other.rank()
}

// ParticipantStatus is the liveness/focus state of one side of a session.
type ParticipantStatus string

const (
	ParticipantStatusWaiting ParticipantStatus = "waiting"
	ParticipantStatusFocused ParticipantStatus = "focused"
	ParticipantStatusAway    ParticipantStatus = "away"
)

// Valid reports whether s is a known participant status.
func (s ParticipantStatus) Valid() bool {
	switch s {
	case ParticipantStatusWaiting, ParticipantStatusFocused, ParticipantStatusAway:
		return true
	default:
		return false
	}
}

// Role is one of the two fixed seats in a session.
type Role string

const (
	RoleCreator Role = "creator"
	RoleFriend  Role = "friend"
)

// Session is the shared record both participants coordinate through.
// Creator-owned fields: Status (to active), StartTime, CreatorStatus, CreatorViolations.
// Friend-owned fields: FriendID, FriendTask, FriendStatus, FriendViolations.
// Status may be set to complete by either side.
type Session struct {
	ID                string            `json:"id"`
	CreatorID         string            `json:"creator"`
	Task              string            `json:"task"`
	DurationMinutes   int               `json:"duration"`
	Status            SessionStatus     `json:"status"`
	CreatedAt         time.Time         `json:"createdAt"`
	StartTime         *time.Time        `json:"startTime,omitempty"`
	CompletedAt       *time.Time        `json:"completedAt,omitempty"`
	CreatorStatus     ParticipantStatus `json:"creatorStatus"`
	FriendStatus      ParticipantStatus `json:"friendStatus"`
	FriendID          *string           `json:"friendId,omitempty"`
	FriendTask        *string           `json:"friendTask,omitempty"`
	CreatorViolations int               `json:"creatorViolations"`
	FriendViolations  int               `json:"friendViolations"`
	UpdatedAt         time.Time         `json:"updatedAt"`
}

// EndTime returns the instant the countdown reaches zero, or nil before start.
func (s *Session) EndTime() *time.Time {
	if s.StartTime == nil {
		return nil
	}
	end := s.StartTime.Add(time.Duration(s.DurationMinutes) * time.Minute)
	return &end
}

// FriendJoined reports whether a friend has taken the second seat.
func (s *Session) FriendJoined() bool {
	return s.FriendID != nil
}

// RoleOf returns the role held by participantID, if any.
func (s *Session) RoleOf(participantID string) (Role, bool) {
	switch {
	case participantID == "":
		return "", false
	case participantID == s.CreatorID:
		return RoleCreator, true
	case s.FriendID != nil && participantID == *s.FriendID:
		return RoleFriend, true
	default:
		return "", false
	}
}

// StatusOf returns the participant status field owned by role.
func (s *Session) StatusOf(role Role) ParticipantStatus {
	if role == RoleCreator {
		return s.CreatorStatus
	}
	return s.FriendStatus
}

// ViolationsOf returns the violation counter owned by role.
func (s *Session) ViolationsOf(role Role) int {
	if role == RoleCreator {
		return s.CreatorViolations
	}
	return s.FriendViolations
}

// Clone returns a deep copy so callers can hand snapshots across goroutines.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	if s.StartTime != nil {
		t := *s.StartTime
		c.StartTime = &t
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		c.CompletedAt = &t
	}
	if s.FriendID != nil {
		v := *s.FriendID
		c.FriendID = &v
	}
	if s.FriendTask != nil {
		v := *s.FriendTask
		c.FriendTask = &v
	}
	return &c
}
