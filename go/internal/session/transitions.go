package session

import (
	"fmt"
	"time"

	"github.com/mcdev12/focusnest/go/internal/models"
)

// MutateFunc applies one transition to a locked record.
// It reports whether the record changed; unchanged records are not written back.
type MutateFunc func(s *models.Session) (bool, error)

// validateStatusTransition validates if a status transition is allowed
func validateStatusTransition(current, next models.SessionStatus) error {
	allowedTransitions := map[models.SessionStatus][]models.SessionStatus{
		models.SessionStatusWaiting:  {models.SessionStatusActive},
		models.SessionStatusActive:   {models.SessionStatusComplete},
		models.SessionStatusComplete: {}, // terminal
	}

	allowedNext, exists := allowedTransitions[current]
	if !exists {
		return fmt.Errorf("%w: unknown current status %s", ErrInvalidTransition, current)
	}
	for _, allowed := range allowedNext {
		if next == allowed {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, next)
}

// newSession builds the initial record for a create trigger.
func newSession(id string, req CreateSessionRequest, now time.Time) *models.Session {
	return &models.Session{
		ID:              id,
		CreatorID:       req.CreatorID,
		Task:            req.Task,
		DurationMinutes: req.DurationMinutes,
		Status:          models.SessionStatusWaiting,
		CreatedAt:       now,
		CreatorStatus:   models.ParticipantStatusFocused,
		FriendStatus:    models.ParticipantStatusWaiting,
		UpdatedAt:       now,
	}
}

// applyJoin seats the friend. Re-joining with the same friend id is a no-op.
func applyJoin(req JoinSessionRequest, now time.Time) MutateFunc {
	return func(s *models.Session) (bool, error) {
		if req.FriendID == s.CreatorID {
			return false, fmt.Errorf("%w: creator cannot join their own session", ErrInvalidArgument)
		}
		if s.FriendID != nil {
			if *s.FriendID == req.FriendID {
				return false, nil
			}
			return false, ErrSessionFull
		}
		if s.Status != models.SessionStatusWaiting {
			return false, fmt.Errorf("%w: cannot join a session that is %s", ErrInvalidTransition, s.Status)
		}

		friendID := req.FriendID
		s.FriendID = &friendID
		if req.FriendTask != "" {
			task := req.FriendTask
			s.FriendTask = &task
		}
		s.FriendStatus = models.ParticipantStatusFocused
		s.UpdatedAt = now
		return true, nil
	}
}

// applyStart moves waiting to active and stamps the authoritative start instant.
func applyStart(req StartSessionRequest, now time.Time) MutateFunc {
	return func(s *models.Session) (bool, error) {
		if req.CreatorID != s.CreatorID {
			return false, ErrNotCreator
		}
		if err := validateStatusTransition(s.Status, models.SessionStatusActive); err != nil {
			return false, err
		}
		if !s.FriendJoined() {
			return false, ErrFriendNotJoined
		}
		if s.StartTime != nil {
			return false, fmt.Errorf("%w: start time already set", ErrInvalidTransition)
		}

		start := now
		s.StartTime = &start
		s.Status = models.SessionStatusActive
		s.UpdatedAt = now
		return true, nil
	}
}

// applyStatus records an away/focused report against the caller's own fields.
// The violation counter moves only on a transition into away.
func applyStatus(req ReportStatusRequest, now time.Time) MutateFunc {
	return func(s *models.Session) (bool, error) {
		role, ok := s.RoleOf(req.ParticipantID)
		if !ok {
			return false, ErrNotParticipant
		}
		if s.Status == models.SessionStatusComplete {
			return false, ErrSessionClosed
		}

		current := s.StatusOf(role)
		if current == req.Status {
			return false, nil
		}

		switch req.Status {
		case models.ParticipantStatusAway:
			setParticipant(s, role, models.ParticipantStatusAway)
			incrementViolations(s, role)
		case models.ParticipantStatusFocused:
			setParticipant(s, role, models.ParticipantStatusFocused)
		default:
			return false, fmt.Errorf("%w: participants may only report away or focused", ErrInvalidArgument)
		}
		s.UpdatedAt = now
		return true, nil
	}
}

// applyComplete sets the terminal status once the countdown has run out on the
// server clock, allowing tolerance for client clock skew. Completing an already
// complete session changes nothing.
func applyComplete(req CompleteSessionRequest, now time.Time, tolerance time.Duration) MutateFunc {
	return func(s *models.Session) (bool, error) {
		if req.ParticipantID != "" {
			if _, ok := s.RoleOf(req.ParticipantID); !ok {
				return false, ErrNotParticipant
			}
		}
		if s.Status == models.SessionStatusComplete {
			return false, nil
		}
		if err := validateStatusTransition(s.Status, models.SessionStatusComplete); err != nil {
			return false, err
		}

		end := s.EndTime()
		if end == nil {
			return false, fmt.Errorf("%w: active session has no start time", ErrInvalidTransition)
		}
		if now.Add(tolerance).Before(*end) {
			return false, fmt.Errorf("%w: %s left", ErrCountdownRunning, end.Sub(now).Truncate(time.Second))
		}

		completed := now
		s.CompletedAt = &completed
		s.Status = models.SessionStatusComplete
		s.UpdatedAt = now
		return true, nil
	}
}

func setParticipant(s *models.Session, role models.Role, status models.ParticipantStatus) {
	if role == models.RoleCreator {
		s.CreatorStatus = status
		return
	}
	s.FriendStatus = status
}

func incrementViolations(s *models.Session, role models.Role) {
	if role == models.RoleCreator {
		s.CreatorViolations++
		return
	}
	s.FriendViolations++
}
