package session

import "errors"

var (
	// ErrSessionNotFound is returned when a session id does not exist or has expired.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExists is returned when a generated id collides with a stored session.
	ErrSessionExists = errors.New("session already exists")
	// ErrInvalidTransition is returned when a trigger is not allowed from the current status.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrNotCreator is returned when a creator-only action comes from someone else.
	ErrNotCreator = errors.New("only the creator can perform this action")
	// ErrNotParticipant is returned when the caller holds neither seat.
	ErrNotParticipant = errors.New("not a participant of this session")
	// ErrFriendNotJoined is returned when the creator tries to start before the friend joined.
	ErrFriendNotJoined = errors.New("friend has not joined yet")
	// ErrSessionFull is returned when a second, different friend tries to join.
	ErrSessionFull = errors.New("session already has a friend")
	// ErrSessionClosed is returned for writes against a complete session.
	ErrSessionClosed = errors.New("session is complete")
	// ErrCountdownRunning is returned when completion is requested before the countdown ends.
	ErrCountdownRunning = errors.New("countdown has not reached zero")
	// ErrInvalidArgument wraps request validation failures.
	ErrInvalidArgument = errors.New("invalid argument")
)
