package buddy

import (
	"errors"
	"fmt"

	"connectrpc.com/connect"
	"github.com/mcdev12/focusnest/go/internal/session"
)

var (
	// ErrInvalidLink is returned when a session id does not exist or has expired.
	ErrInvalidLink = errors.New("invalid or expired link")
	// ErrConnectivity is returned when the session server cannot be reached.
	ErrConnectivity = errors.New("session server unreachable")
)

// classify maps an RPC failure onto the errors callers act on. Nothing is
// retried here; the user re-triggers the action.
func classify(err error) error {
	if err == nil {
		return nil
	}
	switch connect.CodeOf(err) {
	case connect.CodeUnavailable, connect.CodeDeadlineExceeded:
		return fmt.Errorf("%w: %w", ErrConnectivity, err)
	case connect.CodeNotFound:
		return fmt.Errorf("%w: %w", ErrInvalidLink, session.FromConnectError(err))
	default:
		return session.FromConnectError(err)
	}
}

// Notice converts an operation failure into the message shown to the user.
func Notice(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConnectivity):
		return "Couldn't reach the session server. Check your connection and try again."
	case errors.Is(err, ErrInvalidLink), errors.Is(err, session.ErrSessionNotFound):
		return "This buddy link is invalid or has expired."
	case errors.Is(err, session.ErrSessionFull):
		return "Someone else already joined this session."
	case errors.Is(err, session.ErrFriendNotJoined):
		return "Wait for your friend to join before starting."
	case errors.Is(err, session.ErrNotCreator):
		return "Only the person who created the session can start it."
	case errors.Is(err, session.ErrCountdownRunning):
		return "The countdown is still running."
	case errors.Is(err, session.ErrSessionClosed):
		return "This session has already finished."
	case errors.Is(err, session.ErrInvalidArgument):
		return fmt.Sprintf("Invalid request: %v", err)
	default:
		return fmt.Sprintf("Something went wrong: %v", err)
	}
}
